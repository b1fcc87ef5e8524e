package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/metrics"
	"github.com/kitbuilder587/bid-search/internal/repository"
)

const (
	ChannelHTTP     = "http"
	ChannelTelegram = "telegram"
	ChannelCLI      = "cli"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// Aggregator - то, что сервису нужно от агрегатора
type Aggregator interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.AggregationResult, error)
	Lookup(ctx context.Context, announcementNo, order string) (*domain.BidAnnouncement, error)
	Configured() bool
}

// Origin - кто спрашивает
type Origin struct {
	Channel  string
	ClientID string
}

type SearchService interface {
	Search(ctx context.Context, req domain.SearchRequest, origin Origin) (*domain.AggregationResult, error)
	Lookup(ctx context.Context, announcementNo, order string, origin Origin) (*domain.BidAnnouncement, error)
	// History - последние поиски; пустой clientID значит все клиенты
	History(ctx context.Context, clientID string, limit int) ([]domain.SearchRecord, error)
	HistoryEnabled() bool
	Configured() bool
}

type SearchServiceDeps struct {
	Aggregator Aggregator
	// Log - опционально, без БД журнал не ведется
	Log     repository.SearchLogRepository
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// LogTimeout - сколько ждать записи в журнал
	LogTimeout time.Duration
}

type searchService struct {
	aggregator Aggregator
	log        repository.SearchLogRepository
	logger     *zap.Logger
	metrics    *metrics.Metrics
	logTimeout time.Duration
}

func NewSearchService(deps SearchServiceDeps) SearchService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LogTimeout == 0 {
		deps.LogTimeout = 2 * time.Second
	}

	return &searchService{
		aggregator: deps.Aggregator,
		log:        deps.Log,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		logTimeout: deps.LogTimeout,
	}
}

func (s *searchService) Configured() bool {
	return s.aggregator != nil && s.aggregator.Configured()
}

func (s *searchService) HistoryEnabled() bool {
	return s.log != nil
}

func (s *searchService) Search(ctx context.Context, req domain.SearchRequest, origin Origin) (*domain.AggregationResult, error) {
	start := time.Now()

	res, err := s.aggregator.Search(ctx, req)
	duration := time.Since(start)

	s.recordRequest(origin.Channel, requestStatus(res, err), duration)

	rec := &domain.SearchRecord{
		Keyword:         req.Keyword,
		InstitutionName: req.InstitutionName,
		AnnouncementNo:  req.AnnouncementNo,
		Mode:            req.Mode,
		DateFrom:        req.DateFrom,
		DateTo:          req.DateTo,
		PageNo:          req.Page,
		NumOfRows:       req.PageSize,
		Channel:         origin.Channel,
		ClientID:        origin.ClientID,
		Duration:        duration,
	}
	if rec.Mode == 0 {
		rec.Mode = domain.InquiryByDate
	}

	if err != nil {
		rec.ErrorMessage = err.Error()
		var tf *domain.TotalFailureError
		if errors.As(err, &tf) {
			rec.ExpectedCalls = tf.ExpectedCalls
			rec.SuccessfulCalls = tf.SuccessfulCalls
		}
		// кривые запросы в журнал не пишем
		if !errors.Is(err, domain.ErrMalformedRequest) {
			s.writeLog(ctx, rec)
		}
		return nil, err
	}

	rec.PageNo = res.PageNo
	rec.NumOfRows = res.NumOfRows
	rec.ExpectedCalls = res.Meta.ExpectedCalls
	rec.SuccessfulCalls = res.Meta.SuccessfulCalls
	rec.PartialFailure = res.Meta.PartialFailure
	rec.DualSearch = res.Meta.DualSearch
	rec.Cached = res.Cached
	rec.ItemCount = len(res.Items)
	rec.TotalCount = res.TotalCount
	s.writeLog(ctx, rec)

	return res, nil
}

func (s *searchService) Lookup(ctx context.Context, announcementNo, order string, origin Origin) (*domain.BidAnnouncement, error) {
	start := time.Now()

	bid, err := s.aggregator.Lookup(ctx, announcementNo, order)

	status := "ok"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.recordRequest(origin.Channel, status, time.Since(start))

	if err != nil {
		return nil, err
	}
	return bid, nil
}

func (s *searchService) History(ctx context.Context, clientID string, limit int) ([]domain.SearchRecord, error) {
	if s.log == nil {
		return nil, domain.ErrHistoryDisabled
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var (
		records []domain.SearchRecord
		err     error
	)
	if clientID == "" {
		records, err = s.log.ListRecent(ctx, limit)
	} else {
		records, err = s.log.ListByClient(ctx, clientID, limit)
	}
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.SearchRecord{}
	}
	return records, nil
}

// writeLog не должен ронять поиск: ошибки только в лог
func (s *searchService) writeLog(ctx context.Context, rec *domain.SearchRecord) {
	if s.log == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logTimeout)
	defer cancel()

	if err := s.log.Create(ctx, rec); err != nil {
		s.logger.Warn("failed to write search log",
			zap.String("channel", rec.Channel),
			zap.Error(err),
		)
	}
}

func (s *searchService) recordRequest(channel, status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordRequest(channel, status, d)
	}
}

func requestStatus(res *domain.AggregationResult, err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrNotConfigured):
		return "not_configured"
	case err != nil:
		return "error"
	case res.Cached:
		return "cached"
	case res.Meta.PartialFailure:
		return "partial"
	default:
		return "ok"
	}
}
