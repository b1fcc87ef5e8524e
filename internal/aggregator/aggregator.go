package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kitbuilder587/bid-search/internal/cache"
	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/g2b"
	"github.com/kitbuilder587/bid-search/internal/metrics"
	"github.com/kitbuilder587/bid-search/internal/retry"
)

type Config struct {
	// Window - период поиска по умолчанию
	Window             time.Duration
	MaxUpstreamRows    int
	MinSuccessfulCalls int
	Pagination         domain.PaginationMode
	RetryAttempts      int
	RetryDelay         time.Duration
	CacheTTL           time.Duration
}

type Deps struct {
	Fetcher g2b.Fetcher
	Cache   cache.Cache
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Config  Config
	// Now - для тестов
	Now func() time.Time
}

// Aggregator - веерный запрос к трем категориям и сборка единого ответа
type Aggregator struct {
	fetcher g2b.Fetcher
	cache   cache.Cache
	logger  *zap.Logger
	metrics *metrics.Metrics
	config  Config
	now     func() time.Time
	group   singleflight.Group
}

type outcome struct {
	call call
	page *g2b.Page
	err  *g2b.CallError
}

func New(deps Deps) *Aggregator {
	cfg := deps.Config
	if cfg.Window <= 0 {
		cfg.Window = domain.DefaultDateWindow
	}
	if cfg.MaxUpstreamRows <= 0 {
		cfg.MaxUpstreamRows = domain.MaxPageSize
	}
	if cfg.MinSuccessfulCalls <= 0 {
		cfg.MinSuccessfulCalls = 1
	}
	if !cfg.Pagination.IsValid() {
		cfg.Pagination = domain.PaginationMerged
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = retry.DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = retry.DefaultDelay
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Aggregator{
		fetcher: deps.Fetcher,
		cache:   deps.Cache,
		logger:  logger,
		metrics: deps.Metrics,
		config:  cfg,
		now:     now,
	}
}

// Configured - false, когда у upstream-клиента нет ключа
func (a *Aggregator) Configured() bool {
	if c, ok := a.fetcher.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return a.fetcher != nil
}

// Search - основной сценарий /api/bid-search
func (a *Aggregator) Search(ctx context.Context, req domain.SearchRequest) (*domain.AggregationResult, error) {
	req.ApplyDefaults(a.now(), a.config.Window)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !a.Configured() {
		return nil, domain.ErrNotConfigured
	}

	if a.cache == nil {
		return a.aggregate(ctx, req)
	}

	key := cacheKey(req, a.config.Pagination)
	if !req.NoCache {
		if res, ok := a.cached(ctx, key); ok {
			return res, nil
		}
	}

	// заполнение общее для всех ждущих, отмена одного клиента его не прерывает,
	// но сам клиент уходит сразу
	fillCtx := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		res, err := a.aggregate(fillCtx, req)
		if err != nil {
			return nil, err
		}
		if !res.Meta.PartialFailure {
			a.store(fillCtx, key, res)
		}
		return res, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Shared {
		a.logger.Debug("shared in-flight search", zap.String("key", key))
	}
	v := r.Val
	return copyResult(v.(*domain.AggregationResult)), nil
}

// Lookup ищет объявление по номеру во всех трех категориях.
// Побеждает первая категория, где номер нашелся.
func (a *Aggregator) Lookup(ctx context.Context, announcementNo, order string) (*domain.BidAnnouncement, error) {
	req := domain.SearchRequest{
		Mode:           domain.InquiryByNumber,
		AnnouncementNo: announcementNo,
		PageSize:       domain.MaxPageSize,
	}
	req.ApplyDefaults(a.now(), a.config.Window)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !a.Configured() {
		return nil, domain.ErrNotConfigured
	}

	calls := planCalls(req, domain.PaginationUpstream, a.config.MaxUpstreamRows)
	outcomes := a.fanOut(ctx, calls)

	var failures []domain.CallFailure
	succeeded := 0
	for _, o := range outcomes {
		if o.err != nil {
			failures = append(failures, o.err.Failure(o.call.Pass))
			continue
		}
		succeeded++
		for _, item := range o.page.Items {
			if item.ID != req.AnnouncementNo {
				continue
			}
			if order != "" && !sameOrder(item.Order, order) {
				continue
			}
			found := item
			return &found, nil
		}
	}

	if succeeded == 0 {
		return nil, &domain.TotalFailureError{Failures: failures, ExpectedCalls: len(calls)}
	}
	return nil, fmt.Errorf("%w: bid %s", domain.ErrNotFound, announcementNo)
}

func (a *Aggregator) aggregate(ctx context.Context, req domain.SearchRequest) (*domain.AggregationResult, error) {
	start := time.Now()
	calls := planCalls(req, a.config.Pagination, a.config.MaxUpstreamRows)
	outcomes := a.fanOut(ctx, calls)

	sequences := make([][]domain.BidAnnouncement, 0, len(outcomes))
	totals := make([]int, 0, len(outcomes))
	var failures []domain.CallFailure
	var warnings []string

	for _, o := range outcomes {
		if o.err != nil {
			f := o.err.Failure(o.call.Pass)
			failures = append(failures, f)
			warnings = append(warnings, f.String())
			continue
		}
		sequences = append(sequences, o.page.Items)
		totals = append(totals, o.page.TotalCount)
	}

	succeeded := len(sequences)
	minCalls := min(a.config.MinSuccessfulCalls, len(calls))
	if succeeded < minCalls {
		a.recordAggregation("failed")
		err := &domain.TotalFailureError{
			Failures:        failures,
			ExpectedCalls:   len(calls),
			SuccessfulCalls: succeeded,
		}
		a.logger.Warn("bid search failed",
			zap.Int("expected_calls", len(calls)),
			zap.Int("successful_calls", succeeded),
			zap.String("diagnostic", err.Diagnostic()),
		)
		return nil, err
	}

	merged := Merge(sequences)
	items := merged
	if a.config.Pagination == domain.PaginationMerged {
		items = Paginate(merged, req.Page, req.PageSize)
		if req.Page*req.PageSize > a.config.MaxUpstreamRows {
			warnings = append(warnings, fmt.Sprintf("page %d is beyond the first %d rows per category; results may be incomplete", req.Page, a.config.MaxUpstreamRows))
		}
	}

	res := &domain.AggregationResult{
		Items:      items,
		TotalCount: SumTotals(totals),
		PageNo:     req.Page,
		NumOfRows:  req.PageSize,
		Meta: domain.AggregationMeta{
			ExpectedCalls:   len(calls),
			SuccessfulCalls: succeeded,
			PartialFailure:  succeeded < len(calls),
			DualSearch:      req.IsDualSearch(),
			Pagination:      a.config.Pagination,
		},
		Warnings: warnings,
	}
	if res.Warnings == nil {
		res.Warnings = []string{}
	}

	if res.Meta.PartialFailure {
		a.recordAggregation("partial")
	} else {
		a.recordAggregation("complete")
	}

	a.logger.Info("bid search aggregated",
		zap.String("keyword", req.Keyword),
		zap.String("institution", req.InstitutionName),
		zap.Int("expected_calls", res.Meta.ExpectedCalls),
		zap.Int("successful_calls", res.Meta.SuccessfulCalls),
		zap.Int("merged", len(merged)),
		zap.Int("total_count", res.TotalCount),
		zap.Duration("duration", time.Since(start)),
	)

	return res, nil
}

// fanOut запускает все вызовы параллельно и ждет каждый.
// Результат i-го вызова лежит в i-й ячейке, отказ одного не трогает остальные.
func (a *Aggregator) fanOut(ctx context.Context, calls []call) []outcome {
	outcomes := make([]outcome, len(calls))

	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			outcomes[i] = a.runCall(ctx, c)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func (a *Aggregator) runCall(ctx context.Context, c call) (out outcome) {
	out.call = c
	cat := c.Query.Category
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("upstream call panicked",
				zap.String("category", cat.String()),
				zap.Any("panic", r),
			)
			out.page = nil
			out.err = &g2b.CallError{Category: cat, Kind: domain.FailureTransport, Detail: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	policy := retry.Policy{
		Attempts:  a.config.RetryAttempts,
		Delay:     a.config.RetryDelay,
		Retryable: g2b.IsTransient,
		OnRetry: func(err error, attempt int, wait time.Duration) {
			a.logger.Warn("retrying upstream call",
				zap.String("category", cat.String()),
				zap.String("pass", c.Pass),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			if a.metrics != nil {
				a.metrics.RecordUpstreamRetry(cat.String())
			}
		},
	}

	page, err := retry.Do(ctx, policy, func() (*g2b.Page, error) {
		return a.fetcher.Fetch(ctx, c.Query)
	})

	if err == nil && page == nil {
		err = errors.New("empty page from upstream client")
	}
	if err != nil {
		out.err = g2b.AsCallError(cat, err)
		a.logger.Warn("upstream call failed",
			zap.String("category", cat.String()),
			zap.String("pass", c.Pass),
			zap.String("kind", string(out.err.Kind)),
			zap.Error(err),
		)
		a.recordCall(cat, string(out.err.Kind), start)
		return out
	}

	out.page = page
	a.recordCall(cat, "ok", start)
	return out
}

func (a *Aggregator) recordCall(cat domain.Category, result string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordUpstreamCall(cat.String(), result, time.Since(start))
	}
}

func (a *Aggregator) recordAggregation(result string) {
	if a.metrics != nil {
		a.metrics.RecordAggregation(result)
	}
}

func sameOrder(a, b string) bool {
	return trimZeros(a) == trimZeros(b)
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	if s == "" {
		return "0"
	}
	return s
}
