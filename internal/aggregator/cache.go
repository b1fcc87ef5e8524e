package aggregator

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

// cacheKey - по нормализованным параметрам запроса.
// nocache в ключ не входит.
func cacheKey(req domain.SearchRequest, mode domain.PaginationMode) string {
	parts := []string{
		strings.ToLower(req.Keyword),
		strings.ToLower(req.InstitutionName),
		req.AnnouncementNo,
		req.Mode.String(),
		domain.FormatBidDate(req.DateFrom),
		domain.FormatBidDate(req.DateTo),
		fmt.Sprint(req.Page),
		fmt.Sprint(req.PageSize),
		string(mode),
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("bids:%x", hash[:12])
}

func (a *Aggregator) cached(ctx context.Context, key string) (*domain.AggregationResult, bool) {
	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		if a.metrics != nil {
			a.metrics.RecordCacheMiss()
		}
		return nil, false
	}

	var res domain.AggregationResult
	if err := json.Unmarshal(data, &res); err != nil {
		a.logger.Warn("cache entry is corrupted", zap.String("key", key), zap.Error(err))
		a.cache.Delete(ctx, key)
		return nil, false
	}

	if a.metrics != nil {
		a.metrics.RecordCacheHit()
	}
	res.Cached = true
	return &res, true
}

func (a *Aggregator) store(ctx context.Context, key string, res *domain.AggregationResult) {
	data, err := json.Marshal(res)
	if err != nil {
		a.logger.Warn("cache marshal failed", zap.Error(err))
		return
	}
	if err := a.cache.Set(ctx, key, data, a.config.CacheTTL); err != nil {
		a.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// copyResult - результат singleflight общий, наружу отдаем копию
func copyResult(res *domain.AggregationResult) *domain.AggregationResult {
	out := *res
	out.Items = append([]domain.BidAnnouncement(nil), res.Items...)
	out.Warnings = append([]string(nil), res.Warnings...)
	if out.Items == nil {
		out.Items = []domain.BidAnnouncement{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return &out
}
