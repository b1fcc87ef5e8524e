package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/aggregator"
	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/g2b"
	"github.com/kitbuilder587/bid-search/internal/g2b/mock"
	"github.com/kitbuilder587/bid-search/internal/metrics"
	"github.com/kitbuilder587/bid-search/internal/ratelimit"
	"github.com/kitbuilder587/bid-search/internal/repository"
	"github.com/kitbuilder587/bid-search/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 1, 29, 12, 0, 0, 0, domain.KST)

type testEnv struct {
	router  *gin.Engine
	fetcher *mock.Client
	log     *repository.MockSearchLogRepository
}

type envOption func(*Deps, *service.SearchServiceDeps)

func withLimiter(l *ratelimit.Limiter) envOption {
	return func(d *Deps, _ *service.SearchServiceDeps) { d.Limiter = l }
}

func withOrigins(origins ...string) envOption {
	return func(d *Deps, _ *service.SearchServiceDeps) { d.Config.AllowedOrigins = origins }
}

func withoutHistory() envOption {
	return func(_ *Deps, s *service.SearchServiceDeps) { s.Log = nil }
}

func newTestEnv(t *testing.T, f g2b.Fetcher, opts ...envOption) *testEnv {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	agg := aggregator.New(aggregator.Deps{
		Fetcher: f,
		Logger:  zap.NewNop(),
		Metrics: m,
		Config:  aggregator.Config{RetryDelay: time.Millisecond},
		Now:     func() time.Time { return testNow },
	})

	log := repository.NewMockSearchLogRepository()
	svcDeps := service.SearchServiceDeps{Aggregator: agg, Log: log, Logger: zap.NewNop(), Metrics: m}
	deps := Deps{
		Metrics:        m,
		MetricsHandler: metrics.HandlerFor(reg),
		Logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps, &svcDeps)
	}
	deps.Service = service.NewSearchService(svcDeps)

	env := &testEnv{router: NewRouter(deps), log: log}
	if mc, ok := f.(*mock.Client); ok {
		env.fetcher = mc
	}
	return env
}

func (e *testEnv) get(t *testing.T, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func rawBid(id string, cat domain.Category) domain.BidAnnouncement {
	return domain.BidAnnouncement{
		ID:             id,
		Order:          "000",
		Title:          "공고 " + id,
		SourceCategory: cat,
		Raw:            map[string]any{"bidNtceNo": id},
	}
}

func TestBidSearch_Success(t *testing.T) {
	f := mock.New().
		WithItems(domain.CategoryGoods, 2, rawBid("A", domain.CategoryGoods), rawBid("B", domain.CategoryGoods)).
		WithItems(domain.CategoryServices, 3, rawBid("B", domain.CategoryServices), rawBid("C", domain.CategoryServices))
	env := newTestEnv(t, f)

	w := env.get(t, "/api/bid-search?bidNtceNm=%EB%B6%80%EC%82%B0&fromBidDt=20251230&toBidDt=20260129")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SearchResponse](t, w)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data.Items, 3)
	assert.Equal(t, 5, resp.Data.TotalCount)
	assert.Equal(t, 1, resp.Data.PageNo)
	assert.Equal(t, 10, resp.Data.NumOfRows)
	assert.Equal(t, 3, resp.Meta.SuccessfulCalls)
	assert.NotNil(t, resp.Warnings)
	assert.Empty(t, resp.Warnings)
	assert.False(t, resp.Cached)
	for _, it := range resp.Data.Items {
		assert.Nil(t, it.Raw, "raw is only sent with includeRaw")
	}

	q := env.fetcher.AllRequests[0]
	assert.Equal(t, "부산", q.Keyword)
	assert.Equal(t, "202512300000", domain.FormatBidDate(q.DateFrom))
	assert.Equal(t, "202601292359", domain.FormatBidDate(q.DateTo))
}

func TestBidSearch_RawJSONShape(t *testing.T) {
	env := newTestEnv(t, mock.New())

	w := env.get(t, "/api/bid-search?bidNtceNm=x")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	for _, key := range []string{"success", "data", "meta", "warnings", "cached"} {
		assert.Contains(t, body, key)
	}
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{}, data["items"], "empty result is [] not null")
}

func TestBidSearch_IncludeRaw(t *testing.T) {
	f := mock.New().WithItems(domain.CategoryGoods, 1, rawBid("A", domain.CategoryGoods))
	env := newTestEnv(t, f)

	w := env.get(t, "/api/bid-search?bidNtceNm=x&includeRaw=true")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SearchResponse](t, w)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "A", resp.Data.Items[0].Raw["bidNtceNo"])
}

func TestBidSearch_AlternateDateParams(t *testing.T) {
	env := newTestEnv(t, mock.New())

	w := env.get(t, "/api/bid-search?bidNtceNm=x&inqryBgnDt=202601010900&inqryEndDt=2026-01-15")
	require.Equal(t, http.StatusOK, w.Code)

	q := env.fetcher.AllRequests[0]
	assert.Equal(t, "202601010900", domain.FormatBidDate(q.DateFrom))
	assert.Equal(t, "202601152359", domain.FormatBidDate(q.DateTo))
}

func TestBidSearch_PartialFailure(t *testing.T) {
	f := mock.New().
		WithItems(domain.CategoryGoods, 1, rawBid("A", domain.CategoryGoods)).
		WithError(domain.CategoryConstruction, context.DeadlineExceeded)
	env := newTestEnv(t, f)

	w := env.get(t, "/api/bid-search?bidNtceNm=x")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SearchResponse](t, w)
	assert.True(t, resp.Meta.PartialFailure)
	assert.Equal(t, 2, resp.Meta.SuccessfulCalls)
	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "construction")
}

func TestBidSearch_DualSearch(t *testing.T) {
	env := newTestEnv(t, mock.New())

	w := env.get(t, "/api/bid-search?bidNtceNm=x&insttNm=y")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SearchResponse](t, w)
	assert.True(t, resp.Meta.DualSearch)
	assert.Equal(t, 6, resp.Meta.ExpectedCalls)
	assert.Equal(t, 6, env.fetcher.Calls())
}

func TestBidSearch_Errors(t *testing.T) {
	resultCode := func(cat domain.Category) error {
		return &g2b.CallError{Category: cat, Kind: domain.FailureResultCode, ResultCode: "30", Detail: "SERVICE_KEY_IS_NOT_REGISTERED_ERROR"}
	}

	tests := []struct {
		name       string
		fetcher    func() *mock.Client
		query      string
		wantStatus int
		wantError  string
		wantCalls  int
	}{
		{
			name:       "bad page number",
			fetcher:    mock.New,
			query:      "bidNtceNm=x&pageNo=abc",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "rows over limit",
			fetcher:    mock.New,
			query:      "bidNtceNm=x&numOfRows=1000",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "bad date",
			fetcher:    mock.New,
			query:      "bidNtceNm=x&fromBidDt=2026-13-45",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "inverted range",
			fetcher:    mock.New,
			query:      "bidNtceNm=x&fromBidDt=20260201&toBidDt=20260101",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name:       "unknown inquiry mode",
			fetcher:    mock.New,
			query:      "inqryDiv=5",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request",
		},
		{
			name: "all calls rejected by result code",
			fetcher: func() *mock.Client {
				return mock.New().
					WithError(domain.CategoryGoods, resultCode(domain.CategoryGoods)).
					WithError(domain.CategoryServices, resultCode(domain.CategoryServices)).
					WithError(domain.CategoryConstruction, resultCode(domain.CategoryConstruction))
			},
			query:      "bidNtceNm=x",
			wantStatus: http.StatusBadRequest,
			wantError:  "upstream rejected the request",
			wantCalls:  3,
		},
		{
			name: "all calls timed out",
			fetcher: func() *mock.Client {
				return mock.New().
					WithError(domain.CategoryGoods, context.DeadlineExceeded).
					WithError(domain.CategoryServices, context.DeadlineExceeded).
					WithError(domain.CategoryConstruction, context.DeadlineExceeded)
			},
			query:      "bidNtceNm=x",
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "upstream timed out",
			wantCalls:  3,
		},
		{
			name: "mixed total failure",
			fetcher: func() *mock.Client {
				return mock.New().
					WithError(domain.CategoryGoods, context.DeadlineExceeded).
					WithError(domain.CategoryServices, resultCode(domain.CategoryServices)).
					WithError(domain.CategoryConstruction, &g2b.CallError{Category: domain.CategoryConstruction, Kind: domain.FailureParse, Detail: "received HTML page instead of data"})
			},
			query:      "bidNtceNm=x",
			wantStatus: http.StatusInternalServerError,
			wantError:  "all upstream calls failed",
			wantCalls:  3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.fetcher())

			w := env.get(t, "/api/bid-search?"+tt.query)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			raw := decode[map[string]any](t, w)
			assert.Equal(t, false, raw["success"])

			resp := decode[ErrorResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Details)
			assert.Equal(t, tt.wantCalls, env.fetcher.Calls())
		})
	}
}

func TestBidSearch_NotConfigured(t *testing.T) {
	env := newTestEnv(t, g2b.New(g2b.Config{}, zap.NewNop()))

	w := env.get(t, "/api/bid-search?bidNtceNm=x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "bid search api is not configured", resp.Error)
}

func TestBidSearch_NoCacheFlag(t *testing.T) {
	env := newTestEnv(t, mock.New())

	// без кеша в агрегаторе nocache просто ничего не меняет
	w := env.get(t, "/api/bid-search?bidNtceNm=x&nocache=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SearchResponse](t, w).Cached)
}

func TestBidDetail(t *testing.T) {
	f := mock.New().WithItems(domain.CategoryServices, 1, rawBid("R26BK0001", domain.CategoryServices))
	env := newTestEnv(t, f)

	w := env.get(t, "/api/bid-detail?bidNtceNo=R26BK0001&bidNtceOrd=0")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[DetailResponse](t, w)
	assert.Equal(t, domain.CategoryServices, resp.Data.SourceCategory)
	assert.Equal(t, "R26BK0001", resp.Data.Raw["bidNtceNo"])

	w = env.get(t, "/api/bid-detail?bidNtceNo=MISSING")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.get(t, "/api/bid-detail")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, mock.New())

	env.get(t, "/api/bid-search?bidNtceNm=first")
	env.get(t, "/api/bid-search?bidNtceNm=second")

	w := env.get(t, "/api/bid-search/history?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HistoryResponse](t, w)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "second", resp.Data[0].Keyword)
	assert.Equal(t, service.ChannelHTTP, resp.Data[0].Channel)

	w = env.get(t, "/api/bid-search/history?limit=-3")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory_Disabled(t *testing.T) {
	env := newTestEnv(t, mock.New(), withoutHistory())

	w := env.get(t, "/api/bid-search/history")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, mock.New())

	w := env.get(t, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["configured"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, mock.New())
	env.get(t, "/api/bid-search?bidNtceNm=x")

	w := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bid_search_requests_total")
	assert.Contains(t, w.Body.String(), "bid_search_upstream_calls_total")
}
