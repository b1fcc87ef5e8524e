package g2b

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

const maxBodySize = 10 << 20

type Config struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Endpoints map[domain.Category]string
}

type Client struct {
	apiKey    string
	baseURL   string
	timeout   time.Duration
	endpoints map[domain.Category]string
	client    *http.Client
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	endpoints := make(map[domain.Category]string, len(DefaultEndpoints))
	for cat, op := range DefaultEndpoints {
		endpoints[cat] = op
	}
	for cat, op := range cfg.Endpoints {
		if op != "" {
			endpoints[cat] = op
		}
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          30,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &Client{
		apiKey:    decodeServiceKey(cfg.APIKey),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		timeout:   cfg.Timeout,
		endpoints: endpoints,
		client:    &http.Client{Transport: transport},
		logger:    logger,
	}
}

// Configured - false, если ключ не задан. Сервис при этом стартует.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) Fetch(ctx context.Context, q Query) (*Page, error) {
	if !c.Configured() {
		return nil, &CallError{Category: q.Category, Kind: domain.FailureTransport, Detail: domain.ErrNotConfigured.Error(), Err: domain.ErrNotConfigured}
	}

	endpoint, err := c.buildURL(q)
	if err != nil {
		return nil, &CallError{Category: q.Category, Kind: domain.FailureTransport, Detail: err.Error(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	c.logger.Debug("g2b request",
		zap.String("category", q.Category.String()),
		zap.String("url", redactKey(endpoint)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &CallError{Category: q.Category, Kind: domain.FailureTransport, Detail: err.Error(), Err: err}
	}
	httpReq.Header.Set("Accept", "application/json, application/xml;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, AsCallError(q.Category, unwrapURLError(ctx, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, AsCallError(q.Category, unwrapURLError(ctx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CallError{
			Category:   q.Category,
			Kind:       domain.FailureHTTPStatus,
			StatusCode: resp.StatusCode,
			Detail:     snippet(body),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	dec, err := decodeBody(contentType, body)
	if err != nil {
		return nil, &CallError{Category: q.Category, Kind: domain.FailureParse, Detail: err.Error(), Err: err}
	}
	if dec.fallback {
		c.logger.Info("g2b response parsed with fallback format",
			zap.String("category", q.Category.String()),
			zap.String("content_type", contentType),
			zap.String("format", string(dec.format)),
		)
	}

	env, err := readEnvelope(dec.tree)
	if err != nil {
		return nil, &CallError{Category: q.Category, Kind: domain.FailureParse, Detail: err.Error(), Err: err}
	}
	if env.ResultCode != "00" {
		msg := env.ResultMsg
		if msg == "" {
			msg = "no result message"
		}
		code := env.ResultCode
		if code == "" {
			code = "missing"
		}
		return nil, &CallError{Category: q.Category, Kind: domain.FailureResultCode, ResultCode: code, Detail: msg}
	}

	page := &Page{
		Category:       q.Category,
		Items:          normalizeAll(q.Category, env.Body),
		TotalCount:     env.TotalCount,
		PageNo:         env.PageNo,
		NumOfRows:      env.NumOfRows,
		Format:         dec.format,
		FormatFallback: dec.fallback,
	}

	c.logger.Debug("g2b response",
		zap.String("category", q.Category.String()),
		zap.Int("items", len(page.Items)),
		zap.Int("total_count", page.TotalCount),
		zap.Duration("duration", time.Since(start)),
	)

	return page, nil
}

func (c *Client) buildURL(q Query) (string, error) {
	op, ok := c.endpoints[q.Category]
	if !ok {
		return "", fmt.Errorf("no endpoint for category %q", q.Category)
	}

	mode := q.Mode
	if mode == 0 {
		mode = domain.InquiryByDate
	}
	pageNo := q.PageNo
	if pageNo <= 0 {
		pageNo = domain.DefaultPage
	}
	rows := q.NumOfRows
	if rows <= 0 {
		rows = domain.DefaultPageSize
	}

	params := url.Values{}
	params.Set("ServiceKey", c.apiKey)
	params.Set("pageNo", strconv.Itoa(pageNo))
	params.Set("numOfRows", strconv.Itoa(rows))
	params.Set("inqryDiv", strconv.Itoa(int(mode)))
	params.Set("type", "json")

	switch mode {
	case domain.InquiryByNumber:
		params.Set("bidNtceNo", q.AnnouncementNo)
	default:
		if !q.DateFrom.IsZero() {
			params.Set("inqryBgnDt", domain.FormatBidDate(q.DateFrom))
		}
		if !q.DateTo.IsZero() {
			params.Set("inqryEndDt", domain.FormatBidDate(q.DateTo))
		}
		if q.Keyword != "" {
			params.Set("bidNtceNm", q.Keyword)
		}
		if q.InstitutionName != "" {
			params.Set("insttNm", q.InstitutionName)
		}
	}

	return c.baseURL + "/" + op + "?" + params.Encode(), nil
}

// decodeServiceKey - data.go.kr выдает ключ уже в percent-encoding,
// а url.Values закодирует его еще раз
func decodeServiceKey(key string) string {
	key = strings.TrimSpace(key)
	if !strings.Contains(key, "%") {
		return key
	}
	if decoded, err := url.QueryUnescape(key); err == nil {
		return decoded
	}
	return key
}

func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("ServiceKey") {
		q.Set("ServiceKey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// unwrapURLError помечает сетевые таймауты как context.DeadlineExceeded
func unwrapURLError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}
