package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/g2b"
)

// Response - что отдать на вызов категории.
// Errors расходуются по одному на попытку, потом отдается Page.
type Response struct {
	Page   *g2b.Page
	Err    error
	Errors []error
}

type Client struct {
	Responses map[domain.Category]Response
	// ByInstitution - ответы для прохода по организации (без keyword)
	ByInstitution map[domain.Category]Response
	Delay         time.Duration

	CallCount   int
	AllRequests []g2b.Query

	attempts map[string]int
	mu       sync.Mutex
}

func New() *Client {
	return &Client{
		Responses:     make(map[domain.Category]Response),
		ByInstitution: make(map[domain.Category]Response),
		attempts:      make(map[string]int),
	}
}

func (c *Client) WithItems(cat domain.Category, total int, items ...domain.BidAnnouncement) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[cat] = Response{Page: &g2b.Page{Category: cat, Items: items, TotalCount: total, PageNo: 1}}
	return c
}

func (c *Client) WithInstitutionItems(cat domain.Category, total int, items ...domain.BidAnnouncement) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ByInstitution[cat] = Response{Page: &g2b.Page{Category: cat, Items: items, TotalCount: total, PageNo: 1}}
	return c
}

func (c *Client) WithError(cat domain.Category, err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[cat] = Response{Err: err}
	return c
}

// WithFlakyItems - сначала errs по очереди, потом items
func (c *Client) WithFlakyItems(cat domain.Category, errs []error, total int, items ...domain.BidAnnouncement) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[cat] = Response{
		Errors: errs,
		Page:   &g2b.Page{Category: cat, Items: items, TotalCount: total, PageNo: 1},
	}
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) Fetch(ctx context.Context, q g2b.Query) (*g2b.Page, error) {
	c.mu.Lock()
	c.CallCount++
	c.AllRequests = append(c.AllRequests, q)

	resp, ok := c.Responses[q.Category]
	key := string(q.Category)
	if q.InstitutionName != "" && q.Keyword == "" {
		if r, found := c.ByInstitution[q.Category]; found {
			resp, ok = r, true
		}
		key += "/instt"
	}
	attempt := c.attempts[key]
	c.attempts[key]++
	delay := c.Delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, g2b.AsCallError(q.Category, ctx.Err())
		case <-time.After(delay):
		}
	}

	if !ok {
		return &g2b.Page{Category: q.Category, PageNo: 1}, nil
	}
	if attempt < len(resp.Errors) {
		return nil, g2b.AsCallError(q.Category, resp.Errors[attempt])
	}
	if resp.Err != nil {
		return nil, g2b.AsCallError(q.Category, resp.Err)
	}

	page := *resp.Page
	page.Items = append([]domain.BidAnnouncement(nil), resp.Page.Items...)
	return &page, nil
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.AllRequests = nil
	c.attempts = make(map[string]int)
}

func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}
