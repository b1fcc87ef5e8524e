package domain

import "time"

type PaginationMode string

const (
	// PaginationMerged - страница режется после слияния и дедупликации
	PaginationMerged PaginationMode = "merged"
	// PaginationUpstream - pageNo/numOfRows уходят в каждый upstream как есть
	PaginationUpstream PaginationMode = "upstream"
)

func (p PaginationMode) IsValid() bool {
	return p == PaginationMerged || p == PaginationUpstream
}

type AggregationMeta struct {
	ExpectedCalls   int            `json:"expectedCalls"`
	SuccessfulCalls int            `json:"successfulCalls"`
	PartialFailure  bool           `json:"partialFailure"`
	DualSearch      bool           `json:"dualSearch"`
	Pagination      PaginationMode `json:"pagination"`
}

type AggregationResult struct {
	Items []BidAnnouncement `json:"items"`
	// TotalCount - сумма totalCount от upstream, дубликаты в ней не вычтены
	TotalCount int             `json:"totalCount"`
	PageNo     int             `json:"pageNo"`
	NumOfRows  int             `json:"numOfRows"`
	Meta       AggregationMeta `json:"meta"`
	Warnings   []string        `json:"warnings"`
	Cached     bool            `json:"cached"`
}

// SearchRecord - строка журнала поиска
type SearchRecord struct {
	ID              int64
	Keyword         string
	InstitutionName string
	AnnouncementNo  string
	Mode            InquiryMode
	DateFrom        time.Time
	DateTo          time.Time
	PageNo          int
	NumOfRows       int
	Channel         string
	// ClientID - IP для HTTP, tg:<id> для бота
	ClientID        string
	ExpectedCalls   int
	SuccessfulCalls int
	PartialFailure  bool
	DualSearch      bool
	Cached          bool
	ItemCount       int
	TotalCount      int
	ErrorMessage    string
	Duration        time.Duration
	CreatedAt       time.Time
}

func (r *SearchRecord) Succeeded() bool {
	return r.ErrorMessage == ""
}
