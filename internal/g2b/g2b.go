package g2b

import (
	"context"
	"time"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

const (
	DefaultBaseURL = "https://apis.data.go.kr/1230000/ad/BidPublicInfoService"
	DefaultTimeout = 30 * time.Second
)

// DefaultEndpoints - операции BidPublicInfoService по категориям
var DefaultEndpoints = map[domain.Category]string{
	domain.CategoryGoods:        "getBidPblancListInfoThngPPSSrch",
	domain.CategoryServices:     "getBidPblancListInfoSvcPPSSrch",
	domain.CategoryConstruction: "getBidPblancListInfoCnstwkPPSSrch",
}

// Fetcher - один GET к одной категории.
// Любой отказ возвращается как *CallError.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (*Page, error)
}

type Query struct {
	Category        domain.Category
	Mode            domain.InquiryMode
	DateFrom        time.Time
	DateTo          time.Time
	Keyword         string
	InstitutionName string
	AnnouncementNo  string
	PageNo          int
	NumOfRows       int
}

type Page struct {
	Category   domain.Category
	Items      []domain.BidAnnouncement
	TotalCount int
	PageNo     int
	NumOfRows  int
	Format     Format
	// FormatFallback - тело разобрано не тем форматом, что заявлен в Content-Type
	FormatFallback bool
}
