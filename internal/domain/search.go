package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// InquiryMode - inqryDiv у G2B
type InquiryMode int

const (
	InquiryByDate   InquiryMode = 1
	InquiryByNumber InquiryMode = 2
)

func (m InquiryMode) String() string {
	switch m {
	case InquiryByDate:
		return "date"
	case InquiryByNumber:
		return "number"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	DefaultPage       = 1
	DefaultPageSize   = 10
	MaxPageSize       = 999
	MaxFilterLength   = 200
	DefaultDateWindow = 30 * 24 * time.Hour
)

// KST - все даты G2B в корейском времени
var KST = time.FixedZone("KST", 9*60*60)

const bidDateLayout = "200601021504"

type SearchRequest struct {
	Keyword         string      `validate:"max=200"`
	InstitutionName string      `validate:"max=200"`
	AnnouncementNo  string      `validate:"max=40"`
	Mode            InquiryMode `validate:"oneof=1 2"`
	DateFrom        time.Time
	DateTo          time.Time
	Page            int `validate:"min=1"`
	PageSize        int `validate:"min=1,max=999"`
	NoCache         bool
}

var validate = validator.New()

// ApplyDefaults заполняет то, что клиент не прислал.
// window <= 0 означает DefaultDateWindow.
func (r *SearchRequest) ApplyDefaults(now time.Time, window time.Duration) {
	r.Keyword = normalizeSpaces(r.Keyword)
	r.InstitutionName = normalizeSpaces(r.InstitutionName)
	r.AnnouncementNo = strings.TrimSpace(r.AnnouncementNo)

	if r.Mode == 0 {
		r.Mode = InquiryByDate
	}
	if r.Page == 0 {
		r.Page = DefaultPage
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
	if window <= 0 {
		window = DefaultDateWindow
	}

	now = now.In(KST)
	if r.DateFrom.IsZero() {
		r.DateFrom = startOfDay(now.Add(-window))
	}
	if r.DateTo.IsZero() {
		r.DateTo = endOfDay(now)
	}
}

func (r *SearchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrMalformedRequest, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	if r.Mode == InquiryByNumber && r.AnnouncementNo == "" {
		return ErrMissingAnnouncementNo
	}
	if r.DateFrom.IsZero() || r.DateTo.IsZero() {
		return ErrMissingDateRange
	}
	if r.DateFrom.After(r.DateTo) {
		return ErrInvalidDateRange
	}
	return nil
}

// IsDualSearch - заданы и ключевое слово, и организация: два независимых прохода
func (r *SearchRequest) IsDualSearch() bool {
	return r.Mode == InquiryByDate && r.Keyword != "" && r.InstitutionName != ""
}

// ParseBidDate принимает YYYYMMDD, YYYYMMDDHHmm и YYYY-MM-DD.
// Для 8-значной даты конец интервала достраивается до 23:59.
func ParseBidDate(s string, endOfInterval bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	s = strings.ReplaceAll(s, "-", "")

	switch len(s) {
	case 8:
		t, err := time.ParseInLocation("20060102", s, KST)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		if endOfInterval {
			return endOfDay(t), nil
		}
		return t, nil
	case 12:
		t, err := time.ParseInLocation(bidDateLayout, s, KST)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q, expected YYYYMMDD or YYYYMMDDHHmm", ErrInvalidDate, s)
	}
}

// FormatBidDate - 12 цифр, как ждет inqryBgnDt/inqryEndDt
func FormatBidDate(t time.Time) string {
	return t.In(KST).Format(bidDateLayout)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, t.Location())
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
