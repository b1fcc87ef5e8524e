package domain

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryGoods        Category = "goods"
	CategoryServices     Category = "services"
	CategoryConstruction Category = "construction"
)

// AllCategories - порядок важен: в нем же склеиваются результаты
func AllCategories() []Category {
	return []Category{CategoryGoods, CategoryServices, CategoryConstruction}
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryGoods, CategoryServices, CategoryConstruction:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Label - как категория называется на сайте
func (c Category) Label() string {
	switch c {
	case CategoryGoods:
		return "물품"
	case CategoryServices:
		return "용역"
	case CategoryConstruction:
		return "공사"
	default:
		return string(c)
	}
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrMalformedRequest, s)
	}
	return c, nil
}

// BidAnnouncement - нормализованное объявление о торгах
type BidAnnouncement struct {
	ID                string         `json:"id"`
	Order             string         `json:"order,omitempty"`
	Title             string         `json:"title"`
	NoticeInstitution string         `json:"noticeInstitution"`
	DemandInstitution string         `json:"demandInstitution"`
	NoticeDatetime    string         `json:"noticeDatetime"`
	CloseDatetime     string         `json:"closeDatetime"`
	DetailURL         string         `json:"detailUrl,omitempty"`
	SourceCategory    Category       `json:"sourceCategory"`
	Raw               map[string]any `json:"raw,omitempty"`
}

// NumberWithOrder - "R26BK01234567-000", как показывает 나라장터
func (b BidAnnouncement) NumberWithOrder() string {
	if b.ID == "" {
		return "-"
	}
	ord := b.Order
	if ord == "" {
		ord = "000"
	}
	for len(ord) < 3 {
		ord = "0" + ord
	}
	return b.ID + "-" + ord
}

// WithoutRaw возвращает копию без исходной записи upstream
func (b BidAnnouncement) WithoutRaw() BidAnnouncement {
	b.Raw = nil
	return b
}
