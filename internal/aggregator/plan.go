package aggregator

import (
	"github.com/kitbuilder587/bid-search/internal/domain"
	"github.com/kitbuilder587/bid-search/internal/g2b"
)

const (
	PassKeyword     = "keyword"
	PassInstitution = "institution"
)

type call struct {
	Pass  string
	Query g2b.Query
}

// planCalls раскладывает запрос на вызовы upstream в порядке слияния:
// категории по порядку, при двойном поиске сначала проход по ключевому слову
func planCalls(req domain.SearchRequest, mode domain.PaginationMode, maxRows int) []call {
	pageNo, rows := upstreamPaging(req, mode, maxRows)

	base := g2b.Query{
		Mode:           req.Mode,
		DateFrom:       req.DateFrom,
		DateTo:         req.DateTo,
		AnnouncementNo: req.AnnouncementNo,
		PageNo:         pageNo,
		NumOfRows:      rows,
	}

	type pass struct {
		name        string
		keyword     string
		institution string
	}

	var passes []pass
	if req.IsDualSearch() {
		passes = []pass{
			{name: PassKeyword, keyword: req.Keyword},
			{name: PassInstitution, institution: req.InstitutionName},
		}
	} else {
		passes = []pass{{keyword: req.Keyword, institution: req.InstitutionName}}
	}

	calls := make([]call, 0, len(passes)*len(domain.AllCategories()))
	for _, p := range passes {
		for _, cat := range domain.AllCategories() {
			q := base
			q.Category = cat
			q.Keyword = p.keyword
			q.InstitutionName = p.institution
			calls = append(calls, call{Pass: p.name, Query: q})
		}
	}
	return calls
}

// upstreamPaging - что просить у каждого upstream.
// В режиме merged берем первые page*size строк, страница режется после слияния.
func upstreamPaging(req domain.SearchRequest, mode domain.PaginationMode, maxRows int) (int, int) {
	if mode == domain.PaginationUpstream {
		return req.Page, req.PageSize
	}
	if maxRows <= 0 {
		maxRows = domain.MaxPageSize
	}
	return 1, min(req.Page*req.PageSize, maxRows)
}
