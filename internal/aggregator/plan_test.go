package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

func TestPlanCalls_SinglePass(t *testing.T) {
	req := domain.SearchRequest{Keyword: "부산", Mode: domain.InquiryByDate, Page: 1, PageSize: 10}
	calls := planCalls(req, domain.PaginationMerged, 999)

	assert.Len(t, calls, 3)
	for i, cat := range domain.AllCategories() {
		assert.Equal(t, cat, calls[i].Query.Category)
		assert.Equal(t, "부산", calls[i].Query.Keyword)
		assert.Empty(t, calls[i].Pass)
	}
}

func TestPlanCalls_DualSearchOrder(t *testing.T) {
	req := domain.SearchRequest{Keyword: "준설", InstitutionName: "부산항만공사", Mode: domain.InquiryByDate, Page: 1, PageSize: 10}
	calls := planCalls(req, domain.PaginationMerged, 999)

	assert.Len(t, calls, 6)
	for i, c := range calls {
		if i < 3 {
			assert.Equal(t, PassKeyword, c.Pass)
			assert.Equal(t, "준설", c.Query.Keyword)
			assert.Empty(t, c.Query.InstitutionName)
		} else {
			assert.Equal(t, PassInstitution, c.Pass)
			assert.Empty(t, c.Query.Keyword)
			assert.Equal(t, "부산항만공사", c.Query.InstitutionName)
		}
	}
}

func TestPlanCalls_NumberModeIsNotDual(t *testing.T) {
	req := domain.SearchRequest{Keyword: "x", InstitutionName: "y", AnnouncementNo: "R26BK0001", Mode: domain.InquiryByNumber, Page: 1, PageSize: 10}
	calls := planCalls(req, domain.PaginationUpstream, 999)
	assert.Len(t, calls, 3)
}

func TestUpstreamPaging(t *testing.T) {
	tests := []struct {
		name     string
		mode     domain.PaginationMode
		page     int
		size     int
		wantPage int
		wantRows int
	}{
		{"upstream passes through", domain.PaginationUpstream, 3, 20, 3, 20},
		{"merged asks for prefix", domain.PaginationMerged, 3, 20, 1, 60},
		{"merged capped", domain.PaginationMerged, 20, 100, 1, 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := domain.SearchRequest{Page: tt.page, PageSize: tt.size}
			page, rows := upstreamPaging(req, tt.mode, 999)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantRows, rows)
		})
	}
}
