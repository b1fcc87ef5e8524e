package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

// ErrorResponse: success всегда false
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type SearchData struct {
	Items      []domain.BidAnnouncement `json:"items"`
	TotalCount int                      `json:"totalCount"`
	PageNo     int                      `json:"pageNo"`
	NumOfRows  int                      `json:"numOfRows"`
}

type SearchResponse struct {
	Success  bool                   `json:"success"`
	Data     SearchData             `json:"data"`
	Meta     domain.AggregationMeta `json:"meta"`
	Warnings []string               `json:"warnings"`
	Cached   bool                   `json:"cached"`
}

type DetailResponse struct {
	Success bool                   `json:"success"`
	Data    domain.BidAnnouncement `json:"data"`
}

type HistoryEntry struct {
	ID              int64     `json:"id"`
	Keyword         string    `json:"keyword,omitempty"`
	InstitutionName string    `json:"institutionName,omitempty"`
	AnnouncementNo  string    `json:"announcementNo,omitempty"`
	Channel         string    `json:"channel"`
	ExpectedCalls   int       `json:"expectedCalls"`
	SuccessfulCalls int       `json:"successfulCalls"`
	PartialFailure  bool      `json:"partialFailure"`
	Cached          bool      `json:"cached"`
	ItemCount       int       `json:"itemCount"`
	TotalCount      int       `json:"totalCount"`
	Error           string    `json:"error,omitempty"`
	DurationMS      int64     `json:"durationMs"`
	CreatedAt       time.Time `json:"createdAt"`
}

type HistoryResponse struct {
	Success bool           `json:"success"`
	Data    []HistoryEntry `json:"data"`
}

func newSearchResponse(res *domain.AggregationResult, includeRaw bool) SearchResponse {
	items := make([]domain.BidAnnouncement, len(res.Items))
	for i, it := range res.Items {
		if includeRaw {
			items[i] = it
		} else {
			items[i] = it.WithoutRaw()
		}
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return SearchResponse{
		Success: true,
		Data: SearchData{
			Items:      items,
			TotalCount: res.TotalCount,
			PageNo:     res.PageNo,
			NumOfRows:  res.NumOfRows,
		},
		Meta:     res.Meta,
		Warnings: warnings,
		Cached:   res.Cached,
	}
}

func newHistoryResponse(records []domain.SearchRecord) HistoryResponse {
	entries := make([]HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = HistoryEntry{
			ID:              r.ID,
			Keyword:         r.Keyword,
			InstitutionName: r.InstitutionName,
			AnnouncementNo:  r.AnnouncementNo,
			Channel:         r.Channel,
			ExpectedCalls:   r.ExpectedCalls,
			SuccessfulCalls: r.SuccessfulCalls,
			PartialFailure:  r.PartialFailure,
			Cached:          r.Cached,
			ItemCount:       r.ItemCount,
			TotalCount:      r.TotalCount,
			Error:           r.ErrorMessage,
			DurationMS:      r.Duration.Milliseconds(),
			CreatedAt:       r.CreatedAt,
		}
	}
	return HistoryResponse{Success: true, Data: entries}
}

// errorStatus - единственное место, где ошибки превращаются в HTTP-коды
func errorStatus(err error) (int, ErrorResponse) {
	var tf *domain.TotalFailureError

	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: err.Error()}
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError, ErrorResponse{Error: "bid search api is not configured", Details: "G2B_API_KEY is not set"}
	case errors.As(err, &tf):
		switch {
		case tf.AllOfKind(domain.FailureResultCode):
			// бизнес-ошибка G2B (ключ, лимит, параметры) отдается как есть
			return http.StatusBadRequest, ErrorResponse{Error: "upstream rejected the request", Details: tf.Diagnostic()}
		case tf.AllOfKind(domain.FailureTimeout):
			return http.StatusGatewayTimeout, ErrorResponse{Error: "upstream timed out", Details: tf.Diagnostic()}
		default:
			return http.StatusInternalServerError, ErrorResponse{Error: "all upstream calls failed", Details: tf.Diagnostic()}
		}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "bid announcement not found", Details: err.Error()}
	case errors.Is(err, domain.ErrHistoryDisabled):
		return http.StatusNotFound, ErrorResponse{Error: "search history is disabled", Details: "DATABASE_URL is not set"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Details: err.Error()}
	}
}
