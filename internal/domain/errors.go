package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotConfigured = errors.New("bid search api is not configured")
)

var (
	ErrMalformedRequest      = errors.New("malformed request")
	ErrInvalidDate           = fmt.Errorf("%w: invalid date", ErrMalformedRequest)
	ErrInvalidDateRange      = fmt.Errorf("%w: dateFrom is after dateTo", ErrMalformedRequest)
	ErrMissingDateRange      = fmt.Errorf("%w: date range is required", ErrMalformedRequest)
	ErrMissingAnnouncementNo = fmt.Errorf("%w: bidNtceNo is required for exact lookup", ErrMalformedRequest)
)

var (
	ErrAllCallsFailed = errors.New("all upstream calls failed")
)

var (
	ErrRecordNotFound  = errors.New("search record not found")
	ErrHistoryDisabled = errors.New("search history is not configured")
)

// FailureKind - почему упал отдельный вызов upstream
type FailureKind string

const (
	FailureTransport  FailureKind = "transport"
	FailureTimeout    FailureKind = "timeout"
	FailureHTTPStatus FailureKind = "http_status"
	FailureParse      FailureKind = "parse"
	FailureResultCode FailureKind = "result_code"
)

type CallFailure struct {
	Category   Category
	Pass       string
	Kind       FailureKind
	StatusCode int
	Message    string
}

func (f CallFailure) String() string {
	name := string(f.Category)
	if f.Pass != "" {
		name += " [" + f.Pass + "]"
	}
	return fmt.Sprintf("%s call failed (%s): %s", name, f.Kind, f.Message)
}

// TotalFailureError - ни один вызов не дал resultCode "00" (или не набран порог)
type TotalFailureError struct {
	Failures        []CallFailure
	ExpectedCalls   int
	SuccessfulCalls int
}

func (e *TotalFailureError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s: %d/%d calls succeeded", ErrAllCallsFailed, e.SuccessfulCalls, e.ExpectedCalls)
	}
	return fmt.Sprintf("%s (%d/%d succeeded): %s", ErrAllCallsFailed, e.SuccessfulCalls, e.ExpectedCalls, e.Diagnostic())
}

func (e *TotalFailureError) Unwrap() error {
	return ErrAllCallsFailed
}

// Diagnostic - первая причина плюс число остальных, для поля details
func (e *TotalFailureError) Diagnostic() string {
	if len(e.Failures) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e.Failures))
	seen := make(map[string]bool)
	for _, f := range e.Failures {
		if seen[f.Message] {
			continue
		}
		seen[f.Message] = true
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// AllOfKind - все ли упавшие вызовы упали одинаково
func (e *TotalFailureError) AllOfKind(kind FailureKind) bool {
	if len(e.Failures) == 0 {
		return false
	}
	for _, f := range e.Failures {
		if f.Kind != kind {
			return false
		}
	}
	return true
}
