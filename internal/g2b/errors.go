package g2b

import (
	"context"
	"errors"
	"fmt"

	"github.com/kitbuilder587/bid-search/internal/domain"
)

// CallError - мягкий отказ одного вызова upstream.
// Наружу не пробрасывается, агрегатор превращает его в warning.
type CallError struct {
	Category   domain.Category
	Kind       domain.FailureKind
	StatusCode int
	ResultCode string
	Detail     string
	Err        error
}

func (e *CallError) Error() string {
	switch e.Kind {
	case domain.FailureHTTPStatus:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Category, e.StatusCode, e.Detail)
	case domain.FailureResultCode:
		return fmt.Sprintf("%s: resultCode %s: %s", e.Category, e.ResultCode, e.Detail)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Category, e.Kind, e.Detail)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Message - человекочитаемая причина без имени категории
func (e *CallError) Message() string {
	switch e.Kind {
	case domain.FailureHTTPStatus:
		if e.Detail == "" {
			return fmt.Sprintf("HTTP %d", e.StatusCode)
		}
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	case domain.FailureResultCode:
		return fmt.Sprintf("resultCode %s: %s", e.ResultCode, e.Detail)
	default:
		return e.Detail
	}
}

func (e *CallError) Failure(pass string) domain.CallFailure {
	return domain.CallFailure{
		Category:   e.Category,
		Pass:       pass,
		Kind:       e.Kind,
		StatusCode: e.StatusCode,
		Message:    e.Message(),
	}
}

// AsCallError приводит любую ошибку вызова к CallError.
// Таймауты контекста становятся FailureTimeout.
func AsCallError(cat domain.Category, err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Category: cat, Kind: domain.FailureTimeout, Detail: "upstream did not respond in time", Err: err}
	}
	return &CallError{Category: cat, Kind: domain.FailureTransport, Detail: err.Error(), Err: err}
}

// IsTransient - сетевые ошибки, которые имеет смысл повторить.
// Таймауты и мягкие отказы upstream не повторяем.
func IsTransient(err error) bool {
	var ce *CallError
	if !errors.As(err, &ce) {
		return false
	}
	if ce.Kind != domain.FailureTransport {
		return false
	}
	return !errors.Is(ce.Err, context.Canceled) && !errors.Is(ce.Err, domain.ErrNotConfigured)
}
