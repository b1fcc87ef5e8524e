// Package retry - повтор вызова upstream с фиксированной паузой.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

type Policy struct {
	// Attempts - всего попыток, включая первую
	Attempts int
	Delay    time.Duration
	// Retryable решает, стоит ли повторять ошибку. nil - не повторять ничего.
	Retryable func(error) bool
	// OnRetry вызывается перед каждой паузой
	OnRetry func(err error, attempt int, wait time.Duration)
}

func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		Attempts:  DefaultAttempts,
		Delay:     DefaultDelay,
		Retryable: retryable,
	}
}

// Do выполняет fn до Attempts раз с паузой Delay, без роста и jitter.
// Возвращает последнюю ошибку fn, даже если ожидание прервал ctx.
func Do[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Delay
	if delay < 0 {
		delay = 0
	}

	var lastErr error
	op := func() (T, error) {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if p.Retryable == nil || !p.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)), ctx)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		if p.OnRetry != nil {
			p.OnRetry(err, attempt, wait)
		}
	}

	v, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil && lastErr != nil && ctx.Err() != nil {
		return v, lastErr
	}
	return v, err
}
