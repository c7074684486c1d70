package broker

import (
	"context"
	"math"
	"time"

	"github.com/aristath/questrade-sentinel/internal/domain"
)

// RetryBudget bounds exponential backoff retries for Transient/RateLimited
// errors (spec §4.2, §7). Auth and Permanent/Malformed errors are never
// retried by this helper — callers should check the error kind first.
type RetryBudget struct {
	MaxAttempts int           // total attempts including the first, default 3
	BaseDelay   time.Duration // default 250ms
	MaxTotal    time.Duration // default 30s budget across all attempts
}

// DefaultRetryBudget is used by the Questrade client for 429/5xx responses.
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, MaxTotal: 30 * time.Second}
}

// Do runs fn, retrying while it returns a *domain.BrokerError whose Kind is
// RateLimited or Transient, up to b.MaxAttempts, honoring any retryAfter
// floor the caller reports via the second return value of fn. It surfaces
// the last error once the budget (attempts or MaxTotal) is exhausted.
func Do(ctx context.Context, b RetryBudget, fn func(attempt int) (retryAfter time.Duration, err error)) error {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 3
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = 250 * time.Millisecond
	}
	if b.MaxTotal <= 0 {
		b.MaxTotal = 30 * time.Second
	}

	deadline := time.Now().Add(b.MaxTotal)
	var lastErr error

	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		retryAfter, err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		var brokerErr *domain.BrokerError
		retryable := false
		if ae, ok := err.(*domain.BrokerError); ok {
			brokerErr = ae
			retryable = brokerErr.Kind == domain.BrokerErrRateLimited || brokerErr.Kind == domain.BrokerErrTransient
		}
		if !retryable || attempt == b.MaxAttempts {
			return err
		}

		delay := backoffDelay(b.BaseDelay, attempt)
		if retryAfter > delay {
			delay = retryAfter
		}
		if time.Now().Add(delay).After(deadline) {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
}
