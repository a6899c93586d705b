// Package retry holds the retry policy applied to listener invocations: a
// bounded attempt count and an explicit backoff schedule.
package retry

import (
	"context"
	"errors"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/angelmondragon/marketledger-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

// Policy is MaxAttempts tries with Backoff[i] slept after try i+1; the last
// entry repeats when the schedule is shorter than the attempt budget.
type Policy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

func NewPolicy(maxAttempts int, backoff []time.Duration) (Policy, error) {
	if maxAttempts <= 0 {
		return Policy{}, errors.New("max attempts must be positive")
	}
	for _, d := range backoff {
		if d < 0 {
			return Policy{}, errors.New("backoff entries must be non-negative")
		}
	}
	schedule := make([]time.Duration, len(backoff))
	copy(schedule, backoff)
	return Policy{MaxAttempts: maxAttempts, Backoff: schedule}, nil
}

// FromConfig builds the policy from MARKETLEDGER_RETRY_MAX_ATTEMPTS and MARKETLEDGER_RETRY_BACKOFF.
func FromConfig(cfg config.EngineConfig) (Policy, error) {
	schedule, err := cfg.BackoffSchedule()
	if err != nil {
		return Policy{}, err
	}
	return NewPolicy(cfg.RetryMaxAttempts, schedule)
}

// Delay returns the pause after the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 || attempt <= 0 {
		return 0
	}
	if attempt > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[attempt-1]
}

// backoff adapts the schedule to go-retry, stopping once MaxAttempts were made.
func (p Policy) backoff() goretry.Backoff {
	attempt := 0
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		if attempt >= p.MaxAttempts {
			return 0, true
		}
		return p.Delay(attempt), false
	})
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent or ctx ends. Retryability follows pkg/errors metadata.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	attempt := 0
	return goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if pkgerrors.IsRetryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}
