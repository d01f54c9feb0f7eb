package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is a bounded exponential backoff.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt. Minimum 1.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval == 0 {
		b.MaxInterval = 30 * time.Second
	}
	b.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Exhaustion is wrapped with class; non-retryable
// errors and context errors are returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, class error, op func() error, notify func(error, time.Duration)) error {
	err := backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx), notify)
	if err == nil {
		return nil
	}
	if !IsRetryable(err) || ctx.Err() != nil {
		return err
	}
	return wrap(class, err)
}
