package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"reelcast/internal/config"
)

// RetryPolicy bounds exponential backoff for retryable failures.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

// RetryPolicyFromConfig builds the shared policy from the [retry] section.
func RetryPolicyFromConfig(cfg config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Initial:     time.Duration(cfg.InitialBackoffMS) * time.Millisecond,
		Max:         time.Duration(cfg.MaxBackoffSeconds) * time.Second,
	}
}

// RetryNotify is invoked before each backoff sleep.
type RetryNotify func(err error, attempt int, delay time.Duration)

// Retry runs op until it succeeds, returns a non-retryable error, the attempt
// cap is reached, or ctx is done. A Retry-After hint on a classified error
// stretches the next delay.
func Retry(ctx context.Context, policy RetryPolicy, op func(context.Context) error, notify RetryNotify) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	if policy.Initial > 0 {
		expo.InitialInterval = policy.Initial
	}
	if policy.Max > 0 {
		expo.MaxInterval = policy.Max
	}
	expo.MaxElapsedTime = 0

	hinted := &retryAfterBackOff{BackOff: expo, max: expo.MaxInterval}
	var b backoff.BackOff = backoff.WithMaxRetries(hinted, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !Retryable(err) {
			return backoff.Permanent(err)
		}
		hinted.hint = Details(err).RetryAfter
		return err
	}
	return backoff.RetryNotify(operation, b, func(err error, delay time.Duration) {
		if notify != nil {
			notify(err, attempt, delay)
		}
	})
}

// retryAfterBackOff honors a provider Retry-After hint once, capped at max.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
	max  time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.hint > next {
		next = b.hint
		if b.max > 0 && next > b.max {
			next = b.max
		}
	}
	b.hint = 0
	return next
}
