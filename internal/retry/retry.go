package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Config configures bounded retries.
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
	// RetryIf reports whether err is transient. Everything else stops
	// the loop immediately.
	RetryIf func(error) bool
	// OnRetry is called before each sleep.
	OnRetry func(err error, delay time.Duration)
}

// DefaultConfig returns three attempts with 20ms..200ms exponential backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the attempt
// budget is spent or ctx is done. Only idempotent operations may be passed.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 20 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff

	op := func() (T, error) {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if cfg.RetryIf == nil || !cfg.RetryIf(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
	}
	if cfg.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(cfg.OnRetry))
	}
	return backoff.Retry(ctx, op, opts...)
}
