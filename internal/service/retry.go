package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/provider"
	"peer-rental-core/internal/repository"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

var (
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

type retryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
	retryable    func(error) bool
	name         string
}

// RetryOption configures retry behavior using the functional options pattern.
type RetryOption func(*retryConfig) error

func WithMaxAttempts(attempts int) RetryOption {
	return func(c *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the first backoff delay. Later delays double.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = delay
		return nil
	}
}

func WithJitterFactor(factor float64) RetryOption {
	return func(c *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		c.jitterFactor = factor
		return nil
	}
}

// RetryPolicy is the resolved attempt count and delay of one retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) options() []RetryOption {
	var opts []RetryOption
	if p.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(p.MaxAttempts))
	}
	if p.BaseDelay > 0 {
		opts = append(opts, WithBaseDelay(p.BaseDelay))
	}
	return opts
}

// retryWithBackoff runs fn until it succeeds, fails with an error the config
// does not consider retryable, or runs out of attempts. The last error is
// returned unchanged.
func retryWithBackoff(ctx context.Context, name string, retryable func(error) bool, fn retryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		retryable:    retryable,
		name:         name,
	}
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !config.retryable(lastErr) {
			return lastErr
		}
		logger.Warn("Retrying operation", "operation", config.name, "attempt", attempt+1, "maxAttempts", config.maxAttempts, "error", lastErr)
	}
	return lastErr
}

func isVersionConflict(err error) bool {
	return errors.Is(err, repository.ErrVersionConflict)
}

func isProviderUnavailable(err error) bool {
	return errors.Is(err, provider.ErrUnavailable)
}
