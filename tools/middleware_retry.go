package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/petal-labs/azresponses/core"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64

	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(error) bool
}

// DefaultRetryConfig retries timeouts and retryable API errors (a tool
// that itself calls the service) three times.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Retryable: func(err error) bool {
			return errors.Is(err, ErrToolTimeout) || core.IsRetryable(err)
		},
	}
}

// WithRetry creates middleware that retries failed tool calls with
// exponential backoff.
func WithRetry(config RetryConfig) Middleware {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			var lastErr error
			wait := config.InitialWait

			for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
				result, err := next(ctx, args)
				if err == nil {
					return result, nil
				}
				lastErr = err

				if config.Retryable != nil && !config.Retryable(err) {
					return nil, err
				}
				if attempt == config.MaxAttempts {
					break
				}

				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
				}

				wait = time.Duration(float64(wait) * config.Multiplier)
				if config.MaxWait > 0 && wait > config.MaxWait {
					wait = config.MaxWait
				}
			}

			return nil, fmt.Errorf("tool %s failed after %d attempts: %w", toolName(ctx), config.MaxAttempts, lastErr)
		}
	}
}
