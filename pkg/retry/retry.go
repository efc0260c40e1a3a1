// Package retry wraps remote calls with the rate-limit handling every
// Telegram API operation needs: flood-wait signals are honored by sleeping
// exactly the server-requested duration, transient server/timeout errors are
// retried with exponential backoff up to a fixed ceiling, and everything else
// is returned to the caller untouched.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tgscraper/pkg/config"
	errs "tgscraper/pkg/errors"
	"tgscraper/pkg/logger"
)

// ErrExhausted marks an operation that gave up after the retry budget ran
// out. Callers must treat it as "operation skipped", not as a fatal failure.
var ErrExhausted = errors.New("operation failed after maximum retries")

// Operation is a remote call that might need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is a remote call that returns a result and might need retrying
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config holds invoker configuration
type Config struct {
	// MaxAttempts is the total number of times an operation is executed
	// before giving up on transient errors
	MaxAttempts int
	// Backoff strategy for transient errors
	Backoff BackoffStrategy
	// MaxFloodWaits caps how many flood-wait signals one operation will
	// honor. Flood waits never consume the transient budget; this cap is
	// the only bound on them (0 means unlimited).
	MaxFloodWaits int
	// OnRetry is called before each transient retry sleep
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultConfig returns an invoker configuration with the defaults the tool
// has always used: 5 attempts, 2s base delay, flood waits capped at 5.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   5,
		Backoff:       DefaultExponentialBackoff(),
		MaxFloodWaits: 5,
		Logger:        logger.GetLogger(),
	}
}

// FromRateLimitConfig builds an invoker configuration from the loaded
// application config.
func FromRateLimitConfig(cfg *config.RateLimitConfig, log logger.Logger) *Config {
	return &Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:  cfg.BaseDelay,
			Multiplier: 2.0,
		},
		MaxFloodWaits: cfg.MaxFloodWaits,
		Logger:        log,
	}
}

// Invoker executes remote operations with rate-limit-aware retries
type Invoker struct {
	cfg *Config
}

// NewInvoker creates a new invoker with the given configuration
func NewInvoker(cfg *Config) *Invoker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultExponentialBackoff()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	return &Invoker{cfg: cfg}
}

// Do executes an operation with retry logic.
//
// A flood-wait error sleeps the requested duration and retries without
// touching the transient budget. A retryable error sleeps the backoff delay
// and consumes one attempt. Any other error returns immediately.
func (i *Invoker) Do(ctx context.Context, op Operation) error {
	cfg := i.cfg
	attempt := 0
	floodWaits := 0
	var lastErr error

	for {
		err := op(ctx)
		if err == nil {
			if attempt > 0 || floodWaits > 0 {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempts":    attempt + 1,
					"flood_waits": floodWaits,
				})
			}
			return nil
		}
		lastErr = err

		if wait, ok := errs.AsFloodWait(err); ok {
			floodWaits++
			if cfg.MaxFloodWaits > 0 && floodWaits > cfg.MaxFloodWaits {
				cfg.Logger.ErrorWithFields("flood wait budget exceeded", map[string]interface{}{
					"flood_waits": floodWaits - 1,
					"last_error":  err.Error(),
				})
				return fmt.Errorf("%w: %d flood waits honored: %s", ErrExhausted, floodWaits-1, err)
			}

			cfg.Logger.WarnWithFields("rate limit hit, waiting", map[string]interface{}{
				"wait": wait.String(),
			})
			if werr := Wait(ctx, wait); werr != nil {
				return fmt.Errorf("retry cancelled: %w", werr)
			}
			continue
		}

		if !errs.IsRetryable(errs.TypeOf(err)) {
			cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}

		attempt++
		if attempt >= cfg.MaxAttempts {
			cfg.Logger.ErrorWithFields("operation failed after maximum retries", map[string]interface{}{
				"attempts":   attempt,
				"last_error": lastErr.Error(),
			})
			return fmt.Errorf("%w: %d attempts: %s", ErrExhausted, attempt, lastErr)
		}

		delay := cfg.Backoff.NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		cfg.Logger.WarnWithFields("transient error, retrying", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"error":        err.Error(),
			"delay":        delay.String(),
		})

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, i *Invoker, op OperationWithResult[T]) (T, error) {
	var result T

	err := i.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})

	return result, err
}

// Skipped reports whether an error from Do means the operation was given up
// on and the caller should degrade to "no result".
func Skipped(err error) bool {
	return errors.Is(err, ErrExhausted)
}
