package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	apperrors "github.com/GriffinCanCode/polyglot/internal/errors"
	"github.com/GriffinCanCode/polyglot/internal/trace"
)

const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2

	// Startup probes run once per session
	ProbeMaxRetries = 2
	ProbeBaseDelay  = 250 * time.Millisecond
	ProbeMaxDelay   = 2 * time.Second

	maxShift = 6
)

// RetryConfig holds retry settings. Zero fields take the defaults above,
// except JitterFactor where zero means no jitter.
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool
}

// ProbeRetryConfig returns settings for backend health probes.
func ProbeRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   ProbeMaxRetries,
		BaseDelay:    ProbeBaseDelay,
		MaxDelay:     ProbeMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  apperrors.IsRetryable,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or
// MaxRetries extra attempts are spent. A RetryAfter hint on an AppError
// stretches the wait up to MaxDelay.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	log := trace.Logger(ctx)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt >= cfg.MaxRetries || !cfg.IsRetryable(err) {
			return err
		}

		delay := cfg.wait(attempt, err)
		log.Debug("retrying", "attempt", attempt+1, "of", cfg.MaxRetries, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// wait picks the pause before the next attempt.
func (c RetryConfig) wait(attempt int, err error) time.Duration {
	d := backoffDelay(c, attempt)
	if appErr, ok := apperrors.As(err); ok && appErr.RetryAfter > d {
		d = min(appErr.RetryAfter, c.MaxDelay)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay doubles BaseDelay per attempt, caps at MaxDelay and spreads
// the result by ±JitterFactor/2.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	d := min(cfg.BaseDelay<<min(attempt, maxShift), cfg.MaxDelay)
	if cfg.JitterFactor == 0 {
		return d
	}
	spread := float64(d) * cfg.JitterFactor * (rand.Float64() - 0.5)
	return d + time.Duration(spread)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = DefaultJitterFactor
	}
	if c.IsRetryable == nil {
		c.IsRetryable = apperrors.IsRetryable
	}
	return c
}
