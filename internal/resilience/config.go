package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Backend configuration: a translation backend that keeps timing out is skipped
	// for a while so each tick degrades to the original text immediately.
	BackendThreshold         = 3
	BackendResetTimeout      = 20 * time.Second
	BackendHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
	Countable         func(error) bool
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// BackendConfig returns settings for translation backend calls.
func BackendConfig(countable func(error) bool) Config {
	return Config{
		Threshold:         BackendThreshold,
		ResetTimeout:      BackendResetTimeout,
		HalfOpenSuccesses: BackendHalfOpenSuccesses,
		Countable:         countable,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
