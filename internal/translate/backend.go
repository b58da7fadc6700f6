// Package translate dispatches text to an ordered chain of translation backends.
//
// The chain is settled once by Service.Init: the first configured backend whose
// probe succeeds serves every request for the rest of the session. Failures on a
// request never surface as errors; they degrade to the original text with a
// Status describing why.
package translate

import (
	"context"
	"time"
)

// Backend is one translation service integration.
type Backend interface {
	Name() string
	// Supports reports whether target (a normalised code) is in the backend's table.
	Supports(target string) bool
	// Translate returns the translation of text. source may be SourceAuto.
	Translate(ctx context.Context, text, target, source string) (string, error)
	// Probe validates credentials and reachability.
	Probe(ctx context.Context) error
	// Timeout bounds a single Translate call.
	Timeout() time.Duration
}

// Status classifies a Result.
type Status int

const (
	Translated  Status = iota // backend output, cacheable
	Fallback                  // transient failure, original text
	Unsupported               // target not supported by the active backend
	Unavailable               // no healthy backend, identity fallback
	Empty                     // empty input, no call made
)

func (s Status) String() string {
	return [...]string{"translated", "fallback", "unsupported", "unavailable", "empty"}[s]
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is the outcome of Service.Translate.
type Result struct {
	Text    string `json:"text"`
	Backend string `json:"backend"`
	Status  Status `json:"status"`
	Source  string `json:"source"`
	Target  string `json:"target"`
}

// Cacheable reports whether the result may be stored in the translation cache.
func (r Result) Cacheable() bool { return r.Status == Translated }

// Health is a backend's state for the session.
type Health int

const (
	Standby  Health = iota // configured, not probed because a higher backend is active
	Healthy                // probed and serving
	Disabled               // probe failed, skipped for the session
)

func (h Health) String() string {
	return [...]string{"standby", "healthy", "disabled"}[h]
}

// MarshalText renders the health by name in JSON payloads.
func (h Health) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// Descriptor reports a backend for the control API.
type Descriptor struct {
	Name    string `json:"name"`
	Rank    int    `json:"rank"`
	Health  Health `json:"health"`
	Active  bool   `json:"active"`
	Reason  string `json:"reason,omitempty"`
	Circuit string `json:"circuit"`
	Trips   int64  `json:"trips"` // times the breaker opened this session
}
