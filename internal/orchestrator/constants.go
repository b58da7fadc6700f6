// Package orchestrator runs the region monitoring loop
package orchestrator

import "time"

// Scheduler configuration constants
const (
	// Tick interval when the config leaves it unset
	DefaultUpdateInterval = 500 * time.Millisecond

	// Activity feed configuration
	ActivityMaxEntries  = 30
	ActivityEventBuffer = 100

	// Backend name recorded for translations served from the cache
	CacheBackend = "cache"
)
