// Package cache provides the bounded in-session translation cache.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the entry bound when none is configured.
const DefaultSize = 1000

// Key identifies a translation. A hit for one target never satisfies another.
type Key struct {
	Text   string
	Source string
	Target string
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Size   int    `json:"size"`
	Max    int    `json:"max"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// TranslationCache is an LRU map from (text, source, target) to translated text.
// Safe for concurrent use.
type TranslationCache struct {
	lru    *lru.Cache[Key, string]
	max    int
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding at most size entries.
func New(size int) *TranslationCache {
	if size <= 0 {
		size = DefaultSize
	}
	// lru.New only fails for non-positive sizes.
	c, _ := lru.New[Key, string](size)
	return &TranslationCache{lru: c, max: size}
}

// Get returns the cached translation and promotes it to most recently used.
func (c *TranslationCache) Get(text, source, target string) (string, bool) {
	v, ok := c.lru.Get(Key{Text: text, Source: source, Target: target})
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put inserts or overwrites an entry, evicting the least recently used one when full.
func (c *TranslationCache) Put(text, translation, source, target string) {
	c.lru.Add(Key{Text: text, Source: source, Target: target}, translation)
}

// Contains reports presence without touching recency or counters.
func (c *TranslationCache) Contains(text, source, target string) bool {
	return c.lru.Contains(Key{Text: text, Source: source, Target: target})
}

// Len returns the number of entries.
func (c *TranslationCache) Len() int { return c.lru.Len() }

// Stats returns current counters.
func (c *TranslationCache) Stats() Stats {
	return Stats{
		Size:   c.lru.Len(),
		Max:    c.max,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
