package embcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is how long a cached embedding stays fresh
	DefaultTTL = time.Hour
	// DefaultKeyChars is the text prefix length used as the cache key
	DefaultKeyChars = 100
)

// Embedder is the provider the cache sits in front of
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds the cache settings. Zero values fall back to the defaults.
type Config struct {
	TTL      time.Duration
	KeyChars int
	// Clock returns the current time; time.Now when nil
	Clock func() time.Time
	// CacheTotal counts lookups with label "result" ("hit"/"miss")
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

type entry struct {
	vector   []float32
	storedAt time.Time
}

// Cache is a process-wide in-memory embedding cache keyed by a text prefix.
//
// Texts that share the first KeyChars characters share an entry. Stale
// entries are only replaced when read again, so memory grows with the number
// of distinct prefixes seen. Two concurrent misses on one key both call the
// provider and the last write wins.
type Cache struct {
	inner      Embedder
	ttl        time.Duration
	keyChars   int
	now        func() time.Time
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a caching decorator around inner
func New(inner Embedder, cfg Config) *Cache {
	c := &Cache{
		inner:      inner,
		ttl:        cfg.TTL,
		keyChars:   cfg.KeyChars,
		now:        cfg.Clock,
		cacheTotal: cfg.CacheTotal,
		logger:     cfg.Logger,
		entries:    make(map[string]entry),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.keyChars <= 0 {
		c.keyChars = DefaultKeyChars
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Embed returns a fresh cached vector or calls the provider and stores the result.
// Empty vectors are never stored.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := c.Lookup(text); ok {
		c.incCache("hit")
		return vec, nil
	}
	c.incCache("miss")

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	c.Store(text, vec)
	return vec, nil
}

// Lookup returns a copy of the cached vector for text if it is younger than the TTL
func (c *Cache) Lookup(text string) ([]float32, bool) {
	key := c.key(text)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return nil, false
	}
	return clone(e.vector), true
}

// Store saves vec for text, replacing any previous entry
func (c *Cache) Store(text string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	key := c.key(text)

	c.mu.Lock()
	c.entries[key] = entry{vector: clone(vec), storedAt: c.now()}
	size := len(c.entries)
	c.mu.Unlock()

	c.logger.Debug("embedding cached", zap.Int("dimensions", len(vec)), zap.Int("entries", size))
}

// Len returns the number of stored entries, stale ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// key is the first keyChars characters of text
func (c *Cache) key(text string) string {
	n := 0
	for i := range text {
		if n == c.keyChars {
			return text[:i]
		}
		n++
	}
	return text
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
