package ratelimit

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry applies one rate policy to many independent keys, one Limiter
// per key. It is the building block for per-client or per-route limiting,
// where the set of keys is open-ended.
//
// Key cardinality is bounded: the registry holds at most maxEntries live
// limiters and evicts the least recently used one beyond that. An evicted
// key that reappears gets a fresh, full limiter — indistinguishable from a
// bucket that sat idle long enough to refill, which is exactly the kind of
// key eviction targets.
type Registry struct {
	cache *lru.Cache[string, *Limiter]
	rate  atomic.Int64
	per   time.Duration
	opts  []Option

	// serializes the miss path only; hits go straight to the cache
	mu sync.Mutex
}

// NewRegistry creates a registry admitting rate tokens per period for each
// key, holding at most maxEntries limiters. Rate and period are coerced
// the same way New coerces them.
func NewRegistry(rate int64, per time.Duration, maxEntries int, opts ...Option) (*Registry, error) {
	if maxEntries < 1 {
		return nil, errors.New("ratelimit: registry size must be at least 1")
	}
	cache, err := lru.New[string, *Limiter](maxEntries)
	if err != nil {
		return nil, err
	}

	if rate < 1 {
		rate = 1
	}
	r := &Registry{
		cache: cache,
		per:   per,
		opts:  opts,
	}
	r.rate.Store(rate)
	return r, nil
}

// Limit reports whether key is rate-limited, consuming one of its tokens
// when it is not.
func (r *Registry) Limit(key string) bool {
	return r.limiter(key).Limit()
}

// Undo refunds one token to key. See Limiter.Undo for the pairing
// contract.
func (r *Registry) Undo(key string) {
	r.limiter(key).Undo()
}

// UpdateRate changes the rate for all current and future keys. Rates
// below 1 are raised to 1.
func (r *Registry) UpdateRate(rate int64) {
	if rate < 1 {
		rate = 1
	}
	r.rate.Store(rate)
	for _, l := range r.cache.Values() {
		l.UpdateRate(rate)
	}
}

// Rate returns the currently configured per-key rate.
func (r *Registry) Rate() int64 {
	return r.rate.Load()
}

// Len returns the number of live limiters.
func (r *Registry) Len() int {
	return r.cache.Len()
}

func (r *Registry) limiter(key string) *Limiter {
	if l, ok := r.cache.Get(key); ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.cache.Get(key); ok {
		return l
	}
	l := New(r.rate.Load(), r.per, r.opts...)
	r.cache.Add(key, l)
	return l
}
