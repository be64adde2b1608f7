// Package ratelimit implements a lock-free token-bucket rate limiter with
// nanosecond resolution.
//
// A Limiter holds a budget ("allowance") denominated in nanosecond-scaled
// units: one token costs exactly unit nanoseconds of allowance, where unit
// is the configured period. The budget refills continuously at rate tokens
// per period up to a ceiling of rate*unit, and each admitted call consumes
// one token.
//
// All state lives in independent atomic words, so any number of goroutines
// may share one Limiter without extra synchronization. No call ever blocks;
// the only loop is a compare-and-swap retry that spins solely on genuine
// contention.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Limiter is a token-bucket rate limiter safe for concurrent use by any
// number of goroutines.
//
// The arithmetic is unsigned 64-bit: rate multiplied by the period in
// nanoseconds must fit in a uint64. Any rate below ~1.8e10 tokens per
// one-second period is safe; configurations beyond that wrap and are
// unsupported.
//
// The zero value is not usable; construct with New.
type Limiter struct {
	rate      atomic.Uint64
	allowance atomic.Uint64
	max       atomic.Uint64
	lastCheck atomic.Uint64
	unit      uint64
	now       Clock
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the system time source. Intended for tests that need
// deterministic control over elapsed time.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.now = c
		}
	}
}

// New creates a limiter that admits rate tokens per period.
//
// A rate below 1 is silently raised to 1, and a period shorter than one
// nanosecond is replaced by one second; invalid inputs are coerced rather
// than rejected. The limiter starts with a full budget, so the first rate
// calls to Limit within the first period are guaranteed to pass.
func New(rate int64, per time.Duration, opts ...Option) *Limiter {
	nanos := per.Nanoseconds()
	if nanos < 1 {
		nanos = time.Second.Nanoseconds()
	}
	if rate < 1 {
		rate = 1
	}

	l := &Limiter{
		unit: uint64(nanos),
		now:  systemClock,
	}
	for _, opt := range opts {
		opt(l)
	}

	l.rate.Store(uint64(rate))
	l.allowance.Store(uint64(rate) * l.unit)
	l.max.Store(uint64(rate) * l.unit)
	l.lastCheck.Store(uint64(l.now()))
	return l
}

// Rate returns the currently configured rate.
func (l *Limiter) Rate() int64 {
	return int64(l.rate.Load())
}

// UpdateRate changes the admitted rate. Rates below 1 are raised to 1.
//
// The current allowance is not rescaled: shrinking the rate leaves any
// banked allowance above the new ceiling in place until the next Limit
// call clamps it, so reductions take effect gradually instead of
// discarding budget the caller already earned.
func (l *Limiter) UpdateRate(rate int64) {
	if rate < 1 {
		rate = 1
	}
	l.rate.Store(uint64(rate))
	l.max.Store(uint64(rate) * l.unit)
}

// Limit reports whether the caller is rate-limited. A false return has
// consumed one token; a true return consumed nothing.
func (l *Limiter) Limit() bool {
	rate := l.rate.Load()

	// Nanoseconds since the last evaluation by any goroutine. Each call
	// claims its own slice of elapsed time by displacing lastCheck, so
	// concurrent callers split wall time between them instead of each
	// counting it in full. A clock regression reads as zero elapsed.
	now := uint64(l.now())
	last := l.lastCheck.Swap(now)
	var passed uint64
	if now > last {
		passed = now - last
	}

	// Accrue the earned allowance. On contention only the base value is
	// reloaded; passed stays fixed, since this call's time slice was
	// already claimed above.
	prev := l.allowance.Load()
	curr := prev + passed*rate
	for !l.allowance.CompareAndSwap(prev, curr) {
		prev = l.allowance.Load()
		curr = prev + passed*rate
	}

	// Clamp at the ceiling. The subtract is a separate atomic step, so
	// the stored balance can sit above max for an instant under
	// contention; the next call corrects it.
	if max := l.max.Load(); curr >= max {
		l.allowance.Add(max - curr) // wrapping add, removes the excess
		curr = max
	}

	if curr < l.unit {
		return true
	}

	l.allowance.Add(^(l.unit - 1)) // consume one token
	return false
}

// Undo returns the token consumed by the most recent admitted Limit call.
// Use it when the guarded action ultimately did not happen.
//
// Undo always succeeds. Calling it without a matching admitted Limit
// over-credits the budget; pairing the two correctly is the caller's
// contract.
func (l *Limiter) Undo() {
	max := l.max.Load()
	prev := l.allowance.Add(l.unit) - l.unit
	if prev >= max {
		// The budget was already at the ceiling; pull the refund back.
		// The balance may still sit up to one unit above max until the
		// next Limit evaluation clamps it.
		l.allowance.Add(max - prev)
	}
}
