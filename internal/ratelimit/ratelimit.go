// Package ratelimit provides per-client admission control for the expensive
// endpoints. The window is fixed and reseeded per key: the first request
// from a key opens its window, and the whole window resets once it elapses.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check. RetryAfter is only set
// when the request is denied.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type window struct {
	first time.Time
	count int
}

// Limiter counts requests per key inside a fixed window. Expired entries
// are pruned lazily on the next check after a full window has passed since
// the previous sweep, which bounds memory without a background goroutine.
type Limiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	entries   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

// New creates a limiter allowing limit requests per windowSize and key.
func New(limit int, windowSize time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  windowSize,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

// Check admits or denies one request for key. A denial never mutates the
// window; the caller is told how long to wait instead.
func (l *Limiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	w, ok := l.entries[key]
	if !ok || now.Sub(w.first) >= l.window {
		l.entries[key] = &window{first: now, count: 1}
		return Decision{Allowed: true}
	}
	if w.count >= l.limit {
		return Decision{Allowed: false, RetryAfter: l.window - now.Sub(w.first)}
	}
	w.count++
	return Decision{Allowed: true}
}

func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	for key, w := range l.entries {
		if now.Sub(w.first) >= l.window {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}
