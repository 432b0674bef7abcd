package admission

import (
	"sync"
	"time"
)

// pruneThreshold bounds the window map. Expired windows are dropped inline once it is exceeded.
const pruneThreshold = 10000

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	count int
}

// RateLimiter is a fixed-window counter per identity key. A window resets lazily on the
// first request after it ends; there is no background sweeper.
type RateLimiter struct {
	length time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewRateLimiter(length time.Duration, max int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		length:  length,
		max:     max,
		now:     now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request for key. A nil limiter allows everything.
func (l *RateLimiter) Allow(key string) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.start.Add(l.length)) {
		if !ok && len(l.windows) >= pruneThreshold {
			l.pruneLocked(now)
		}
		w = &window{start: now}
		l.windows[key] = w
	}

	if w.count >= l.max {
		return Decision{
			Allowed:    false,
			RetryAfter: w.start.Add(l.length).Sub(now),
		}
	}
	w.count++
	return Decision{Allowed: true, Remaining: l.max - w.count}
}

// Limit is the per-window maximum.
func (l *RateLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.max
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.start.Add(l.length)) {
			delete(l.windows, key)
		}
	}
}

// Len reports the number of tracked keys.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
