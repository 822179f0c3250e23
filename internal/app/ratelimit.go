package app

import (
	"sync"
	"time"
)

type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimiter is an in-memory sliding-window limiter keyed by an
// arbitrary identifier (client ID, IP). The contract matches what a
// shared-store implementation would expose, so one could replace it
// without touching callers.
type RateLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	requests map[string][]time.Time
	now      func() time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      max,
		window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Check records a request for the identifier and reports whether it is
// within the limit.
func (l *RateLimiter) Check(identifier string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	recent := l.requests[identifier][:0:0]
	for _, t := range l.requests[identifier] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.max {
		l.requests[identifier] = recent
		return RateLimitResult{
			Allowed:   false,
			Limit:     l.max,
			Remaining: 0,
			Reset:     recent[0].Add(l.window),
		}
	}

	recent = append(recent, now)
	l.requests[identifier] = recent

	if len(l.requests) > 100 {
		l.cleanup(windowStart)
	}

	return RateLimitResult{
		Allowed:   true,
		Limit:     l.max,
		Remaining: l.max - len(recent),
		Reset:     now.Add(l.window),
	}
}

func (l *RateLimiter) cleanup(windowStart time.Time) {
	for id, times := range l.requests {
		var recent []time.Time
		for _, t := range times {
			if t.After(windowStart) {
				recent = append(recent, t)
			}
		}
		if len(recent) == 0 {
			delete(l.requests, id)
		} else {
			l.requests[id] = recent
		}
	}
}
