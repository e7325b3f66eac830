package security

import (
	"sync"
	"time"

	"rendezvous/internal/clock"
)

// Action identifies one of the three rate-limited action classes.
type Action string

const (
	ActionMessage Action = "message"
	ActionSkip    Action = "skip"
	ActionReport  Action = "report"
)

type actionLimit struct {
	limit  int
	window time.Duration
}

// RateLimiter enforces a sliding-window cap per (userId, action).
type RateLimiter struct {
	mu      sync.Mutex
	clk     clock.Clock
	windows map[string][]time.Time
	limits  map[Action]actionLimit
}

// NewRateLimiter constructs a limiter with the three configured action
// classes.
func NewRateLimiter(clk clock.Clock, messagesPerMinute, skipsPerMinute, reportsPerHour int) *RateLimiter {
	return &RateLimiter{
		clk:     clk,
		windows: make(map[string][]time.Time),
		limits: map[Action]actionLimit{
			ActionMessage: {limit: messagesPerMinute, window: time.Minute},
			ActionSkip:    {limit: skipsPerMinute, window: time.Minute},
			ActionReport:  {limit: reportsPerHour, window: time.Hour},
		},
	}
}

// CheckRateLimit trims userId's window for action and reports whether
// the action is admitted, appending a timestamp on success. Never
// returns an error: a cap hit is a normal, expected outcome.
func (r *RateLimiter) CheckRateLimit(userID string, action Action) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.limits[action]
	if !ok {
		return true
	}

	key := userID + ":" + string(action)
	now := r.clk.Now()
	cutoff := now.Add(-cfg.window)

	existing := r.windows[key]
	trimmed := existing[:0]
	for _, ts := range existing {
		if ts.After(cutoff) {
			trimmed = append(trimmed, ts)
		}
	}

	if len(trimmed) >= cfg.limit {
		r.windows[key] = trimmed
		return false
	}

	r.windows[key] = append(trimmed, now)
	return true
}

// Sweep drops windows that have gone empty after trimming, bounding
// memory growth across user churn.
func (r *RateLimiter) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clk.Now()
	reclaimed := 0
	for key, window := range r.windows {
		cutoff := now.Add(-time.Hour)
		trimmed := window[:0]
		for _, ts := range window {
			if ts.After(cutoff) {
				trimmed = append(trimmed, ts)
			}
		}
		if len(trimmed) == 0 {
			delete(r.windows, key)
			reclaimed++
		} else {
			r.windows[key] = trimmed
		}
	}
	return reclaimed
}
