package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	defaultHourlyCeiling = 5000
	defaultSafetyMargin  = 100
	defaultMinDelay      = 2 * time.Second
	rateWindow           = time.Hour
)

// RateLimiterState paces requests for one Gateway. Counters live only in
// memory and reset when the hour window elapses. Two gateways share a state
// only when one is passed to both through WithRateLimiter
type RateLimiterState struct {
	mu sync.Mutex

	ceiling  int
	margin   int
	minDelay time.Duration

	count       int
	windowStart time.Time
	last        time.Time

	// set from response headers when upstream says the budget is nearly gone
	exhaustedUntil time.Time
}

// NewRateLimiterState builds a state. A non-positive ceiling means 5000/h;
// a negative margin or delay takes the default (100, 2s)
func NewRateLimiterState(ceiling, margin int, minDelay time.Duration) *RateLimiterState {
	if ceiling <= 0 {
		ceiling = defaultHourlyCeiling
	}
	if margin < 0 || margin >= ceiling {
		margin = defaultSafetyMargin
	}
	if minDelay < 0 {
		minDelay = defaultMinDelay
	}
	return &RateLimiterState{ceiling: ceiling, margin: margin, minDelay: minDelay}
}

// Acquire blocks until a request may be sent, then records the send
func (s *RateLimiterState) Acquire(ctx context.Context, now func() time.Time, sleep func(context.Context, time.Duration) error) error {
	for {
		wait := s.reserve(now())
		if wait <= 0 {
			return nil
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve records a send at t and returns 0, or returns how long to wait
func (s *RateLimiterState) reserve(t time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.exhaustedUntil.IsZero() {
		if t.Before(s.exhaustedUntil) {
			return s.exhaustedUntil.Sub(t)
		}
		s.exhaustedUntil = time.Time{}
		s.windowStart, s.count = t, 0
	}
	if s.windowStart.IsZero() || t.Sub(s.windowStart) >= rateWindow {
		s.windowStart, s.count = t, 0
	}
	if s.count >= s.ceiling-s.margin {
		return s.windowStart.Add(rateWindow).Sub(t)
	}
	if !s.last.IsZero() {
		if since := t.Sub(s.last); since < s.minDelay {
			return s.minDelay - since
		}
	}
	s.count++
	s.last = t
	return 0
}

// Observe folds X-RateLimit-Remaining and X-RateLimit-Reset into the state.
// A remaining count at or below the margin parks sends until the reset
func (s *RateLimiterState) Observe(h http.Header) {
	rem, err := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || reset <= 0 {
		return
	}
	if rem > s.margin {
		return
	}
	s.mu.Lock()
	s.exhaustedUntil = time.Unix(reset, 0)
	s.mu.Unlock()
}

// Count returns requests recorded in the current window
func (s *RateLimiterState) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
