package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	kit "contribot/internal/platform/testkit"
)

// fakeClock advances only when something sleeps on it
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

func TestAcquireHonoursMinDelay(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := NewRateLimiterState(5000, 100, 2*time.Second)
	for range 3 {
		kit.NoErr(t, s.Acquire(context.Background(), clk.Now, clk.Sleep))
	}
	slept := clk.Slept()
	kit.MustEqual(t, len(slept), 2, "sleeps")
	for _, d := range slept {
		kit.MustEqual(t, d, 2*time.Second, "sleep length")
	}
	kit.MustEqual(t, s.Count(), 3, "count")
}

func TestAcquireWaitsForWindowAtCeiling(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := NewRateLimiterState(3, 1, 0)
	for range 3 {
		kit.NoErr(t, s.Acquire(context.Background(), clk.Now, clk.Sleep))
	}
	slept := clk.Slept()
	if len(slept) != 1 || slept[0] != time.Hour {
		t.Fatalf("want one full-window wait, got %v", slept)
	}
	kit.MustEqual(t, s.Count(), 1, "count after window reset")
}

func TestObserveParksUntilReset(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := NewRateLimiterState(5000, 100, 0)

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "50")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(clk.Now().Add(10*time.Minute).Unix(), 10))
	s.Observe(h)

	kit.NoErr(t, s.Acquire(context.Background(), clk.Now, clk.Sleep))
	slept := clk.Slept()
	if len(slept) != 1 || slept[0] != 10*time.Minute {
		t.Fatalf("want a wait until reset, got %v", slept)
	}

	// plenty left: no parking
	h.Set("X-RateLimit-Remaining", "4000")
	h.Set("X-RateLimit-Reset", strconv.FormatInt(clk.Now().Add(time.Hour).Unix(), 10))
	s.Observe(h)
	kit.NoErr(t, s.Acquire(context.Background(), clk.Now, clk.Sleep))
	kit.MustEqual(t, len(clk.Slept()), 1, "no extra wait")
}

func TestAcquireStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := NewRateLimiterState(5000, 0, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	now := time.Now
	sleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	kit.NoErr(t, s.Acquire(ctx, now, sleep))
	if err := s.Acquire(ctx, now, sleep); err == nil {
		t.Fatal("second acquire should surface the cancellation")
	}
}
