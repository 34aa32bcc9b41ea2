package outbound

import (
	"context"
	"sync"
	"time"
)

// RateWindow admits or rejects a call against target. Reserve records the
// call when admitted and returns *RateLimitError when the window is full.
type RateWindow interface {
	Reserve(ctx context.Context, target string) error
}

type Limit struct {
	Calls  int
	Window time.Duration
}

// SlidingWindow keeps the timestamps of recent calls per target in memory.
// The prune-count-append sequence runs under one mutex so concurrent callers
// cannot jointly exceed a limit. It does not coordinate across processes.
type SlidingWindow struct {
	mu       sync.Mutex
	limits   map[string]Limit
	fallback Limit
	calls    map[string][]time.Time
	now      func() time.Time
}

func NewSlidingWindow(fallback Limit, limits map[string]Limit) *SlidingWindow {
	copied := make(map[string]Limit, len(limits))
	for target, limit := range limits {
		copied[target] = limit
	}

	return &SlidingWindow{
		limits:   copied,
		fallback: fallback,
		calls:    map[string][]time.Time{},
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (w *SlidingWindow) SetClock(now func() time.Time) {
	w.mu.Lock()
	w.now = now
	w.mu.Unlock()
}

func (w *SlidingWindow) Reserve(_ context.Context, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	limit := w.limitFor(target)
	if limit.Calls <= 0 || limit.Window <= 0 {
		return nil
	}

	now := w.now()
	cutoff := now.Add(-limit.Window)

	recent := w.calls[target]
	kept := recent[:0]
	for _, at := range recent {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= limit.Calls {
		w.calls[target] = kept
		retryAfter := kept[0].Add(limit.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &RateLimitError{Target: target, RetryAfter: retryAfter}
	}

	w.calls[target] = append(kept, now)
	return nil
}

// InFlight returns how many calls to target are inside the current window.
func (w *SlidingWindow) InFlight(target string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	limit := w.limitFor(target)
	cutoff := w.now().Add(-limit.Window)
	count := 0
	for _, at := range w.calls[target] {
		if at.After(cutoff) {
			count++
		}
	}
	return count
}

// Reset forgets every recorded call.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	w.calls = map[string][]time.Time{}
	w.mu.Unlock()
}

func (w *SlidingWindow) limitFor(target string) Limit {
	if limit, ok := w.limits[target]; ok {
		return limit
	}
	return w.fallback
}
