package safety

import (
	"sync"
	"time"
)

// RateWindow counts events inside trailing hour and day windows. It backs
// the trade-rate limits: callers record an event only after a position has
// actually opened, so rejected attempts never consume budget.
type RateWindow struct {
	mu     sync.Mutex
	events []time.Time
	now    func() time.Time
}

// NewRateWindow creates an empty rate window
func NewRateWindow() *RateWindow {
	return &RateWindow{now: time.Now}
}

// NewRateWindowWithClock creates a rate window with an injectable clock for tests
func NewRateWindowWithClock(now func() time.Time) *RateWindow {
	return &RateWindow{now: now}
}

// Record registers one event at the current time
func (w *RateWindow) Record() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()
	w.events = append(w.events, w.now())
}

// CountLastHour returns the number of events in the trailing hour
func (w *RateWindow) CountLastHour() int {
	return w.countSince(time.Hour)
}

// CountLastDay returns the number of events in the trailing 24 hours
func (w *RateWindow) CountLastDay() int {
	return w.countSince(24 * time.Hour)
}

func (w *RateWindow) countSince(window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune()

	cutoff := w.now().Add(-window)
	count := 0
	for _, ts := range w.events {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// prune discards events older than the widest window. Caller holds the lock.
func (w *RateWindow) prune() {
	cutoff := w.now().Add(-24 * time.Hour)
	kept := w.events[:0]
	for _, ts := range w.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.events = kept
}
