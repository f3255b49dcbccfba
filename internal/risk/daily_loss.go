package risk

import (
	"sync"
	"time"
)

// DailySummary is a snapshot of the current trading day
type DailySummary struct {
	Date              string
	RealizedPnL       float64
	TradesCount       int
	Wins              int
	Losses            int
	ConsecutiveLosses int
	PeakPnL           float64
	MaxDrawdown       float64
}

// DailyLossTracker accumulates realized P&L over the current UTC day and
// exposes the figures the risk limiter gates on. State resets automatically
// when the date rolls over.
type DailyLossTracker struct {
	mu  sync.Mutex
	now func() time.Time

	day               string // YYYY-MM-DD, UTC
	realizedPnL       float64
	tradesCount       int
	wins              int
	losses            int
	consecutiveLosses int
	peakPnL           float64
	maxDrawdown       float64
}

// NewDailyLossTracker creates a tracker starting from a clean day
func NewDailyLossTracker() *DailyLossTracker {
	return &DailyLossTracker{now: time.Now}
}

// NewDailyLossTrackerWithClock creates a tracker with an injectable clock for tests
func NewDailyLossTrackerWithClock(now func() time.Time) *DailyLossTracker {
	return &DailyLossTracker{now: now}
}

// RecordTrade folds one closed trade's realized P&L into the day
func (t *DailyLossTracker) RecordTrade(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	t.realizedPnL += pnl
	t.tradesCount++
	if pnl > 0 {
		t.wins++
		t.consecutiveLosses = 0
	} else {
		t.losses++
		t.consecutiveLosses++
	}

	if t.realizedPnL > t.peakPnL {
		t.peakPnL = t.realizedPnL
	}
	if dd := t.peakPnL - t.realizedPnL; dd > t.maxDrawdown {
		t.maxDrawdown = dd
	}
}

// RealizedLossPercent returns today's realized loss as a positive percentage
// of the given equity; 0 when the day is flat or profitable.
func (t *DailyLossTracker) RealizedLossPercent(equity float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	if t.realizedPnL >= 0 || equity <= 0 {
		return 0
	}
	return -t.realizedPnL / equity * 100
}

// Summary returns a snapshot of the current day
func (t *DailyLossTracker) Summary() DailySummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover()

	return DailySummary{
		Date:              t.day,
		RealizedPnL:       t.realizedPnL,
		TradesCount:       t.tradesCount,
		Wins:              t.wins,
		Losses:            t.losses,
		ConsecutiveLosses: t.consecutiveLosses,
		PeakPnL:           t.peakPnL,
		MaxDrawdown:       t.maxDrawdown,
	}
}

// rollover resets state when the UTC date changes. Caller holds the lock.
func (t *DailyLossTracker) rollover() {
	today := t.now().UTC().Format("2006-01-02")
	if t.day == today {
		return
	}
	t.day = today
	t.realizedPnL = 0
	t.tradesCount = 0
	t.wins = 0
	t.losses = 0
	t.consecutiveLosses = 0
	t.peakPnL = 0
	t.maxDrawdown = 0
}
