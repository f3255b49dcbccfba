package stats

import (
	"sync"

	"github.com/quantsentry/sentinel/pkg/types"
)

// Summary is a snapshot of historical trade statistics
type Summary struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64
	AvgWin      float64 // average winning PnL, positive
	AvgLoss     float64 // average losing PnL, positive magnitude
}

// WinLossRatio returns AvgWin/AvgLoss, or 0 when undefined
func (s Summary) WinLossRatio() float64 {
	if s.AvgLoss <= 0 {
		return 0
	}
	return s.AvgWin / s.AvgLoss
}

// History is an append-only store of closed trades. Readers always get
// consistent snapshots; appends never invalidate an in-progress read.
type History struct {
	mu     sync.RWMutex
	trades []types.TradeRecord
}

// NewHistory creates an empty trade history
func NewHistory() *History {
	return &History{}
}

// NewHistoryFrom seeds the history with previously recorded trades,
// typically loaded from the ledger at startup.
func NewHistoryFrom(trades []types.TradeRecord) *History {
	h := &History{trades: make([]types.TradeRecord, len(trades))}
	copy(h.trades, trades)
	return h
}

// Append records a closed trade
func (h *History) Append(trade types.TradeRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = append(h.trades, trade)
}

// Len returns the number of recorded trades
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.trades)
}

// Snapshot returns a copy of all recorded trades
func (h *History) Snapshot() []types.TradeRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.TradeRecord, len(h.trades))
	copy(out, h.trades)
	return out
}

// Summarize computes win rate and average win/loss over the whole history
func (h *History) Summarize() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var s Summary
	var winSum, lossSum float64

	for _, t := range h.trades {
		s.TotalTrades++
		if t.Win() {
			s.Wins++
			winSum += t.PnL
		} else {
			s.Losses++
			lossSum += -t.PnL
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWin = winSum / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = lossSum / float64(s.Losses)
	}
	return s
}
