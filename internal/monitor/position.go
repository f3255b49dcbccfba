package monitor

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantsentry/sentinel/pkg/types"
)

// Status is the lifecycle state of a tracked position
type Status string

const (
	StatusOpen           Status = "OPEN"
	StatusPartialExit    Status = "PARTIAL_EXIT"
	StatusSLClosed       Status = "SL_CLOSED"
	StatusTPClosed       Status = "TP_CLOSED"
	StatusTimeClosed     Status = "TIME_CLOSED"
	StatusManuallyClosed Status = "MANUALLY_CLOSED"
)

// Closed reports whether the status is terminal
func (s Status) Closed() bool {
	switch s {
	case StatusSLClosed, StatusTPClosed, StatusTimeClosed, StatusManuallyClosed:
		return true
	}
	return false
}

// Position is a live position under supervision. The monitor's lock
// guards every field after Track; snapshots returned to other goroutines
// are copies.
type Position struct {
	ID               string
	Symbol           string
	Side             types.Side
	Quantity         float64 // remaining open quantity
	OriginalQuantity float64
	Leverage         float64
	EntryPrice       float64
	StopLoss         float64
	OriginalStopLoss float64 // as derived at open, before any trailing
	TakeProfit       float64
	Status           Status
	OpenedAt         time.Time
	ClosedAt         time.Time
	ExitPrice        float64
	RealizedPnL      float64 // accumulated over partial and final closes

	HighestPrice float64
	LowestPrice  float64

	partialsHit []bool // parallel to the configured partial TP ladder
	closing     bool   // one-shot close guard for the current cycle
}

// NewPosition creates a tracked position from its opening fill
func NewPosition(symbol string, side types.Side, quantity, leverage, entry, stopLoss, takeProfit float64, partialLevels int, openedAt time.Time) *Position {
	return &Position{
		ID:               uuid.New().String(),
		Symbol:           symbol,
		Side:             side,
		Quantity:         quantity,
		OriginalQuantity: quantity,
		Leverage:         leverage,
		EntryPrice:       entry,
		StopLoss:         stopLoss,
		OriginalStopLoss: stopLoss,
		TakeProfit:       takeProfit,
		Status:           StatusOpen,
		OpenedAt:         openedAt,
		HighestPrice:     entry,
		LowestPrice:      entry,
		partialsHit:      make([]bool, partialLevels),
	}
}

// MovePercent returns the favorable price move as a percent of entry,
// positive when the position is in profit.
func (p *Position) MovePercent(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	move := (price - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == types.SideShort {
		move = -move
	}
	return move
}

// PnLPercent returns the leveraged profit percent at the given price
func (p *Position) PnLPercent(price float64) float64 {
	lev := p.Leverage
	if lev < 1 {
		lev = 1
	}
	return p.MovePercent(price) * lev
}

// UnrealizedPnL returns the open PnL in quote currency at the given price
func (p *Position) UnrealizedPnL(price float64) float64 {
	diff := price - p.EntryPrice
	if p.Side == types.SideShort {
		diff = -diff
	}
	return diff * p.Quantity
}

// updateExtremes records new favorable and adverse price extremes
func (p *Position) updateExtremes(price float64) {
	if price > p.HighestPrice {
		p.HighestPrice = price
	}
	if price < p.LowestPrice {
		p.LowestPrice = price
	}
}

// stopHit reports whether the price has crossed the protective stop
func (p *Position) stopHit(price float64) bool {
	if p.Side == types.SideLong {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

// targetHit reports whether the price has reached the take-profit
func (p *Position) targetHit(price float64) bool {
	if p.Side == types.SideLong {
		return price >= p.TakeProfit
	}
	return price <= p.TakeProfit
}

// record converts the closed position to a ledger trade record
func (p *Position) record(reason string) types.TradeRecord {
	pnlPct := 0.0
	if p.ExitPrice > 0 {
		pnlPct = p.PnLPercent(p.ExitPrice)
	}
	return types.TradeRecord{
		ID:         p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Quantity:   p.OriginalQuantity,
		Leverage:   p.Leverage,
		EntryPrice: p.EntryPrice,
		ExitPrice:  p.ExitPrice,
		PnL:        p.RealizedPnL,
		PnLPercent: pnlPct,
		Reason:     reason,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   p.ClosedAt,
	}
}
