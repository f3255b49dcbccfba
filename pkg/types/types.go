package types

import "time"

// Side represents the direction of a signal or position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// IsValid reports whether the side is one of the known directions
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// OHLCV represents a single price candle
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// Ticker represents the latest traded price for a symbol
type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// Signal is a directional trade recommendation produced by an external
// scoring system. Signals are immutable once issued and expire after a
// configurable maximum age.
type Signal struct {
	Symbol     string
	Side       Side
	Confidence float64 // [0, 1]
	StopLoss   float64 // optional, 0 = not provided
	TakeProfit float64 // optional, 0 = not provided
	EntryPrice float64 // optional, 0 = use market price
	Source     string
	IssuedAt   time.Time
}

// Age returns how old the signal is relative to now
func (s Signal) Age(now time.Time) time.Duration {
	return now.Sub(s.IssuedAt)
}

// TradeRecord is the terminal record of a closed trade handed to the ledger
// and used as input to historical edge estimation.
type TradeRecord struct {
	ID         string
	Symbol     string
	Side       Side
	Quantity   float64
	Leverage   float64
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
	PnLPercent float64
	Reason     string
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Win reports whether the trade closed profitably
func (t TradeRecord) Win() bool {
	return t.PnL > 0
}

// PositionSnapshot is the persisted state of an open position, written to
// the ledger when positions open or close and reloaded at startup so
// supervision survives restarts.
type PositionSnapshot struct {
	ID               string
	Symbol           string
	Side             Side
	Quantity         float64
	OriginalQuantity float64
	Leverage         float64
	EntryPrice       float64
	StopLoss         float64
	OriginalStopLoss float64
	TakeProfit       float64
	RealizedPnL      float64
	HighestPrice     float64
	LowestPrice      float64
	PartialsHit      []bool
	Status           string
	OpenedAt         time.Time
}
