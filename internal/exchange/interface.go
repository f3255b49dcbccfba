package exchange

import (
	"context"
	"time"

	"github.com/quantsentry/sentinel/pkg/types"
)

// PriceSource supplies market data to the monitor and the indicators
type PriceSource interface {
	// GetCurrentPrice returns the latest traded price for a symbol
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// GetOHLCV returns up to limit recent candles for the symbol, oldest first
	GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
}

// OpenRequest describes the position the engine wants opened
type OpenRequest struct {
	Symbol   string
	Side     types.Side
	Quantity float64
	Leverage float64
}

// CloseRequest describes a full or partial close of an existing position
type CloseRequest struct {
	Symbol   string
	Side     types.Side // side of the position being closed
	Quantity float64
}

// OrderResult is the venue's acknowledgement of an executed order
type OrderResult struct {
	OrderID    string
	Symbol     string
	Quantity   float64
	Price      float64 // average fill price, 0 when the venue omits it
	ExecutedAt time.Time
}

// Gateway is the full trading surface the engine needs from a venue
type Gateway interface {
	PriceSource

	// GetEquity returns total account equity in the quote currency
	GetEquity(ctx context.Context) (float64, error)

	// OpenPosition submits a market order establishing a new position
	OpenPosition(ctx context.Context, req OpenRequest) (OrderResult, error)

	// ClosePosition submits a reduce-only market order against an open position
	ClosePosition(ctx context.Context, req CloseRequest) (OrderResult, error)
}
