package ledger

import (
	"context"

	"github.com/quantsentry/sentinel/pkg/types"
)

// Store persists closed trades and the open-position set across restarts.
// Trade history seeds the Kelly statistics and the daily loss tracker;
// open positions are re-tracked by the monitor at bootstrap, so a restart
// without the ledger silently resets both and abandons supervision.
type Store interface {
	// SaveTrade appends a closed trade
	SaveTrade(ctx context.Context, trade types.TradeRecord) error

	// LoadTrades returns all recorded trades, oldest first
	LoadTrades(ctx context.Context) ([]types.TradeRecord, error)

	// SaveOpenPositions replaces the persisted open-position set
	SaveOpenPositions(ctx context.Context, positions []types.PositionSnapshot) error

	// LoadOpenPositions returns the persisted open-position set
	LoadOpenPositions(ctx context.Context) ([]types.PositionSnapshot, error)

	// Close releases the underlying resources
	Close() error
}
