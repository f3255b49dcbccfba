package ledger

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/pkg/types"
)

const tradesSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id           TEXT PRIMARY KEY,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	quantity     DOUBLE PRECISION NOT NULL,
	leverage     DOUBLE PRECISION NOT NULL,
	entry_price  DOUBLE PRECISION NOT NULL,
	exit_price   DOUBLE PRECISION NOT NULL,
	pnl          DOUBLE PRECISION NOT NULL,
	pnl_percent  DOUBLE PRECISION NOT NULL,
	reason       TEXT NOT NULL,
	opened_at    TIMESTAMPTZ NOT NULL,
	closed_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS trades_closed_at_idx ON trades (closed_at);
CREATE TABLE IF NOT EXISTS open_positions (
	id       TEXT PRIMARY KEY,
	snapshot JSONB NOT NULL
);
`

// PostgresStore persists trades in a PostgreSQL table
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and ensures the trades table
// exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "NewPostgresStore")
	}
	if _, err := pool.Exec(ctx, tradesSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "NewPostgresStore")
	}
	return &PostgresStore{pool: pool}, nil
}

// SaveTrade appends a closed trade
func (s *PostgresStore) SaveTrade(ctx context.Context, t types.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (id, symbol, side, quantity, leverage, entry_price,
			exit_price, pnl, pnl_percent, reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Symbol, string(t.Side), t.Quantity, t.Leverage, t.EntryPrice,
		t.ExitPrice, t.PnL, t.PnLPercent, t.Reason, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveTrade")
	}
	return nil
}

// LoadTrades returns all recorded trades, oldest first
func (s *PostgresStore) LoadTrades(ctx context.Context) ([]types.TradeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, symbol, side, quantity, leverage, entry_price,
			exit_price, pnl, pnl_percent, reason, opened_at, closed_at
		FROM trades ORDER BY closed_at`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadTrades")
	}
	defer rows.Close()

	var trades []types.TradeRecord
	for rows.Next() {
		var t types.TradeRecord
		var side string
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &t.Leverage,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.PnLPercent, &t.Reason,
			&t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadTrades")
		}
		t.Side = types.Side(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadTrades")
	}
	return trades, nil
}

// SaveOpenPositions replaces the persisted open-position set in one
// transaction.
func (s *PostgresStore) SaveOpenPositions(ctx context.Context, positions []types.PositionSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveOpenPositions")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM open_positions`); err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveOpenPositions")
	}
	for _, p := range positions {
		data, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveOpenPositions")
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO open_positions (id, snapshot) VALUES ($1, $2)`,
			p.ID, data); err != nil {
			return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveOpenPositions")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryLedger, "ledger", "SaveOpenPositions")
	}
	return nil
}

// LoadOpenPositions returns the persisted open-position set
func (s *PostgresStore) LoadOpenPositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT snapshot FROM open_positions`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadOpenPositions")
	}
	defer rows.Close()

	var positions []types.PositionSnapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadOpenPositions")
		}
		var p types.PositionSnapshot
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadOpenPositions")
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryLedger, "ledger", "LoadOpenPositions")
	}
	return positions, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
