package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantsentry/sentinel/internal/stats"
	"github.com/quantsentry/sentinel/pkg/types"
)

func sampleTrades() []types.TradeRecord {
	return []types.TradeRecord{
		{
			ID: "t1", Symbol: "BTC/USDC", Side: types.SideLong,
			Quantity: 0.5, Leverage: 1, EntryPrice: 50000, ExitPrice: 51500,
			PnL: 750, PnLPercent: 3, Reason: "take_profit",
			OpenedAt: time.Now().Add(-2 * time.Hour), ClosedAt: time.Now(),
		},
		{
			ID: "t2", Symbol: "ETH/USDT", Side: types.SideShort,
			Quantity: 2, Leverage: 1, EntryPrice: 2000, ExitPrice: 2040,
			PnL: -80, PnLPercent: -2, Reason: "stop_loss",
			OpenedAt: time.Now().Add(-time.Hour), ClosedAt: time.Now(),
		},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, stats.Summary{
		TotalTrades: 10, Wins: 6, Losses: 4,
		WinRate: 0.6, AvgWin: 120, AvgLoss: 80,
	})

	out := buf.String()
	assert.Contains(t, out, "TRADING SUMMARY")
	assert.Contains(t, out, "60.0%")
	assert.Contains(t, out, "1.50") // win/loss ratio
}

func TestPrintTrades(t *testing.T) {
	var buf bytes.Buffer
	PrintTrades(&buf, sampleTrades())

	out := buf.String()
	assert.Contains(t, out, "BTC/USDC")
	assert.Contains(t, out, "take_profit")
	assert.Contains(t, out, "+750.00")
}

func TestWriteExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.xlsx")
	require.NoError(t, WriteExcel(path, sampleTrades(), stats.Summary{TotalTrades: 2, Wins: 1, Losses: 1, WinRate: 0.5, AvgWin: 750, AvgLoss: 80}))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	symbol, err := fx.GetCellValue("Trades", "B2")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDC", symbol)

	total, err := fx.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
}
