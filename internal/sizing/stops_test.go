package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/pkg/types"
)

func testStopConfig() config.StopConfig {
	return config.StopConfig{
		ATRMultiplierSL:  2.0,
		ATRMultiplierTP:  3.0,
		MinRiskReward:    1.5,
		DefaultSLPercent: 5.0,
		DefaultTPPercent: 10.0,
		SystemSLPercent:  5.0,
		SystemTPPercent:  7.0,
		LeverageAware:    true,
		ATRPeriod:        14,
	}
}

func TestStops_SignalLevelsTakePriority(t *testing.T) {
	calc := NewStopCalculator(testStopConfig(), zap.NewNop())

	signal := types.Signal{
		Symbol:     "BTC/USDC",
		Side:       types.SideLong,
		StopLoss:   48000,
		TakeProfit: 55000,
	}
	levels, err := calc.ComputeLevels(signal, Context{Price: 50000, ATR: 500, Leverage: 1})
	require.NoError(t, err)
	assert.Equal(t, "signal", levels.Source)
	assert.Equal(t, 48000.0, levels.StopLoss)
	assert.Equal(t, 55000.0, levels.TakeProfit)
}

func TestStops_ATRLevels(t *testing.T) {
	calc := NewStopCalculator(testStopConfig(), zap.NewNop())

	// entry 50000, ATR 500: SL at 2x ATR below, TP at 3x ATR above
	signal := types.Signal{Symbol: "BTC/USDC", Side: types.SideLong}
	levels, err := calc.ComputeLevels(signal, Context{Price: 50000, ATR: 500, Leverage: 1})
	require.NoError(t, err)
	assert.Equal(t, "atr", levels.Source)
	assert.InDelta(t, 49000.0, levels.StopLoss, 1e-9)
	assert.InDelta(t, 51500.0, levels.TakeProfit, 1e-9)
}

func TestStops_ATRShortMirrored(t *testing.T) {
	calc := NewStopCalculator(testStopConfig(), zap.NewNop())

	signal := types.Signal{Symbol: "BTC/USDC", Side: types.SideShort}
	levels, err := calc.ComputeLevels(signal, Context{Price: 50000, ATR: 500, Leverage: 1})
	require.NoError(t, err)
	assert.InDelta(t, 51000.0, levels.StopLoss, 1e-9)
	assert.InDelta(t, 48500.0, levels.TakeProfit, 1e-9)
}

func TestStops_MinRiskRewardWidensTarget(t *testing.T) {
	cfg := testStopConfig()
	cfg.ATRMultiplierTP = 2.0 // would give R:R of 1.0, below the 1.5 floor
	calc := NewStopCalculator(cfg, zap.NewNop())

	signal := types.Signal{Symbol: "ETH/USDT", Side: types.SideLong}
	levels, err := calc.ComputeLevels(signal, Context{Price: 2000, ATR: 20, Leverage: 1})
	require.NoError(t, err)

	slDist := 2000 - levels.StopLoss
	tpDist := levels.TakeProfit - 2000
	assert.InDelta(t, 1.5, tpDist/slDist, 1e-9)
}

func TestStops_LeverageAwarePercentages(t *testing.T) {
	calc := NewStopCalculator(testStopConfig(), zap.NewNop())

	// base stop of 5% at 10x leverage means a 0.5% price distance
	signal := types.Signal{Symbol: "BTC/USDC", Side: types.SideLong}
	levels, err := calc.ComputeLevels(signal, Context{Price: 50000, Leverage: 10})
	require.NoError(t, err)
	assert.Equal(t, "user_default", levels.Source)
	assert.InDelta(t, 49750.0, levels.StopLoss, 1e-9)  // 0.5% below
	assert.InDelta(t, 50500.0, levels.TakeProfit, 1e-9) // 1.0% above
}

func TestStops_LeverageAwareDisabled(t *testing.T) {
	cfg := testStopConfig()
	cfg.LeverageAware = false
	calc := NewStopCalculator(cfg, zap.NewNop())

	signal := types.Signal{Symbol: "BTC/USDC", Side: types.SideLong}
	levels, err := calc.ComputeLevels(signal, Context{Price: 50000, Leverage: 10})
	require.NoError(t, err)
	assert.InDelta(t, 47500.0, levels.StopLoss, 1e-9) // full 5%
}

func TestStops_SystemDefaultFallback(t *testing.T) {
	cfg := testStopConfig()
	cfg.DefaultSLPercent = 0
	cfg.DefaultTPPercent = 0
	calc := NewStopCalculator(cfg, zap.NewNop())

	signal := types.Signal{Symbol: "SOL/USDT", Side: types.SideLong}
	levels, err := calc.ComputeLevels(signal, Context{Price: 100, Leverage: 1})
	require.NoError(t, err)
	assert.Equal(t, "system_default", levels.Source)
	assert.InDelta(t, 95.0, levels.StopLoss, 1e-9)
	assert.InDelta(t, 107.0, levels.TakeProfit, 1e-9)
}

func TestStops_SignalLevelsViolatingInvariantRejected(t *testing.T) {
	calc := NewStopCalculator(testStopConfig(), zap.NewNop())

	// stop above entry on a long is a configuration mistake, not something
	// to silently flip
	signal := types.Signal{
		Symbol:     "BTC/USDC",
		Side:       types.SideLong,
		StopLoss:   52000,
		TakeProfit: 55000,
	}
	_, err := calc.ComputeLevels(signal, Context{Price: 50000, Leverage: 1})
	assert.Error(t, err)
}

func TestValidateLevels(t *testing.T) {
	tests := []struct {
		name    string
		side    types.Side
		entry   float64
		sl, tp  float64
		wantErr bool
	}{
		{"long ok", types.SideLong, 100, 95, 110, false},
		{"long sl above entry", types.SideLong, 100, 105, 110, true},
		{"long tp below entry", types.SideLong, 100, 95, 99, true},
		{"short ok", types.SideShort, 100, 105, 90, false},
		{"short sl below entry", types.SideShort, 100, 95, 90, true},
		{"short tp above entry", types.SideShort, 100, 105, 101, true},
		{"sl equal to entry", types.SideLong, 100, 100, 110, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLevels(tt.side, tt.entry, tt.sl, tt.tp)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
