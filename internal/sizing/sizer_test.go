package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/internal/stats"
)

func testSizerConfig() config.SizerConfig {
	return config.SizerConfig{
		RiskFraction:   0.01,
		MaxPositionUSD: 100000,
		MinConfScale:   0.5,
		Kelly: config.KellyConfig{
			Enabled:           true,
			MinTradesRequired: 20,
			MinFraction:       0.10,
			MaxFraction:       0.25,
			FullKellyTrades:   50,
		},
	}
}

func winningHistory(trades int) stats.Summary {
	wins := trades * 6 / 10
	return stats.Summary{
		TotalTrades: trades,
		Wins:        wins,
		Losses:      trades - wins,
		WinRate:     float64(wins) / float64(trades),
		AvgWin:      150,
		AvgLoss:     100,
	}
}

func TestSizer_VolatilityScenario(t *testing.T) {
	// equity 10000, risk 1%, entry 100, stop distance 2% of entry
	// expected 50 units before confidence scaling and caps
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	sizer := NewSizer(cfg, 10, zap.NewNop())

	res, err := sizer.ComputeSize("BTC/USDC", Context{
		Equity:     10000,
		Price:      100,
		Leverage:   1,
		Confidence: 1.0,
	}, 98)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.Quantity, 1e-9)
	assert.InDelta(t, 100.0, res.RiskUSD, 1e-9)
	assert.Equal(t, "volatility_only", res.Method)
}

func TestSizer_RiskFractionMonotonic(t *testing.T) {
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	ctx := Context{Equity: 10000, Price: 100, Leverage: 1, Confidence: 0.8}

	var last float64
	for _, rf := range []float64{0.005, 0.01, 0.02, 0.05} {
		c := cfg
		c.RiskFraction = rf
		res, err := NewSizer(c, 10, zap.NewNop()).ComputeSize("BTC/USDC", ctx, 98)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Quantity, last, "riskFraction %.3f", rf)
		last = res.Quantity
	}
}

func TestSizer_StopDistanceMonotonic(t *testing.T) {
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	sizer := NewSizer(cfg, 10, zap.NewNop())
	ctx := Context{Equity: 10000, Price: 100, Leverage: 1, Confidence: 0.8}

	last := 1e18
	for _, sl := range []float64{99, 98, 95, 90} {
		res, err := sizer.ComputeSize("BTC/USDC", ctx, sl)
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Quantity, last, "stop %.0f", sl)
		last = res.Quantity
	}
}

func TestSizer_KellyGovernsWhenSmaller(t *testing.T) {
	cfg := testSizerConfig()
	cfg.RiskFraction = 0.10 // inflate the volatility estimate
	sizer := NewSizer(cfg, 10, zap.NewNop())

	res, err := sizer.ComputeSize("BTC/USDC", Context{
		Equity:     10000,
		Price:      100,
		Leverage:   1,
		Confidence: 1.0,
		History:    winningHistory(50),
	}, 98)
	require.NoError(t, err)
	assert.Equal(t, "kelly", res.Method)

	// b=1.5, p=0.6 -> f* = (1.5*0.6 - 0.4)/1.5 = 1/3; fraction 0.25 at 50 trades
	expected := 10000 * (1.0 / 3.0) * 0.25
	assert.InDelta(t, expected, res.NotionalUSD, 1.0)
}

func TestSizer_KellyUndefinedWithThinHistory(t *testing.T) {
	sizer := NewSizer(testSizerConfig(), 10, zap.NewNop())

	res, err := sizer.ComputeSize("BTC/USDC", Context{
		Equity:     10000,
		Price:      100,
		Leverage:   1,
		Confidence: 1.0,
		History:    winningHistory(10), // below the 20-trade minimum
	}, 98)
	require.NoError(t, err)
	assert.Equal(t, "volatility_only", res.Method)
}

func TestSizer_ConfidenceScaling(t *testing.T) {
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	sizer := NewSizer(cfg, 10, zap.NewNop())
	base := Context{Equity: 10000, Price: 100, Leverage: 1}

	low := base
	low.Confidence = 0
	high := base
	high.Confidence = 1

	lowRes, err := sizer.ComputeSize("BTC/USDC", low, 98)
	require.NoError(t, err)
	highRes, err := sizer.ComputeSize("BTC/USDC", high, 98)
	require.NoError(t, err)

	// Zero confidence halves the size; full confidence leaves it untouched
	assert.InDelta(t, highRes.Quantity/2, lowRes.Quantity, 1e-9)
}

func TestSizer_UserCapApplied(t *testing.T) {
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	cfg.MaxPositionUSD = 200
	sizer := NewSizer(cfg, 10, zap.NewNop())

	res, err := sizer.ComputeSize("BTC/USDC", Context{
		Equity: 100000, Price: 100, Leverage: 1, Confidence: 1,
	}, 98)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, res.NotionalUSD, 1e-9)
}

func TestSizer_RoundsUpToVenueMinimum(t *testing.T) {
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	sizer := NewSizer(cfg, 50, zap.NewNop())

	// Tiny equity produces a sub-minimum size that fits under the user cap
	res, err := sizer.ComputeSize("BTC/USDC", Context{
		Equity: 100, Price: 100, Leverage: 1, Confidence: 1,
	}, 98)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res.NotionalUSD, 1e-9)
}

func TestSizer_RejectsBelowVenueMinimum(t *testing.T) {
	cfg := testSizerConfig()
	cfg.Kelly.Enabled = false
	cfg.MaxPositionUSD = 20 // user cap below the venue minimum
	sizer := NewSizer(cfg, 50, zap.NewNop())

	_, err := sizer.ComputeSize("BTC/USDC", Context{
		Equity: 100, Price: 100, Leverage: 1, Confidence: 1,
	}, 98)
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonBelowExchangeMinimum, rej.Reason)
}

func TestSizer_InvalidInputs(t *testing.T) {
	sizer := NewSizer(testSizerConfig(), 10, zap.NewNop())

	_, err := sizer.ComputeSize("BTC/USDC", Context{Equity: 10000, Price: 0, Confidence: 1}, 98)
	assert.Error(t, err)

	// Stop equal to entry leaves no distance to size against
	_, err = sizer.ComputeSize("BTC/USDC", Context{Equity: 10000, Price: 100, Confidence: 1}, 100)
	assert.Error(t, err)
}

func TestProgressiveFraction_Ramp(t *testing.T) {
	cfg := testSizerConfig().Kelly

	assert.InDelta(t, 0.10, progressiveFraction(cfg, 20), 1e-9)
	assert.InDelta(t, 0.175, progressiveFraction(cfg, 35), 1e-9)
	assert.InDelta(t, 0.25, progressiveFraction(cfg, 50), 1e-9)
	assert.InDelta(t, 0.25, progressiveFraction(cfg, 200), 1e-9)
}

func TestKellyEstimate_NegativeEdge(t *testing.T) {
	history := stats.Summary{
		TotalTrades: 40,
		WinRate:     0.3,
		AvgWin:      100,
		AvgLoss:     100,
	}
	est := kellyEstimate(testSizerConfig().Kelly, history, 10000)
	assert.True(t, est.Defined)
	assert.Equal(t, 0.0, est.SizeUSD)
}
