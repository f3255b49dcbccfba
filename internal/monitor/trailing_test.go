package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/pkg/types"
)

func trailingConfig() config.TrailingConfig {
	return config.TrailingConfig{
		Enabled:          true,
		BreakEvenPercent: 2.0,
		Tiers: []config.TrailingTier{
			{ProfitPercent: 2.0, TrailingPercent: 2.0},
			{ProfitPercent: 4.0, TrailingPercent: 1.5},
			{ProfitPercent: 6.0, TrailingPercent: 1.0},
		},
	}
}

func TestApplyTrailing_BelowThresholdNoMove(t *testing.T) {
	p := NewPosition("BTC/USDC", types.SideLong, 1, 1, 100, 95, 110, 0, time.Now())
	p.updateExtremes(101)

	moved := applyTrailing(trailingConfig(), p, 101)
	assert.False(t, moved)
	assert.Equal(t, 95.0, p.StopLoss)
}

func TestApplyTrailing_BreakEvenThenTiers(t *testing.T) {
	p := NewPosition("BTC/USDC", types.SideLong, 1, 1, 100, 95, 200, 0, time.Now())

	// +2% reaches break-even and the first tier
	p.updateExtremes(102)
	assert.True(t, applyTrailing(trailingConfig(), p, 102))
	assert.InDelta(t, 102*0.98, p.StopLoss, 1e-9)

	// +6% engages the tightest tier
	p.updateExtremes(106)
	assert.True(t, applyTrailing(trailingConfig(), p, 106))
	assert.InDelta(t, 106*0.99, p.StopLoss, 1e-9)
}

func TestApplyTrailing_ShortSide(t *testing.T) {
	p := NewPosition("ETH/USDT", types.SideShort, 1, 1, 100, 105, 80, 0, time.Now())

	// price falls 5%: tier at 4% trails 1.5% above the low
	p.updateExtremes(95)
	assert.True(t, applyTrailing(trailingConfig(), p, 95))
	assert.InDelta(t, 95*1.015, p.StopLoss, 1e-9)

	// bounce must not loosen the stop
	p.updateExtremes(97)
	before := p.StopLoss
	applyTrailing(trailingConfig(), p, 97)
	assert.Equal(t, before, p.StopLoss)
}

func TestApplyTrailing_LeverageReachesTiersSooner(t *testing.T) {
	// 10x leverage turns a 0.5% price move into 5% profit
	p := NewPosition("BTC/USDC", types.SideLong, 1, 10, 100, 99.5, 110, 0, time.Now())
	p.updateExtremes(100.5)

	assert.True(t, applyTrailing(trailingConfig(), p, 100.5))
	assert.InDelta(t, 100.5*0.985, p.StopLoss, 1e-9)
}

func TestApplyTrailing_Disabled(t *testing.T) {
	cfg := trailingConfig()
	cfg.Enabled = false
	p := NewPosition("BTC/USDC", types.SideLong, 1, 1, 100, 95, 200, 0, time.Now())
	p.updateExtremes(106)

	assert.False(t, applyTrailing(cfg, p, 106))
	assert.Equal(t, 95.0, p.StopLoss)
}

func TestPendingPartials_FireOnceEach(t *testing.T) {
	levels := []config.PartialTPLevel{
		{ProfitPercent: 1.5, ClosePercent: 25},
		{ProfitPercent: 3.0, ClosePercent: 25},
	}
	p := NewPosition("BTC/USDC", types.SideLong, 4, 1, 100, 95, 110, len(levels), time.Now())

	assert.Empty(t, pendingPartials(levels, p, 101))

	due := pendingPartials(levels, p, 101.6)
	assert.Equal(t, []int{0}, due)
	p.partialsHit[0] = true

	assert.Empty(t, pendingPartials(levels, p, 101.6))

	due = pendingPartials(levels, p, 103.5)
	assert.Equal(t, []int{1}, due)
}

func TestActiveTier_Selection(t *testing.T) {
	tiers := trailingConfig().Tiers

	assert.Nil(t, activeTier(tiers, 1.9))
	assert.Equal(t, 2.0, activeTier(tiers, 2.0).TrailingPercent)
	assert.Equal(t, 1.5, activeTier(tiers, 5.0).TrailingPercent)
	assert.Equal(t, 1.0, activeTier(tiers, 9.0).TrailingPercent)
}
