package monitor

import (
	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/pkg/types"
)

// applyTrailing adjusts the position's stop in place. The stop only ever
// tightens: break-even moves it to entry once profit clears the threshold,
// and the tier ladder trails it behind the favorable price extreme, closer
// as profit grows. Returns whether the stop moved.
func applyTrailing(cfg config.TrailingConfig, p *Position, price float64) bool {
	if !cfg.Enabled || p.Status.Closed() {
		return false
	}

	profit := p.PnLPercent(price)
	moved := false

	if cfg.BreakEvenPercent > 0 && profit >= cfg.BreakEvenPercent {
		if tightenStop(p, p.EntryPrice) {
			moved = true
		}
	}

	tier := activeTier(cfg.Tiers, profit)
	if tier == nil {
		return moved
	}

	var candidate float64
	if p.Side == types.SideLong {
		candidate = p.HighestPrice * (1 - tier.TrailingPercent/100)
	} else {
		candidate = p.LowestPrice * (1 + tier.TrailingPercent/100)
	}
	if tightenStop(p, candidate) {
		moved = true
	}
	return moved
}

// activeTier returns the deepest tier the current profit has reached
func activeTier(tiers []config.TrailingTier, profit float64) *config.TrailingTier {
	var active *config.TrailingTier
	for i := range tiers {
		if profit >= tiers[i].ProfitPercent {
			active = &tiers[i]
		}
	}
	return active
}

// tightenStop moves the stop to candidate only when that is strictly
// tighter than the current stop. The ratchet never loosens.
func tightenStop(p *Position, candidate float64) bool {
	if p.Side == types.SideLong {
		if candidate > p.StopLoss {
			p.StopLoss = candidate
			return true
		}
		return false
	}
	if candidate < p.StopLoss {
		p.StopLoss = candidate
		return true
	}
	return false
}

// pendingPartials returns the ladder indexes whose profit threshold the
// position has newly reached. Each level fires at most once.
func pendingPartials(levels []config.PartialTPLevel, p *Position, price float64) []int {
	if p.Status.Closed() {
		return nil
	}

	profit := p.PnLPercent(price)
	var due []int
	for i, level := range levels {
		if i < len(p.partialsHit) && !p.partialsHit[i] && profit >= level.ProfitPercent {
			due = append(due, i)
		}
	}
	return due
}
