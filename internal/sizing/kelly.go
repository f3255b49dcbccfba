package sizing

import (
	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/stats"
)

// KellyEstimate is the outcome of a Kelly sizing attempt
type KellyEstimate struct {
	Defined           bool    // false when history is too thin
	FullKelly         float64 // raw f* clamped to [0, 1]
	EffectiveFraction float64 // progressive fraction of full Kelly applied
	SizeUSD           float64 // equity * FullKelly * EffectiveFraction
}

// kellyEstimate computes the progressive fractional Kelly size.
//
// f* = (b*p - q) / b, with p the historical win rate, q = 1-p and b the
// average win/loss ratio. The applied fraction ramps linearly from
// MinFraction to MaxFraction as the sample grows, so early noisy estimates
// cannot over-bet.
func kellyEstimate(cfg config.KellyConfig, history stats.Summary, equity float64) KellyEstimate {
	if !cfg.Enabled || history.TotalTrades < cfg.MinTradesRequired {
		return KellyEstimate{}
	}

	b := history.WinLossRatio()
	if b <= 0 {
		return KellyEstimate{}
	}

	p := history.WinRate
	q := 1 - p
	fullKelly := (b*p - q) / b
	if fullKelly <= 0 {
		// Negative edge: Kelly says do not bet at all
		return KellyEstimate{Defined: true, FullKelly: 0, EffectiveFraction: 0, SizeUSD: 0}
	}
	if fullKelly > 1 {
		fullKelly = 1
	}

	fraction := progressiveFraction(cfg, history.TotalTrades)

	return KellyEstimate{
		Defined:           true,
		FullKelly:         fullKelly,
		EffectiveFraction: fraction,
		SizeUSD:           equity * fullKelly * fraction,
	}
}

// progressiveFraction interpolates the applied Kelly fraction by sample size
func progressiveFraction(cfg config.KellyConfig, trades int) float64 {
	if trades >= cfg.FullKellyTrades {
		return cfg.MaxFraction
	}
	span := cfg.FullKellyTrades - cfg.MinTradesRequired
	if span <= 0 {
		return cfg.MaxFraction
	}
	progress := float64(trades-cfg.MinTradesRequired) / float64(span)
	if progress < 0 {
		progress = 0
	}
	return cfg.MinFraction + (cfg.MaxFraction-cfg.MinFraction)*progress
}
