package sizing

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/pkg/types"
)

// StopLevels is the pair of protective price levels for a new position
type StopLevels struct {
	StopLoss   float64
	TakeProfit float64
	Source     string // "signal", "atr", "user_default", "system_default"
}

// StopCalculator derives stop-loss and take-profit levels for a new
// position. Sources are tried in priority order: explicit signal levels,
// ATR-based dynamic levels, user default percentages, system defaults.
type StopCalculator struct {
	config config.StopConfig
	logger *zap.Logger
}

// NewStopCalculator creates a stop calculator with the given configuration
func NewStopCalculator(cfg config.StopConfig, logger *zap.Logger) *StopCalculator {
	return &StopCalculator{config: cfg, logger: logger}
}

// ComputeLevels returns stop-loss and take-profit for the signal at the
// given entry. The returned levels always satisfy the ordering invariant
// (long: sl < entry < tp, short reversed); a violation from signal-provided
// levels is a configuration error, never silently corrected.
func (sc *StopCalculator) ComputeLevels(signal types.Signal, ctx Context) (StopLevels, error) {
	entry := ctx.Price
	if entry <= 0 {
		return StopLevels{}, errors.NewConfigError("stops", "ComputeLevels", "entry price must be positive")
	}

	levels := sc.deriveLevels(signal, ctx, entry)

	if err := ValidateLevels(signal.Side, entry, levels.StopLoss, levels.TakeProfit); err != nil {
		return StopLevels{}, err
	}

	sc.logger.Debug("stop levels computed",
		zap.String("symbol", signal.Symbol),
		zap.String("source", levels.Source),
		zap.Float64("entry", entry),
		zap.Float64("stop_loss", levels.StopLoss),
		zap.Float64("take_profit", levels.TakeProfit))

	return levels, nil
}

func (sc *StopCalculator) deriveLevels(signal types.Signal, ctx Context, entry float64) StopLevels {
	// 1. Explicit signal levels win outright
	if signal.StopLoss > 0 && signal.TakeProfit > 0 {
		return StopLevels{StopLoss: signal.StopLoss, TakeProfit: signal.TakeProfit, Source: "signal"}
	}

	// 2. ATR-based dynamic levels
	if ctx.ATR > 0 {
		slDistance := ctx.ATR * sc.config.ATRMultiplierSL
		tpDistance := ctx.ATR * sc.config.ATRMultiplierTP
		if sc.config.MinRiskReward > 0 && tpDistance/slDistance < sc.config.MinRiskReward {
			tpDistance = slDistance * sc.config.MinRiskReward
		}
		return StopLevels{
			StopLoss:   applyDistance(signal.Side, entry, slDistance, true),
			TakeProfit: applyDistance(signal.Side, entry, tpDistance, false),
			Source:     "atr",
		}
	}

	// 3. User-configured default percentages
	slPct := sc.config.DefaultSLPercent
	tpPct := sc.config.DefaultTPPercent
	source := "user_default"

	// 4. System defaults as the last resort
	if slPct <= 0 || tpPct <= 0 {
		slPct = sc.config.SystemSLPercent
		tpPct = sc.config.SystemTPPercent
		source = "system_default"
	}

	// Leverage-aware mode keeps the percentage in account-equity terms: the
	// price distance shrinks by the leverage factor, applied to both legs.
	if sc.config.LeverageAware && ctx.Leverage > 1 {
		slPct /= ctx.Leverage
		tpPct /= ctx.Leverage
	}

	return StopLevels{
		StopLoss:   applyDistance(signal.Side, entry, entry*slPct/100, true),
		TakeProfit: applyDistance(signal.Side, entry, entry*tpPct/100, false),
		Source:     source,
	}
}

// applyDistance offsets entry by distance in the protective direction
func applyDistance(side types.Side, entry, distance float64, isStop bool) float64 {
	if (side == types.SideLong) == isStop {
		return entry - distance
	}
	return entry + distance
}

// ValidateLevels enforces the stop ordering invariant for a position:
// long requires sl < entry < tp, short requires tp < entry < sl.
func ValidateLevels(side types.Side, entry, stopLoss, takeProfit float64) error {
	switch side {
	case types.SideLong:
		if !(stopLoss < entry && entry < takeProfit) {
			return errors.NewConfigError("stops", "ValidateLevels",
				fmt.Sprintf("long requires sl < entry < tp, got sl=%.4f entry=%.4f tp=%.4f", stopLoss, entry, takeProfit))
		}
	case types.SideShort:
		if !(takeProfit < entry && entry < stopLoss) {
			return errors.NewConfigError("stops", "ValidateLevels",
				fmt.Sprintf("short requires tp < entry < sl, got tp=%.4f entry=%.4f sl=%.4f", takeProfit, entry, stopLoss))
		}
	default:
		return errors.NewConfigError("stops", "ValidateLevels", "unknown side "+string(side))
	}
	return nil
}
