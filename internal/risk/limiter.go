package risk

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/internal/safety"
	"github.com/quantsentry/sentinel/pkg/types"
)

// Limiter evaluates account-level risk constraints before a new position is
// allowed. Evaluate is a pure check: rate counters are advanced by the
// orchestrator only after a position actually opens, so rejected attempts
// never consume trade budget.
type Limiter struct {
	limits     config.RiskLimits
	lossTicker *DailyLossTracker
	rates      *safety.RateWindow
	killSwitch *safety.KillSwitch
	logger     *zap.Logger
	now        func() time.Time
}

// NewLimiter creates a risk limiter over the shared trackers
func NewLimiter(
	limits config.RiskLimits,
	lossTracker *DailyLossTracker,
	rates *safety.RateWindow,
	killSwitch *safety.KillSwitch,
	logger *zap.Logger,
) *Limiter {
	return &Limiter{
		limits:     limits,
		lossTicker: lossTracker,
		rates:      rates,
		killSwitch: killSwitch,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate runs the ordered risk checks for a signal, short-circuiting on
// the first failure. A nil return means the signal may proceed to sizing.
func (l *Limiter) Evaluate(signal types.Signal, equity float64) error {
	// 1. Daily realized loss cap
	if l.limits.MaxDailyLossPercent > 0 {
		lossPct := l.lossTicker.RealizedLossPercent(equity)
		if lossPct >= l.limits.MaxDailyLossPercent {
			l.logger.Warn("daily loss limit reached",
				zap.Float64("loss_pct", lossPct),
				zap.Float64("limit_pct", l.limits.MaxDailyLossPercent))
			return errors.NewRejection(errors.ReasonDailyLossLimitExceeded, signal.Symbol,
				fmt.Sprintf("realized loss %.2f%% >= %.2f%%", lossPct, l.limits.MaxDailyLossPercent))
		}
	}

	// 2. Trade-rate windows
	if l.limits.MaxTradesPerHour > 0 && l.rates.CountLastHour() >= l.limits.MaxTradesPerHour {
		return errors.NewRejection(errors.ReasonRateLimited, signal.Symbol,
			fmt.Sprintf("%d trades in the last hour", l.rates.CountLastHour()))
	}
	if l.limits.MaxTradesPerDay > 0 && l.rates.CountLastDay() >= l.limits.MaxTradesPerDay {
		return errors.NewRejection(errors.ReasonRateLimited, signal.Symbol,
			fmt.Sprintf("%d trades in the last day", l.rates.CountLastDay()))
	}

	// 3. Kill switch
	if l.killSwitch.Active() {
		return errors.NewRejection(errors.ReasonKillSwitchActive, signal.Symbol, l.killSwitch.Reason())
	}

	// 4. Signal staleness
	if l.limits.MaxSignalAge > 0 {
		if age := signal.Age(l.now()); age > l.limits.MaxSignalAge {
			return errors.NewRejection(errors.ReasonStaleSignal, signal.Symbol,
				fmt.Sprintf("age %s exceeds %s", age.Round(time.Second), l.limits.MaxSignalAge))
		}
	}

	// 5. Minimum confidence
	if signal.Confidence < l.limits.MinConfidence {
		return errors.NewRejection(errors.ReasonLowConfidence, signal.Symbol,
			fmt.Sprintf("confidence %.2f below %.2f", signal.Confidence, l.limits.MinConfidence))
	}

	return nil
}

// CheckSymbolCapacity rejects when the symbol already has the maximum
// allowed number of open positions. Kept separate from Evaluate because it
// needs the open-position snapshot rather than account state.
func (l *Limiter) CheckSymbolCapacity(symbol string, openOnSymbol int) error {
	if l.limits.MaxPositionsPerSymbol > 0 && openOnSymbol >= l.limits.MaxPositionsPerSymbol {
		return errors.NewRejection(errors.ReasonMaxPositionsPerSymbol, symbol,
			fmt.Sprintf("%d position(s) already open", openOnSymbol))
	}
	return nil
}

// CheckCorrelatedFraction rejects when the correlated-group exposure would
// exceed the configured fraction of equity.
func (l *Limiter) CheckCorrelatedFraction(symbol string, groupExposureUSD, candidateUSD, equity float64) error {
	if l.limits.MaxCorrelatedFraction <= 0 || equity <= 0 {
		return nil
	}
	fraction := (groupExposureUSD + candidateUSD) / equity
	if fraction > l.limits.MaxCorrelatedFraction {
		return errors.NewRejection(errors.ReasonCorrelatedExposure, symbol,
			fmt.Sprintf("group exposure %.0f%% of equity exceeds %.0f%%",
				fraction*100, l.limits.MaxCorrelatedFraction*100))
	}
	return nil
}
