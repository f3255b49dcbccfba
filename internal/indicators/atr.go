package indicators

import (
	"errors"
	"math"

	"github.com/quantsentry/sentinel/pkg/types"
)

// ATR represents the Average True Range volatility indicator.
// True ranges are smoothed with a Wilder EMA over the configured period.
type ATR struct {
	period      int
	alpha       float64
	lastValue   float64
	lastClose   float64
	initialized bool
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		alpha:  1.0 / float64(period), // Wilder's smoothing
	}
}

// Calculate computes the ATR over the given candles. The full series is
// consumed on first use; subsequent calls update incrementally from the
// latest candle.
func (a *ATR) Calculate(data []types.OHLCV) (float64, error) {
	if !a.initialized {
		return a.initialCalculation(data)
	}
	return a.incrementalCalculation(data)
}

// initialCalculation builds up the smoothed ATR from the whole series
func (a *ATR) initialCalculation(data []types.OHLCV) (float64, error) {
	if len(data) < a.period+1 {
		return 0, errors.New("insufficient data points for ATR calculation")
	}

	for i, candle := range data {
		var trueRange float64
		if i > 0 {
			trueRange = trueRangeOf(candle, a.lastClose)
		} else {
			trueRange = candle.High - candle.Low
		}
		a.update(trueRange)
		a.lastClose = candle.Close
	}

	a.initialized = true
	return a.lastValue, nil
}

// incrementalCalculation folds the latest candle into the smoothed value
func (a *ATR) incrementalCalculation(data []types.OHLCV) (float64, error) {
	if len(data) == 0 {
		return a.lastValue, nil
	}

	latest := data[len(data)-1]
	a.update(trueRangeOf(latest, a.lastClose))
	a.lastClose = latest.Close
	return a.lastValue, nil
}

func (a *ATR) update(trueRange float64) {
	if a.lastValue == 0 {
		a.lastValue = trueRange
		return
	}
	a.lastValue = a.lastValue + a.alpha*(trueRange-a.lastValue)
}

// trueRangeOf computes max(High-Low, |High-PrevClose|, |Low-PrevClose|)
func trueRangeOf(current types.OHLCV, prevClose float64) float64 {
	hl := current.High - current.Low
	hc := math.Abs(current.High - prevClose)
	lc := math.Abs(current.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// GetLastValue returns the last calculated ATR value
func (a *ATR) GetLastValue() float64 {
	return a.lastValue
}

// GetPeriod returns the smoothing period
func (a *ATR) GetPeriod() int {
	return a.period
}

// GetRequiredPeriods returns the minimum number of candles needed
func (a *ATR) GetRequiredPeriods() int {
	return a.period + 1
}

// ResetState clears the indicator for a fresh series
func (a *ATR) ResetState() {
	a.lastValue = 0
	a.lastClose = 0
	a.initialized = false
}

// ATRPercent computes ATR as a percentage of the latest close, a convenient
// volatility figure for kill-switch and sizing decisions.
func ATRPercent(data []types.OHLCV, period int) (float64, error) {
	if len(data) == 0 {
		return 0, errors.New("no candles")
	}
	atr := NewATR(period)
	value, err := atr.Calculate(data)
	if err != nil {
		return 0, err
	}
	lastClose := data[len(data)-1].Close
	if lastClose <= 0 {
		return 0, errors.New("non-positive close price")
	}
	return value / lastClose * 100, nil
}
