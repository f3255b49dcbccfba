package sizing

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/errors"
)

// Result describes a successful sizing decision
type Result struct {
	Quantity    float64 // units of the base asset, strictly positive
	NotionalUSD float64
	RiskUSD     float64 // loss if the stop is hit
	Method      string  // "kelly", "volatility", or "volatility_only"
}

// Sizer computes the quantity for a new position. The more conservative of
// the Kelly and volatility-adjusted estimates governs, scaled by signal
// confidence and clamped to user and venue limits.
type Sizer struct {
	config      config.SizerConfig
	minOrderUSD float64
	logger      *zap.Logger
}

// NewSizer creates a position sizer
func NewSizer(cfg config.SizerConfig, minOrderUSD float64, logger *zap.Logger) *Sizer {
	return &Sizer{config: cfg, minOrderUSD: minOrderUSD, logger: logger}
}

// ComputeSize returns the quantity to open given the sizing context and the
// already-derived stop-loss. Rejections (below venue minimum) come back as
// typed RejectionError; any non-finite intermediate is a fatal arithmetic
// error and no position may be opened from it.
func (s *Sizer) ComputeSize(symbol string, ctx Context, stopLoss float64) (Result, error) {
	if ctx.Price <= 0 || ctx.Equity <= 0 {
		return Result{}, errors.NewConfigError("sizer", "ComputeSize",
			fmt.Sprintf("price and equity must be positive, got price=%.4f equity=%.2f", ctx.Price, ctx.Equity))
	}

	stopDistance := math.Abs(ctx.Price - stopLoss)
	if stopDistance <= 0 {
		return Result{}, errors.NewConfigError("sizer", "ComputeSize", "stop distance must be positive")
	}

	// Volatility-adjusted size bounds the loss-at-stop to RiskFraction of
	// equity regardless of how wide the stop is.
	riskUSD := ctx.Equity * s.config.RiskFraction
	volQuantity := riskUSD / stopDistance
	volUSD := volQuantity * ctx.Price

	// Kelly estimate from historical edge, when the sample is big enough
	kelly := kellyEstimate(s.config.Kelly, ctx.History, ctx.Equity)

	sizeUSD := volUSD
	method := "volatility_only"
	if kelly.Defined {
		if kelly.SizeUSD <= volUSD {
			sizeUSD = kelly.SizeUSD
			method = "kelly"
		} else {
			method = "volatility"
		}
	}

	// Confidence scales linearly between MinConfScale and 1.0
	confScale := s.config.MinConfScale + (1-s.config.MinConfScale)*clamp01(ctx.Confidence)
	sizeUSD *= confScale

	// User cap
	if sizeUSD > s.config.MaxPositionUSD {
		sizeUSD = s.config.MaxPositionUSD
	}

	if !isFinite(sizeUSD) || sizeUSD < 0 {
		return Result{}, errors.NewArithmeticError("sizer", "ComputeSize",
			fmt.Sprintf("non-finite or negative size %.4f for %s", sizeUSD, symbol))
	}

	// Venue minimum: round up when the cap allows it, reject otherwise
	if sizeUSD < s.minOrderUSD {
		if s.minOrderUSD <= s.config.MaxPositionUSD {
			s.logger.Debug("rounding size up to venue minimum",
				zap.String("symbol", symbol),
				zap.Float64("size_usd", sizeUSD),
				zap.Float64("min_order_usd", s.minOrderUSD))
			sizeUSD = s.minOrderUSD
		} else {
			return Result{}, errors.NewRejection(errors.ReasonBelowExchangeMinimum, symbol,
				fmt.Sprintf("size $%.2f below venue minimum $%.2f", sizeUSD, s.minOrderUSD))
		}
	}

	quantity := sizeUSD / ctx.Price
	if !isFinite(quantity) || quantity <= 0 {
		return Result{}, errors.NewArithmeticError("sizer", "ComputeSize",
			fmt.Sprintf("non-finite or non-positive quantity %.8f for %s", quantity, symbol))
	}

	s.logger.Debug("position sized",
		zap.String("symbol", symbol),
		zap.String("method", method),
		zap.Float64("vol_usd", volUSD),
		zap.Float64("kelly_usd", kelly.SizeUSD),
		zap.Float64("conf_scale", confScale),
		zap.Float64("final_usd", sizeUSD),
		zap.Float64("quantity", quantity))

	return Result{
		Quantity:    quantity,
		NotionalUSD: sizeUSD,
		RiskUSD:     quantity * stopDistance,
		Method:      method,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
