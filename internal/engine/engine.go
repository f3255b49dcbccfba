package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/internal/events"
	"github.com/quantsentry/sentinel/internal/exchange"
	"github.com/quantsentry/sentinel/internal/indicators"
	"github.com/quantsentry/sentinel/internal/ledger"
	"github.com/quantsentry/sentinel/internal/monitor"
	"github.com/quantsentry/sentinel/internal/monitoring"
	"github.com/quantsentry/sentinel/internal/risk"
	"github.com/quantsentry/sentinel/internal/safety"
	"github.com/quantsentry/sentinel/internal/sizing"
	"github.com/quantsentry/sentinel/internal/stats"
	"github.com/quantsentry/sentinel/pkg/types"
)

// atrInterval is the candle interval used for volatility estimation
const atrInterval = "15m"

// Deps bundles the collaborators the engine orchestrates
type Deps struct {
	Config      *config.Config
	Gateway     exchange.Gateway
	Limiter     *risk.Limiter
	Correlation *risk.CorrelationManager
	LossTracker *risk.DailyLossTracker
	Rates       *safety.RateWindow
	KillSwitch  *safety.KillSwitch
	Stops       *sizing.StopCalculator
	Sizer       *sizing.Sizer
	Monitor     *monitor.Monitor
	History     *stats.History
	Store       ledger.Store
	Bus         *events.Bus
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

// Engine turns incoming signals into supervised positions. Every signal
// passes the ordered risk gates, then stop derivation and sizing; only a
// position the venue confirms advances the rate counters and reaches the
// monitor.
type Engine struct {
	cfg         *config.Config
	gateway     exchange.Gateway
	limiter     *risk.Limiter
	correlation *risk.CorrelationManager
	lossTracker *risk.DailyLossTracker
	rates       *safety.RateWindow
	killSwitch  *safety.KillSwitch
	stops       *sizing.StopCalculator
	sizer       *sizing.Sizer
	monitor     *monitor.Monitor
	history     *stats.History
	store       ledger.Store
	bus         *events.Bus
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// New creates the engine and wires the monitor's close callback
func New(deps Deps) (*Engine, error) {
	if deps.Config.SpotMode && deps.Config.Leverage > 1 {
		return nil, errors.NewConfigError("engine", "New",
			fmt.Sprintf("spot mode cannot use leverage %.1fx", deps.Config.Leverage))
	}

	e := &Engine{
		cfg:         deps.Config,
		gateway:     deps.Gateway,
		limiter:     deps.Limiter,
		correlation: deps.Correlation,
		lossTracker: deps.LossTracker,
		rates:       deps.Rates,
		killSwitch:  deps.KillSwitch,
		stops:       deps.Stops,
		sizer:       deps.Sizer,
		monitor:     deps.Monitor,
		history:     deps.History,
		store:       deps.Store,
		bus:         deps.Bus,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         time.Now,
	}
	e.monitor.SetCloseCallback(e.onPositionClosed)
	return e, nil
}

// Bootstrap reloads trade history and the open-position set from the
// ledger so Kelly statistics, the daily loss tracker and position
// supervision survive restarts.
func (e *Engine) Bootstrap(ctx context.Context) error {
	trades, err := e.store.LoadTrades(ctx)
	if err != nil {
		return err
	}

	today := e.now().UTC().Truncate(24 * time.Hour)
	for _, t := range trades {
		e.history.Append(t)
		if t.ClosedAt.UTC().Truncate(24 * time.Hour).Equal(today) {
			e.lossTracker.RecordTrade(t.PnL)
		}
	}

	snaps, err := e.store.LoadOpenPositions(ctx)
	if err != nil {
		return err
	}
	restored := e.monitor.Restore(snaps)
	if restored < len(snaps) {
		e.logger.Warn("some persisted positions were not restorable",
			zap.Int("persisted", len(snaps)),
			zap.Int("restored", restored))
	}

	e.logger.Info("ledger state loaded",
		zap.Int("trades", len(trades)),
		zap.Int("open_positions", restored))
	return nil
}

// Run drives the position monitor until the context is cancelled
func (e *Engine) Run(ctx context.Context) {
	e.monitor.Run(ctx)
}

// HandleSignal evaluates one trading signal end to end. On success the
// returned position is already under monitor supervision. Rejections come
// back as typed RejectionError.
func (e *Engine) HandleSignal(ctx context.Context, signal types.Signal) (*monitor.Position, error) {
	if !signal.Side.IsValid() {
		return nil, errors.NewConfigError("engine", "HandleSignal",
			"invalid signal side "+string(signal.Side))
	}
	if signal.Symbol == "" {
		return nil, errors.NewConfigError("engine", "HandleSignal", "signal has no symbol")
	}

	equity, err := e.gateway.GetEquity(ctx)
	if err != nil {
		return nil, err
	}
	e.metrics.AccountEquity.Set(equity)

	entry := signal.EntryPrice
	if entry <= 0 {
		entry, err = e.gateway.GetCurrentPrice(ctx, signal.Symbol)
		if err != nil {
			return nil, err
		}
	}

	// Volatility feeds both the kill switch and the stop calculator. A
	// failed candle fetch degrades to percentage stops instead of blocking
	// the signal.
	atrValue, atrPct := e.volatility(ctx, signal.Symbol)
	e.killSwitch.Observe(atrPct, equity)

	if err := e.limiter.Evaluate(signal, equity); err != nil {
		return nil, e.reject(signal, err)
	}
	if err := e.limiter.CheckSymbolCapacity(signal.Symbol, e.monitor.CountOnSymbol(signal.Symbol)); err != nil {
		return nil, e.reject(signal, err)
	}

	exposures := e.monitor.Exposures()
	if err := e.correlation.CheckExposure(signal.Symbol, exposures); err != nil {
		return nil, e.reject(signal, err)
	}

	sizingCtx := sizing.Context{
		Equity:     equity,
		Price:      entry,
		ATR:        atrValue,
		Leverage:   e.cfg.Leverage,
		Confidence: signal.Confidence,
		History:    e.history.Summarize(),
	}

	levels, err := e.stops.ComputeLevels(signal, sizingCtx)
	if err != nil {
		return nil, err
	}

	size, err := e.sizer.ComputeSize(signal.Symbol, sizingCtx, levels.StopLoss)
	if err != nil {
		if _, ok := errors.AsRejection(err); ok {
			return nil, e.reject(signal, err)
		}
		return nil, err
	}

	groupUSD := e.correlation.GroupExposureUSD(signal.Symbol, exposures)
	if err := e.limiter.CheckCorrelatedFraction(signal.Symbol, groupUSD, size.NotionalUSD, equity); err != nil {
		return nil, e.reject(signal, err)
	}

	result, err := e.gateway.OpenPosition(ctx, exchange.OpenRequest{
		Symbol:   signal.Symbol,
		Side:     signal.Side,
		Quantity: size.Quantity,
		Leverage: e.cfg.Leverage,
	})
	if err != nil {
		return nil, err
	}

	// Counters advance only after the venue confirms the open
	e.rates.Record()
	e.metrics.PositionsOpened.Inc()

	fillPrice := result.Price
	if fillPrice <= 0 {
		fillPrice = entry
	}

	pos := monitor.NewPosition(
		signal.Symbol,
		signal.Side,
		size.Quantity,
		e.cfg.Leverage,
		fillPrice,
		levels.StopLoss,
		levels.TakeProfit,
		len(e.cfg.Monitor.PartialTPLevels),
		e.now(),
	)
	e.monitor.Track(pos)
	e.persistOpenPositions(ctx)

	e.bus.Publish(events.Event{
		Type:       events.TypePositionOpened,
		Symbol:     signal.Symbol,
		PositionID: pos.ID,
		Side:       signal.Side,
		Price:      fillPrice,
		Quantity:   size.Quantity,
	})
	e.logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", signal.Symbol),
		zap.String("side", string(signal.Side)),
		zap.String("sizing_method", size.Method),
		zap.String("stop_source", levels.Source),
		zap.Float64("quantity", size.Quantity),
		zap.Float64("notional_usd", size.NotionalUSD),
		zap.Float64("entry", fillPrice),
		zap.Float64("stop_loss", levels.StopLoss),
		zap.Float64("take_profit", levels.TakeProfit))

	return pos, nil
}

// volatility fetches recent candles and computes the current ATR in price
// units and as a percent of the close. Both are 0 on failure.
func (e *Engine) volatility(ctx context.Context, symbol string) (float64, float64) {
	period := e.cfg.Stops.ATRPeriod
	candles, err := e.gateway.GetOHLCV(ctx, symbol, atrInterval, period*2)
	if err != nil {
		e.logger.Warn("candle fetch failed, falling back to percentage stops",
			zap.String("symbol", symbol),
			zap.Error(err))
		return 0, 0
	}

	atr := indicators.NewATR(period)
	value, err := atr.Calculate(candles)
	if err != nil {
		e.logger.Warn("atr unavailable",
			zap.String("symbol", symbol),
			zap.Error(err))
		return 0, 0
	}

	lastClose := candles[len(candles)-1].Close
	if lastClose <= 0 {
		return value, 0
	}
	return value, value / lastClose * 100
}

// reject records and publishes a signal rejection
func (e *Engine) reject(signal types.Signal, err error) error {
	rej, ok := errors.AsRejection(err)
	if !ok {
		return err
	}

	e.metrics.SignalsRejected.WithLabelValues(string(rej.Reason)).Inc()
	e.bus.Publish(events.Event{
		Type:   events.TypePositionRejected,
		Symbol: signal.Symbol,
		Side:   signal.Side,
		Reason: string(rej.Reason),
	})
	e.logger.Warn("signal rejected",
		zap.String("symbol", signal.Symbol),
		zap.String("reason", string(rej.Reason)),
		zap.String("details", rej.Details))
	return err
}

// onPositionClosed records a finished trade in the loss tracker, the
// Kelly history and the ledger, and refreshes the persisted open set.
func (e *Engine) onPositionClosed(record types.TradeRecord) {
	e.lossTracker.RecordTrade(record.PnL)
	e.history.Append(record)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.SaveTrade(ctx, record); err != nil {
		e.logger.Error("trade not persisted",
			zap.String("id", record.ID),
			zap.Error(err))
	}
	e.persistOpenPositions(ctx)
}

// persistOpenPositions writes the current open set to the ledger. Failure
// is logged, not fatal: the trade path must not stall on persistence.
func (e *Engine) persistOpenPositions(ctx context.Context) {
	if err := e.store.SaveOpenPositions(ctx, e.monitor.OpenSnapshots()); err != nil {
		e.logger.Error("open positions not persisted", zap.Error(err))
	}
}
