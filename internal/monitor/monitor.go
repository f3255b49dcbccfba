package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/events"
	"github.com/quantsentry/sentinel/internal/exchange"
	"github.com/quantsentry/sentinel/internal/monitoring"
	"github.com/quantsentry/sentinel/internal/risk"
	"github.com/quantsentry/sentinel/pkg/types"
)

// Monitor supervises open positions on a fixed cycle: it fetches current
// prices, tightens trailing stops, fires partial take-profits and closes
// positions whose stop, target or time horizon has been hit.
//
// m.mu guards the position map and every field of the tracked positions.
// The cycle goroutine acquires it for each mutation, so the read-only
// queries see consistent state from any goroutine. Venue calls are never
// made while holding the lock.
type Monitor struct {
	config  config.MonitorConfig
	gateway exchange.Gateway
	bus     *events.Bus
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu        sync.RWMutex
	positions map[string]*Position

	onClose func(types.TradeRecord)
	now     func() time.Time
}

// NewMonitor creates a position monitor
func NewMonitor(cfg config.MonitorConfig, gateway exchange.Gateway, bus *events.Bus, metrics *monitoring.Metrics, logger *zap.Logger) *Monitor {
	return &Monitor{
		config:    cfg,
		gateway:   gateway,
		bus:       bus,
		metrics:   metrics,
		logger:    logger,
		positions: make(map[string]*Position),
		now:       time.Now,
	}
}

// SetCloseCallback registers the function invoked with the trade record of
// every fully closed position. Must be called before Run.
func (m *Monitor) SetCloseCallback(fn func(types.TradeRecord)) {
	m.onClose = fn
}

// Track places a position under supervision
func (m *Monitor) Track(p *Position) {
	m.mu.Lock()
	m.positions[p.ID] = p
	open := len(m.positions)
	m.mu.Unlock()

	m.metrics.OpenPositions.Set(float64(open))
	m.logger.Info("position tracked",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.String("side", string(p.Side)),
		zap.Float64("entry", p.EntryPrice),
		zap.Float64("stop_loss", p.StopLoss),
		zap.Float64("take_profit", p.TakeProfit))
}

// OpenCount returns the number of supervised positions
func (m *Monitor) OpenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// CountOnSymbol returns how many supervised positions exist for the symbol
func (m *Monitor) CountOnSymbol(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.positions {
		if p.Symbol == symbol {
			n++
		}
	}
	return n
}

// Exposures returns the open notional per supervised position, valued at
// entry price.
func (m *Monitor) Exposures() []risk.OpenExposure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]risk.OpenExposure, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, risk.OpenExposure{
			Symbol:      p.Symbol,
			NotionalUSD: p.Quantity * p.EntryPrice,
		})
	}
	return out
}

// Snapshot returns copies of all supervised positions
func (m *Monitor) Snapshot() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// OpenSnapshots returns the persistable state of all supervised positions
func (m *Monitor) OpenSnapshots() []types.PositionSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.PositionSnapshot, 0, len(m.positions))
	for _, p := range m.positions {
		hit := make([]bool, len(p.partialsHit))
		copy(hit, p.partialsHit)
		out = append(out, types.PositionSnapshot{
			ID:               p.ID,
			Symbol:           p.Symbol,
			Side:             p.Side,
			Quantity:         p.Quantity,
			OriginalQuantity: p.OriginalQuantity,
			Leverage:         p.Leverage,
			EntryPrice:       p.EntryPrice,
			StopLoss:         p.StopLoss,
			OriginalStopLoss: p.OriginalStopLoss,
			TakeProfit:       p.TakeProfit,
			RealizedPnL:      p.RealizedPnL,
			HighestPrice:     p.HighestPrice,
			LowestPrice:      p.LowestPrice,
			PartialsHit:      hit,
			Status:           string(p.Status),
			OpenedAt:         p.OpenedAt,
		})
	}
	return out
}

// Restore places previously persisted positions back under supervision.
// Terminal or empty snapshots are skipped. The partial ladder is re-sized
// to the current configuration; levels beyond a shorter persisted ladder
// start unhit.
func (m *Monitor) Restore(snaps []types.PositionSnapshot) int {
	restored := 0
	for _, s := range snaps {
		if Status(s.Status).Closed() || s.Quantity <= 0 {
			continue
		}
		hit := make([]bool, len(m.config.PartialTPLevels))
		copy(hit, s.PartialsHit)
		high, low := s.HighestPrice, s.LowestPrice
		if high <= 0 {
			high = s.EntryPrice
		}
		if low <= 0 {
			low = s.EntryPrice
		}
		m.Track(&Position{
			ID:               s.ID,
			Symbol:           s.Symbol,
			Side:             s.Side,
			Quantity:         s.Quantity,
			OriginalQuantity: s.OriginalQuantity,
			Leverage:         s.Leverage,
			EntryPrice:       s.EntryPrice,
			StopLoss:         s.StopLoss,
			OriginalStopLoss: s.OriginalStopLoss,
			TakeProfit:       s.TakeProfit,
			RealizedPnL:      s.RealizedPnL,
			HighestPrice:     high,
			LowestPrice:      low,
			Status:           Status(s.Status),
			OpenedAt:         s.OpenedAt,
			partialsHit:      hit,
		})
		restored++
	}
	return restored
}

// Run drives the monitoring loop until the context is cancelled. On
// shutdown every still-open position is logged as losing supervision;
// positions are never force-closed by shutdown.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	m.logger.Info("position monitor started",
		zap.Duration("interval", m.config.CheckInterval))

	for {
		select {
		case <-ctx.Done():
			for _, p := range m.Snapshot() {
				m.logger.Warn("position losing supervision on shutdown",
					zap.String("id", p.ID),
					zap.String("symbol", p.Symbol),
					zap.Float64("stop_loss", p.StopLoss))
			}
			m.logger.Info("position monitor stopped")
			return
		case <-ticker.C:
			m.RunCycle(ctx)
		}
	}
}

// RunCycle executes one supervision pass over all tracked positions
func (m *Monitor) RunCycle(ctx context.Context) {
	m.metrics.MonitorCycles.Inc()
	defer func(start time.Time) {
		m.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	m.mu.RLock()
	tracked := make([]*Position, 0, len(m.positions))
	for _, p := range m.positions {
		tracked = append(tracked, p)
	}
	m.mu.RUnlock()

	if len(tracked) == 0 {
		return
	}

	prices := m.fetchPrices(ctx, tracked)

	for _, p := range tracked {
		price, ok := prices[p.Symbol]
		if !ok {
			// No price this cycle: the position keeps its stops and is
			// re-checked next cycle
			continue
		}
		m.evaluate(ctx, p, price)
	}
}

// fetchPrices fans out price requests with bounded concurrency and a
// per-request timeout. Failed symbols are absent from the result.
func (m *Monitor) fetchPrices(ctx context.Context, tracked []*Position) map[string]float64 {
	symbols := make(map[string]bool)
	for _, p := range tracked {
		symbols[p.Symbol] = true
	}

	var mu sync.Mutex
	prices := make(map[string]float64, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.MaxConcurrent)

	for symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, m.config.FetchTimeout)
			defer cancel()

			price, err := m.gateway.GetCurrentPrice(fetchCtx, symbol)
			if err != nil {
				m.metrics.PriceFetchErrors.WithLabelValues(symbol).Inc()
				m.logger.Warn("price fetch failed",
					zap.String("symbol", symbol),
					zap.Error(err))
				return nil // a failed symbol must not cancel the others
			}

			mu.Lock()
			prices[symbol] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prices
}

// evaluate runs trailing, partial take-profit and exit checks for one
// position at the given price. Position fields are only read or written
// under m.mu; the venue close calls happen outside the lock.
func (m *Monitor) evaluate(ctx context.Context, p *Position, price float64) {
	m.mu.Lock()
	if p.Status.Closed() || p.closing {
		m.mu.Unlock()
		return
	}

	p.updateExtremes(price)
	tightened := applyTrailing(m.config.Trailing, p, price)
	newStop := p.StopLoss

	var trigger string
	switch {
	case p.stopHit(price):
		trigger = "stop_loss"
	case p.targetHit(price):
		trigger = "take_profit"
	case m.now().Sub(p.OpenedAt) >= m.config.MaxHoldDuration:
		trigger = "time_exit"
	}
	var partials []int
	if trigger == "" {
		partials = pendingPartials(m.config.PartialTPLevels, p, price)
	}
	m.mu.Unlock()

	if tightened {
		m.metrics.TrailingUpdates.Inc()
		m.bus.Publish(events.Event{
			Type:       events.TypeTrailingStopUpdated,
			Symbol:     p.Symbol,
			PositionID: p.ID,
			Side:       p.Side,
			Price:      newStop,
		})
		m.logger.Debug("trailing stop tightened",
			zap.String("symbol", p.Symbol),
			zap.Float64("stop_loss", newStop),
			zap.Float64("price", price))
	}

	switch trigger {
	case "stop_loss":
		m.closeFull(ctx, p, price, StatusSLClosed, "stop_loss", events.TypeStopLossTriggered)
	case "take_profit":
		m.closeFull(ctx, p, price, StatusTPClosed, "take_profit", events.TypeTakeProfitTriggered)
	case "time_exit":
		m.closeFull(ctx, p, price, StatusTimeClosed, "time_exit", events.TypeTimeExitTriggered)
	default:
		for _, idx := range partials {
			m.executePartial(ctx, p, idx, price)
		}
	}
}

// closeFull closes the remaining quantity of a position. A failed close
// keeps the position open and supervised; the trigger fires again next
// cycle.
func (m *Monitor) closeFull(ctx context.Context, p *Position, price float64, status Status, reason string, eventType events.Type) {
	m.mu.Lock()
	if p.Status.Closed() || p.closing {
		m.mu.Unlock()
		return
	}
	p.closing = true
	qty := p.Quantity
	m.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(ctx, m.config.CloseTimeout)
	defer cancel()

	result, err := m.gateway.ClosePosition(closeCtx, exchange.CloseRequest{
		Symbol:   p.Symbol,
		Side:     p.Side,
		Quantity: qty,
	})
	if err != nil {
		m.mu.Lock()
		p.closing = false
		m.mu.Unlock()
		m.metrics.CloseFailures.Inc()
		m.bus.Publish(events.Event{
			Type:       events.TypeCloseFailed,
			Symbol:     p.Symbol,
			PositionID: p.ID,
			Reason:     err.Error(),
		})
		m.logger.Error("position close failed, will retry next cycle",
			zap.String("id", p.ID),
			zap.String("symbol", p.Symbol),
			zap.String("trigger", reason),
			zap.Error(err))
		return
	}

	exitPrice := result.Price
	if exitPrice <= 0 {
		exitPrice = price
	}

	m.mu.Lock()
	p.RealizedPnL += p.UnrealizedPnL(exitPrice)
	p.ExitPrice = exitPrice
	p.ClosedAt = m.now()
	p.Quantity = 0
	p.Status = status
	pnl := p.RealizedPnL
	pnlPct := p.PnLPercent(exitPrice)
	rec := p.record(reason)
	delete(m.positions, p.ID)
	open := len(m.positions)
	m.mu.Unlock()

	m.metrics.OpenPositions.Set(float64(open))
	m.metrics.PositionsClosed.WithLabelValues(reason).Inc()

	m.bus.Publish(events.Event{
		Type:       eventType,
		Symbol:     p.Symbol,
		PositionID: p.ID,
		Side:       p.Side,
		Price:      exitPrice,
		PnL:        pnl,
		PnLPercent: pnlPct,
	})
	m.logger.Info("position closed",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.String("reason", reason),
		zap.Float64("exit", exitPrice),
		zap.Float64("pnl", pnl))

	if m.onClose != nil {
		m.onClose(rec)
	}
}

// executePartial closes one ladder level's fraction of the original
// quantity and moves the stop to the level's profit lock, break-even at
// minimum.
func (m *Monitor) executePartial(ctx context.Context, p *Position, idx int, price float64) {
	level := m.config.PartialTPLevels[idx]

	m.mu.Lock()
	if p.Status.Closed() || p.closing || p.partialsHit[idx] {
		m.mu.Unlock()
		return
	}
	qty := p.OriginalQuantity * level.ClosePercent / 100
	if qty > p.Quantity {
		qty = p.Quantity
	}
	m.mu.Unlock()
	if qty <= 0 {
		return
	}

	closeCtx, cancel := context.WithTimeout(ctx, m.config.CloseTimeout)
	defer cancel()

	result, err := m.gateway.ClosePosition(closeCtx, exchange.CloseRequest{
		Symbol:   p.Symbol,
		Side:     p.Side,
		Quantity: qty,
	})
	if err != nil {
		m.metrics.CloseFailures.Inc()
		m.logger.Error("partial close failed, will retry next cycle",
			zap.String("id", p.ID),
			zap.String("symbol", p.Symbol),
			zap.Int("level", idx),
			zap.Error(err))
		return
	}

	fillPrice := result.Price
	if fillPrice <= 0 {
		fillPrice = price
	}

	m.mu.Lock()
	diff := fillPrice - p.EntryPrice
	if p.Side == types.SideShort {
		diff = -diff
	}
	p.RealizedPnL += diff * qty
	p.Quantity -= qty
	p.partialsHit[idx] = true
	p.Status = StatusPartialExit

	// Break-even at minimum; levels with a profit lock protect that share
	// of the move on the remainder
	lock := p.EntryPrice
	if level.LockProfitPercent > 0 && diff > 0 {
		locked := diff * level.LockProfitPercent / 100
		if p.Side == types.SideShort {
			lock = p.EntryPrice - locked
		} else {
			lock = p.EntryPrice + locked
		}
	}
	tightenStop(p, lock)

	remaining := p.Quantity
	consumed := remaining <= 1e-12
	var rec types.TradeRecord
	open := len(m.positions)
	if consumed {
		// Ladder consumed the whole position
		p.ExitPrice = fillPrice
		p.ClosedAt = m.now()
		p.Status = StatusTPClosed
		rec = p.record("take_profit")
		delete(m.positions, p.ID)
		open = len(m.positions)
	}
	m.mu.Unlock()

	m.bus.Publish(events.Event{
		Type:       events.TypePartialTPTriggered,
		Symbol:     p.Symbol,
		PositionID: p.ID,
		Side:       p.Side,
		Price:      fillPrice,
		Quantity:   qty,
		PnL:        diff * qty,
	})
	m.logger.Info("partial take-profit filled",
		zap.String("id", p.ID),
		zap.String("symbol", p.Symbol),
		zap.Int("level", idx),
		zap.Float64("quantity", qty),
		zap.Float64("remaining", remaining))

	if consumed {
		m.metrics.OpenPositions.Set(float64(open))
		m.metrics.PositionsClosed.WithLabelValues("take_profit").Inc()
		if m.onClose != nil {
			m.onClose(rec)
		}
	}
}

// ClosePositionByID closes a supervised position at market regardless of
// its stops. Used by operator commands and shutdown procedures.
func (m *Monitor) ClosePositionByID(ctx context.Context, id string) error {
	m.mu.RLock()
	p, ok := m.positions[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	price, err := m.gateway.GetCurrentPrice(ctx, p.Symbol)
	if err != nil {
		return err
	}
	m.closeFull(ctx, p, price, StatusManuallyClosed, "manual", events.TypeManualCloseDone)
	return nil
}
