package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/internal/events"
	"github.com/quantsentry/sentinel/internal/exchange"
	"github.com/quantsentry/sentinel/internal/monitor"
	"github.com/quantsentry/sentinel/internal/monitoring"
	"github.com/quantsentry/sentinel/internal/risk"
	"github.com/quantsentry/sentinel/internal/safety"
	"github.com/quantsentry/sentinel/internal/sizing"
	"github.com/quantsentry/sentinel/internal/stats"
	"github.com/quantsentry/sentinel/pkg/types"
)

type fakeGateway struct {
	mu      sync.Mutex
	equity  float64
	prices  map[string]float64
	candles []types.OHLCV
	opens   []exchange.OpenRequest
}

func (f *fakeGateway) GetCurrentPrice(_ context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[symbol], nil
}

func (f *fakeGateway) GetOHLCV(context.Context, string, string, int) ([]types.OHLCV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candles, nil
}

func (f *fakeGateway) GetEquity(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.equity, nil
}

func (f *fakeGateway) OpenPosition(_ context.Context, req exchange.OpenRequest) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, req)
	return exchange.OrderResult{OrderID: "o-1", Symbol: req.Symbol, Quantity: req.Quantity}, nil
}

func (f *fakeGateway) ClosePosition(_ context.Context, req exchange.CloseRequest) (exchange.OrderResult, error) {
	return exchange.OrderResult{OrderID: "c-1", Symbol: req.Symbol, Quantity: req.Quantity}, nil
}

type memStore struct {
	mu     sync.Mutex
	trades []types.TradeRecord
	open   []types.PositionSnapshot
}

func (s *memStore) SaveTrade(_ context.Context, trade types.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trade)
	return nil
}

func (s *memStore) LoadTrades(context.Context) ([]types.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.TradeRecord(nil), s.trades...), nil
}

func (s *memStore) SaveOpenPositions(_ context.Context, positions []types.PositionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = append([]types.PositionSnapshot(nil), positions...)
	return nil
}

func (s *memStore) LoadOpenPositions(context.Context) ([]types.PositionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.PositionSnapshot(nil), s.open...), nil
}

func (s *memStore) Close() error { return nil }

func testConfig() *config.Config {
	cfg := &config.Config{
		SpotMode:    true,
		Leverage:    1.0,
		MinOrderUSD: 10,
		Risk: config.RiskLimits{
			MaxDailyLossPercent:   5.0,
			MaxTradesPerHour:      6,
			MaxTradesPerDay:       30,
			MaxPositionsPerSymbol: 1,
			MaxCorrelatedFraction: 0.5,
			MinConfidence:         0.55,
			MaxSignalAge:          5 * time.Minute,
		},
		Sizer: config.SizerConfig{
			RiskFraction:   0.01,
			MaxPositionUSD: 5000,
			MinConfScale:   0.5,
			Kelly: config.KellyConfig{
				Enabled:           true,
				MinTradesRequired: 20,
				MinFraction:       0.10,
				MaxFraction:       0.25,
				FullKellyTrades:   50,
			},
		},
		Stops: config.StopConfig{
			ATRMultiplierSL:  2.0,
			ATRMultiplierTP:  3.0,
			MinRiskReward:    1.5,
			DefaultSLPercent: 5.0,
			DefaultTPPercent: 10.0,
			SystemSLPercent:  5.0,
			SystemTPPercent:  7.0,
			LeverageAware:    true,
			ATRPeriod:        14,
		},
		Monitor: config.MonitorConfig{
			CheckInterval:   5 * time.Second,
			FetchTimeout:    time.Second,
			CloseTimeout:    time.Second,
			MaxHoldDuration: 12 * time.Hour,
			MaxConcurrent:   4,
		},
		CorrelationGroups: map[string][]string{
			"ETH": {"SOL", "AVAX"},
		},
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, gw *fakeGateway) (*Engine, *safety.RateWindow, *safety.KillSwitch) {
	t.Helper()
	logger := zap.NewNop()
	metrics := monitoring.NewMetrics()
	bus := events.NewBus(64, logger)

	lossTracker := risk.NewDailyLossTracker()
	rates := safety.NewRateWindow()
	killSwitch := safety.NewKillSwitch(safety.KillSwitchConfig{
		MaxVolatilityPercent: 8.0,
		MaxDrawdownPercent:   10.0,
		CooldownPeriod:       30 * time.Minute,
	})

	mon := monitor.NewMonitor(cfg.Monitor, gw, bus, metrics, logger)

	e, err := New(Deps{
		Config:      cfg,
		Gateway:     gw,
		Limiter:     risk.NewLimiter(cfg.Risk, lossTracker, rates, killSwitch, logger),
		Correlation: risk.NewCorrelationManager(cfg.CorrelationGroups),
		LossTracker: lossTracker,
		Rates:       rates,
		KillSwitch:  killSwitch,
		Stops:       sizing.NewStopCalculator(cfg.Stops, logger),
		Sizer:       sizing.NewSizer(cfg.Sizer, cfg.MinOrderUSD, logger),
		Monitor:     mon,
		History:     stats.NewHistory(),
		Store:       &memStore{},
		Bus:         bus,
		Metrics:     metrics,
		Logger:      logger,
	})
	require.NoError(t, err)
	return e, rates, killSwitch
}

func freshSignal(symbol string) types.Signal {
	return types.Signal{
		Symbol:     symbol,
		Side:       types.SideLong,
		Confidence: 0.9,
		Source:     "test",
		IssuedAt:   time.Now(),
	}
}

func TestEngine_OpensPosition(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	cfg := testConfig()
	e, rates, _ := newTestEngine(t, cfg, gw)

	pos, err := e.HandleSignal(context.Background(), freshSignal("BTC/USDC"))
	require.NoError(t, err)
	require.NotNil(t, pos)

	assert.Equal(t, monitor.StatusOpen, pos.Status)
	assert.Equal(t, 50000.0, pos.EntryPrice)
	// user default 5%/10% percentage stops at 1x leverage
	assert.InDelta(t, 47500.0, pos.StopLoss, 1e-6)
	assert.InDelta(t, 55000.0, pos.TakeProfit, 1e-6)

	require.Len(t, gw.opens, 1)
	assert.Equal(t, 1, rates.CountLastHour())
	assert.Equal(t, 1, e.monitor.CountOnSymbol("BTC/USDC"))
}

func TestEngine_RejectionDoesNotAdvanceCounters(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, rates, _ := newTestEngine(t, testConfig(), gw)

	signal := freshSignal("BTC/USDC")
	signal.Confidence = 0.2

	_, err := e.HandleSignal(context.Background(), signal)
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonLowConfidence, rej.Reason)

	assert.Equal(t, 0, rates.CountLastHour())
	assert.Empty(t, gw.opens)
}

func TestEngine_SymbolCapacity(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, _, _ := newTestEngine(t, testConfig(), gw)

	_, err := e.HandleSignal(context.Background(), freshSignal("BTC/USDC"))
	require.NoError(t, err)

	_, err = e.HandleSignal(context.Background(), freshSignal("BTC/USDC"))
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonMaxPositionsPerSymbol, rej.Reason)
}

func TestEngine_CorrelatedExposureRejected(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{
		"SOL/USDT": 100,
		"ETH/USDT": 2000,
	}}
	e, _, _ := newTestEngine(t, testConfig(), gw)

	_, err := e.HandleSignal(context.Background(), freshSignal("SOL/USDT"))
	require.NoError(t, err)

	_, err = e.HandleSignal(context.Background(), freshSignal("ETH/USDT"))
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonCorrelatedExposure, rej.Reason)
}

func TestEngine_KillSwitchBlocksEntry(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, _, killSwitch := newTestEngine(t, testConfig(), gw)

	killSwitch.ForceTrip("operator halt")

	_, err := e.HandleSignal(context.Background(), freshSignal("BTC/USDC"))
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonKillSwitchActive, rej.Reason)
}

func TestEngine_StaleSignalRejected(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, _, _ := newTestEngine(t, testConfig(), gw)

	signal := freshSignal("BTC/USDC")
	signal.IssuedAt = time.Now().Add(-10 * time.Minute)

	_, err := e.HandleSignal(context.Background(), signal)
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonStaleSignal, rej.Reason)
}

func TestEngine_InvalidSideIsFatal(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, _, _ := newTestEngine(t, testConfig(), gw)

	signal := freshSignal("BTC/USDC")
	signal.Side = "SIDEWAYS"

	_, err := e.HandleSignal(context.Background(), signal)
	require.Error(t, err)
	_, ok := errors.AsRejection(err)
	assert.False(t, ok)
}

func TestEngine_SpotModeForbidsLeverage(t *testing.T) {
	cfg := testConfig()
	cfg.Leverage = 10

	gw := &fakeGateway{equity: 10000}
	logger := zap.NewNop()
	metrics := monitoring.NewMetrics()
	bus := events.NewBus(64, logger)
	lossTracker := risk.NewDailyLossTracker()
	rates := safety.NewRateWindow()
	killSwitch := safety.NewKillSwitch(safety.KillSwitchConfig{})

	_, err := New(Deps{
		Config:      cfg,
		Gateway:     gw,
		Limiter:     risk.NewLimiter(cfg.Risk, lossTracker, rates, killSwitch, logger),
		Correlation: risk.NewCorrelationManager(nil),
		LossTracker: lossTracker,
		Rates:       rates,
		KillSwitch:  killSwitch,
		Stops:       sizing.NewStopCalculator(cfg.Stops, logger),
		Sizer:       sizing.NewSizer(cfg.Sizer, cfg.MinOrderUSD, logger),
		Monitor:     monitor.NewMonitor(cfg.Monitor, gw, bus, metrics, logger),
		History:     stats.NewHistory(),
		Store:       &memStore{},
		Bus:         bus,
		Metrics:     metrics,
		Logger:      logger,
	})
	require.Error(t, err)
}

func TestEngine_BootstrapSeedsHistory(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	cfg := testConfig()
	e, _, _ := newTestEngine(t, cfg, gw)

	store := &memStore{trades: []types.TradeRecord{
		{ID: "t1", Symbol: "BTC/USDC", Side: types.SideLong, PnL: 100, ClosedAt: time.Now().Add(-48 * time.Hour)},
		{ID: "t2", Symbol: "BTC/USDC", Side: types.SideLong, PnL: -50, ClosedAt: time.Now()},
	}}
	e.store = store

	require.NoError(t, e.Bootstrap(context.Background()))
	assert.Equal(t, 2, e.history.Len())
}

func TestEngine_BootstrapRestoresOpenPositions(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, _, _ := newTestEngine(t, testConfig(), gw)

	e.store = &memStore{open: []types.PositionSnapshot{
		{
			ID: "p1", Symbol: "BTC/USDC", Side: types.SideLong,
			Quantity: 0.5, OriginalQuantity: 0.5, Leverage: 1,
			EntryPrice: 48000, StopLoss: 45600, OriginalStopLoss: 45600,
			TakeProfit: 52800, Status: string(monitor.StatusOpen),
			OpenedAt: time.Now().Add(-time.Hour),
		},
		{
			ID: "p2", Symbol: "ETH/USDT", Side: types.SideShort,
			Quantity: 0, Status: string(monitor.StatusTPClosed), // terminal, skipped
		},
	}}

	require.NoError(t, e.Bootstrap(context.Background()))
	assert.Equal(t, 1, e.monitor.OpenCount())
	assert.Equal(t, 1, e.monitor.CountOnSymbol("BTC/USDC"))

	// A restored position occupies its symbol capacity like a fresh one
	_, err := e.HandleSignal(context.Background(), freshSignal("BTC/USDC"))
	rej, ok := errors.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, errors.ReasonMaxPositionsPerSymbol, rej.Reason)
}

func TestEngine_OpenPersistsSnapshot(t *testing.T) {
	gw := &fakeGateway{equity: 10000, prices: map[string]float64{"BTC/USDC": 50000}}
	e, _, _ := newTestEngine(t, testConfig(), gw)
	store := &memStore{}
	e.store = store

	pos, err := e.HandleSignal(context.Background(), freshSignal("BTC/USDC"))
	require.NoError(t, err)

	snaps, err := store.LoadOpenPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, pos.ID, snaps[0].ID)
	assert.Equal(t, string(monitor.StatusOpen), snaps[0].Status)
}
