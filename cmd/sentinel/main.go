package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quantsentry/sentinel/internal/config"
	"github.com/quantsentry/sentinel/internal/engine"
	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/internal/events"
	"github.com/quantsentry/sentinel/internal/exchange/bybit"
	"github.com/quantsentry/sentinel/internal/ledger"
	"github.com/quantsentry/sentinel/internal/monitor"
	"github.com/quantsentry/sentinel/internal/monitoring"
	"github.com/quantsentry/sentinel/internal/notifications"
	"github.com/quantsentry/sentinel/internal/report"
	"github.com/quantsentry/sentinel/internal/risk"
	"github.com/quantsentry/sentinel/internal/safety"
	"github.com/quantsentry/sentinel/internal/sizing"
	"github.com/quantsentry/sentinel/internal/stats"
	"github.com/quantsentry/sentinel/pkg/types"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("engine terminated", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway := bybit.NewGateway(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.Secret,
		Testnet:   cfg.Exchange.Testnet,
		SpotMode:  cfg.SpotMode,
	})

	store, err := buildLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthServer()
	health.SetStatus("ledger", true, cfg.Ledger.Driver)
	bus := events.NewBus(256, logger)
	defer bus.Close()

	lossTracker := risk.NewDailyLossTracker()
	rates := safety.NewRateWindow()
	killSwitch := safety.NewKillSwitch(safety.KillSwitchConfig{
		MaxVolatilityPercent: cfg.KillSwitch.MaxVolatilityPercent,
		MaxDrawdownPercent:   cfg.KillSwitch.MaxDrawdownPercent,
		CooldownPeriod:       cfg.KillSwitch.CooldownPeriod,
	})
	killSwitch.SetStateChangeCallback(func(from, to safety.KillSwitchState, reason string) {
		logger.Warn("kill switch state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.String("reason", reason))
		if to == safety.KillSwitchTripped {
			metrics.KillSwitchTrips.Inc()
			bus.Publish(events.Event{Type: events.TypeKillSwitchTripped, Reason: reason})
		}
	})

	mon := monitor.NewMonitor(cfg.Monitor, gateway, bus, metrics, logger)
	history := stats.NewHistory()

	eng, err := engine.New(engine.Deps{
		Config:      cfg,
		Gateway:     gateway,
		Limiter:     risk.NewLimiter(cfg.Risk, lossTracker, rates, killSwitch, logger),
		Correlation: risk.NewCorrelationManager(cfg.CorrelationGroups),
		LossTracker: lossTracker,
		Rates:       rates,
		KillSwitch:  killSwitch,
		Stops:       sizing.NewStopCalculator(cfg.Stops, logger),
		Sizer:       sizing.NewSizer(cfg.Sizer, cfg.MinOrderUSD, logger),
		Monitor:     mon,
		History:     history,
		Store:       store,
		Bus:         bus,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if err := eng.Bootstrap(ctx); err != nil {
		return err
	}

	// Connectivity check so the health surface reflects the venue, not
	// just process liveness
	if _, err := gateway.GetEquity(ctx); err != nil {
		health.SetStatus("exchange", false, err.Error())
		logger.Warn("exchange connectivity check failed", zap.Error(err))
	} else {
		health.SetStatus("exchange", true, "")
	}

	go func() {
		if err := metrics.Serve(cfg.Monitoring.PrometheusPort); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := health.Serve(cfg.Monitoring.HealthPort); err != nil {
			logger.Error("health server stopped", zap.Error(err))
		}
	}()
	health.SetStatus("engine", true, "")

	notifier := buildNotifier(cfg)
	go notifications.Relay(ctx, bus.Subscribe(), notifier, logger)

	go readSignals(ctx, eng, logger)

	logger.Info("sentinel started",
		zap.String("environment", cfg.Environment),
		zap.Bool("spot_mode", cfg.SpotMode),
		zap.Float64("leverage", cfg.Leverage),
		zap.Bool("testnet", cfg.Exchange.Testnet))

	eng.Run(ctx) // blocks until shutdown
	health.SetStatus("engine", false, "shutting down")

	printSessionReport(cfg, mon, history, logger)
	return nil
}

// readSignals consumes trading signals as JSON lines from stdin. Signal
// generation itself lives outside this process; this is just transport.
func readSignals(ctx context.Context, eng *engine.Engine, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var sig types.Signal
		if err := json.Unmarshal(line, &sig); err != nil {
			logger.Warn("malformed signal line", zap.Error(err))
			continue
		}
		if sig.IssuedAt.IsZero() {
			sig.IssuedAt = time.Now()
		}

		if _, err := eng.HandleSignal(ctx, sig); err != nil {
			if _, ok := errors.AsRejection(err); ok {
				continue // already logged and counted by the engine
			}
			logger.Error("signal handling failed",
				zap.String("symbol", sig.Symbol),
				zap.Error(err))
		}
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

func buildLedger(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	if cfg.Ledger.Driver == "postgres" {
		return ledger.NewPostgresStore(ctx, cfg.Ledger.PostgresDSN)
	}
	return ledger.NewFileStore(cfg.Ledger.FilePath)
}

func buildNotifier(cfg *config.Config) notifications.Notifier {
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.TelegramChatID != "" {
		return notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
	}
	return notifications.NopNotifier{}
}

func printSessionReport(cfg *config.Config, mon *monitor.Monitor, history *stats.History, logger *zap.Logger) {
	summary := history.Summarize()
	trades := history.Snapshot()

	report.PrintSummary(os.Stdout, summary)
	report.PrintTrades(os.Stdout, trades)
	report.PrintOpenPositions(os.Stdout, mon.Snapshot())

	if cfg.Report.ExcelPath == "" {
		return
	}
	if err := report.WriteExcel(cfg.Report.ExcelPath, trades, summary); err != nil {
		logger.Error("xlsx export failed",
			zap.String("path", cfg.Report.ExcelPath),
			zap.Error(err))
		return
	}
	logger.Info("session report exported",
		zap.String("path", cfg.Report.ExcelPath),
		zap.Int("trades", len(trades)))
}
