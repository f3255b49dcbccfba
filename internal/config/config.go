package config

import (
	"os"
	"strconv"
	"time"
)

// RiskLimits holds the account-level constraints evaluated before any new
// position is allowed. Loaded once per evaluation cycle; mutation is external.
type RiskLimits struct {
	MaxDailyLossPercent   float64 // realized daily loss cap, % of equity
	MaxTradesPerHour      int
	MaxTradesPerDay       int
	MaxPositionsPerSymbol int
	MaxCorrelatedFraction float64 // max fraction of equity in one correlation group
	MinConfidence         float64
	MaxSignalAge          time.Duration
}

// KellyConfig configures progressive fractional Kelly sizing
type KellyConfig struct {
	Enabled           bool
	MinTradesRequired int     // Kelly is undefined below this sample size
	MinFraction       float64 // fraction of full Kelly at the minimum sample
	MaxFraction       float64 // fraction of full Kelly at FullKellyTrades
	FullKellyTrades   int     // sample size at which MaxFraction applies
}

// SizerConfig configures the position sizer
type SizerConfig struct {
	RiskFraction   float64 // per-trade risk as fraction of equity
	MaxPositionUSD float64 // user cap on position notional
	MinConfScale   float64 // confidence multiplier at confidence 0
	Kelly          KellyConfig
}

// StopConfig configures stop-loss/take-profit derivation
type StopConfig struct {
	ATRMultiplierSL  float64 // SL distance in ATR multiples
	ATRMultiplierTP  float64 // TP distance in ATR multiples
	MinRiskReward    float64 // minimum TP/SL distance ratio
	DefaultSLPercent float64 // user default, % of entry (0 = unset)
	DefaultTPPercent float64
	SystemSLPercent  float64 // last-resort system default
	SystemTPPercent  float64
	LeverageAware    bool // divide percentage distances by leverage
	ATRPeriod        int
}

// TrailingTier maps a profit threshold to a trailing distance.
// Higher profit tiers trail tighter to lock in gains.
type TrailingTier struct {
	ProfitPercent   float64
	TrailingPercent float64
}

// TrailingConfig configures the ratchet trailing stop
type TrailingConfig struct {
	Enabled          bool
	BreakEvenPercent float64        // profit % at which SL moves to entry
	Tiers            []TrailingTier // sorted by ProfitPercent ascending
}

// PartialTPLevel maps a profit threshold to a fraction of the original
// quantity to close when it is first reached. LockProfitPercent moves the
// stop to protect that share of the open profit at fill time; 0 means
// break-even.
type PartialTPLevel struct {
	ProfitPercent     float64
	ClosePercent      float64
	LockProfitPercent float64
}

// MonitorConfig configures the supervisory loop
type MonitorConfig struct {
	CheckInterval   time.Duration // cycle cadence
	FetchTimeout    time.Duration // per-symbol price fetch timeout
	CloseTimeout    time.Duration // per-position close call timeout
	MaxHoldDuration time.Duration // time-based exit horizon
	MaxConcurrent   int           // fan-out bound for price fetches
	PartialTPLevels []PartialTPLevel
	Trailing        TrailingConfig
}

// KillSwitchConfig configures the emergency trading halt
type KillSwitchConfig struct {
	MaxVolatilityPercent float64 // ATR% spike that trips the switch
	MaxDrawdownPercent   float64 // equity drawdown that trips the switch
	CooldownPeriod       time.Duration
}

// Config is the root configuration for the engine process
type Config struct {
	Environment string
	LogLevel    string
	SpotMode    bool // spot accounts force leverage 1
	Leverage    float64
	MinOrderUSD float64 // venue minimum order notional

	Risk       RiskLimits
	Sizer      SizerConfig
	Stops      StopConfig
	Monitor    MonitorConfig
	KillSwitch KillSwitchConfig

	Exchange struct {
		Name    string
		APIKey  string
		Secret  string
		Testnet bool
	}

	Ledger struct {
		Driver      string // "postgres" or "file"
		PostgresDSN string
		FilePath    string
	}

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}

	Notifications struct {
		TelegramToken  string
		TelegramChatID string
	}

	Report struct {
		ExcelPath string // empty disables the XLSX export on shutdown
	}

	CorrelationGroups map[string][]string // base asset -> correlated peers
}

// DefaultCorrelationGroups is the static correlation map used when no
// override is configured. Assets in the same group move together closely
// enough that stacking positions across them concentrates risk.
func DefaultCorrelationGroups() map[string][]string {
	return map[string][]string{
		"BTC":  {"ETH"},
		"ETH":  {"BTC", "SOL", "AVAX", "MATIC", "ARB", "OP"},
		"SOL":  {"ETH", "AVAX", "NEAR", "APT", "SUI"},
		"AVAX": {"ETH", "SOL", "DOT"},
		"DOGE": {"SHIB", "PEPE", "FLOKI"},
		"SHIB": {"DOGE", "PEPE"},
		"UNI":  {"AAVE", "MKR", "CRV"},
		"ARB":  {"OP", "ETH", "MATIC"},
		"OP":   {"ARB", "ETH", "MATIC"},
	}
}

// Load builds the configuration from environment variables with defaults
// for every knob. Call godotenv.Load beforehand to pick up a .env file.
func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SpotMode:    getEnvBool("SPOT_MODE", true),
		Leverage:    getEnvFloat("LEVERAGE", 1.0),
		MinOrderUSD: getEnvFloat("MIN_ORDER_USD", 10.0),

		Risk: RiskLimits{
			MaxDailyLossPercent:   getEnvFloat("MAX_DAILY_LOSS_PCT", 5.0),
			MaxTradesPerHour:      getEnvInt("MAX_TRADES_PER_HOUR", 6),
			MaxTradesPerDay:       getEnvInt("MAX_TRADES_PER_DAY", 30),
			MaxPositionsPerSymbol: getEnvInt("MAX_POSITIONS_PER_SYMBOL", 1),
			MaxCorrelatedFraction: getEnvFloat("MAX_CORRELATED_FRACTION", 0.5),
			MinConfidence:         getEnvFloat("MIN_CONFIDENCE", 0.55),
			MaxSignalAge:          getEnvDuration("MAX_SIGNAL_AGE", 5*time.Minute),
		},

		Sizer: SizerConfig{
			RiskFraction:   getEnvFloat("RISK_FRACTION", 0.01),
			MaxPositionUSD: getEnvFloat("MAX_POSITION_USD", 1000.0),
			MinConfScale:   0.5,
			Kelly: KellyConfig{
				Enabled:           getEnvBool("KELLY_ENABLED", true),
				MinTradesRequired: getEnvInt("KELLY_MIN_TRADES", 20),
				MinFraction:       getEnvFloat("KELLY_MIN_FRACTION", 0.10),
				MaxFraction:       getEnvFloat("KELLY_MAX_FRACTION", 0.25),
				FullKellyTrades:   getEnvInt("KELLY_FULL_TRADES", 50),
			},
		},

		Stops: StopConfig{
			ATRMultiplierSL:  getEnvFloat("ATR_MULT_SL", 2.0),
			ATRMultiplierTP:  getEnvFloat("ATR_MULT_TP", 3.0),
			MinRiskReward:    getEnvFloat("MIN_RISK_REWARD", 1.5),
			DefaultSLPercent: getEnvFloat("DEFAULT_SL_PCT", 0),
			DefaultTPPercent: getEnvFloat("DEFAULT_TP_PCT", 0),
			SystemSLPercent:  5.0,
			SystemTPPercent:  7.0,
			LeverageAware:    getEnvBool("LEVERAGE_AWARE_STOPS", true),
			ATRPeriod:        getEnvInt("ATR_PERIOD", 14),
		},

		Monitor: MonitorConfig{
			CheckInterval:   getEnvDuration("MONITOR_INTERVAL", 5*time.Second),
			FetchTimeout:    getEnvDuration("FETCH_TIMEOUT", 5*time.Second),
			CloseTimeout:    getEnvDuration("CLOSE_TIMEOUT", 10*time.Second),
			MaxHoldDuration: getEnvDuration("MAX_HOLD_DURATION", 12*time.Hour),
			MaxConcurrent:   getEnvInt("MONITOR_MAX_CONCURRENT", 8),
			PartialTPLevels: []PartialTPLevel{
				{ProfitPercent: 1.5, ClosePercent: 25},
				{ProfitPercent: 3.0, ClosePercent: 25, LockProfitPercent: 50},
				{ProfitPercent: 5.0, ClosePercent: 25, LockProfitPercent: 75},
			},
			Trailing: TrailingConfig{
				Enabled:          getEnvBool("TRAILING_ENABLED", true),
				BreakEvenPercent: getEnvFloat("BREAK_EVEN_PCT", 2.0),
				Tiers: []TrailingTier{
					{ProfitPercent: 2.0, TrailingPercent: 2.0},
					{ProfitPercent: 4.0, TrailingPercent: 1.5},
					{ProfitPercent: 6.0, TrailingPercent: 1.0},
				},
			},
		},

		KillSwitch: KillSwitchConfig{
			MaxVolatilityPercent: getEnvFloat("KILL_MAX_VOLATILITY_PCT", 8.0),
			MaxDrawdownPercent:   getEnvFloat("KILL_MAX_DRAWDOWN_PCT", 10.0),
			CooldownPeriod:       getEnvDuration("KILL_COOLDOWN", 30*time.Minute),
		},

		CorrelationGroups: DefaultCorrelationGroups(),
	}

	cfg.Exchange.Name = getEnv("EXCHANGE_NAME", "bybit")
	cfg.Exchange.APIKey = getEnv("EXCHANGE_API_KEY", "")
	cfg.Exchange.Secret = getEnv("EXCHANGE_SECRET", "")
	cfg.Exchange.Testnet = getEnvBool("EXCHANGE_TESTNET", true)

	cfg.Ledger.Driver = getEnv("LEDGER_DRIVER", "file")
	cfg.Ledger.PostgresDSN = getEnv("LEDGER_POSTGRES_DSN", "")
	cfg.Ledger.FilePath = getEnv("LEDGER_FILE_PATH", "data/trades.json")

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	cfg.Notifications.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	cfg.Report.ExcelPath = getEnv("REPORT_XLSX_PATH", "")

	// Spot accounts cannot borrow: force 1x regardless of what was requested
	if cfg.SpotMode {
		cfg.Leverage = 1.0
	}

	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
