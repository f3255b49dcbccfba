package bybit

import (
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Gateway implements exchange.Gateway against the Bybit v5 unified API
type Gateway struct {
	httpClient *bybit_api.Client
	category   string // "spot" or "linear"
	quoteCoin  string // settlement coin for equity queries
	testnet    bool
}

// Config holds the Bybit connection settings
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	SpotMode  bool   // spot category instead of linear perpetuals
	QuoteCoin string // defaults to USDT
}

// NewGateway creates a Bybit gateway
func NewGateway(cfg Config) *Gateway {
	baseURL := bybit_api.MAINNET
	if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	}

	category := "linear"
	if cfg.SpotMode {
		category = "spot"
	}

	quote := cfg.QuoteCoin
	if quote == "" {
		quote = "USDT"
	}

	return &Gateway{
		httpClient: bybit_api.NewBybitHttpClient(
			cfg.APIKey,
			cfg.APISecret,
			bybit_api.WithBaseURL(baseURL),
		),
		category:  category,
		quoteCoin: quote,
		testnet:   cfg.Testnet,
	}
}

// IsTestnet reports whether the gateway targets the testnet
func (g *Gateway) IsTestnet() bool {
	return g.testnet
}

// venueSymbol converts "BTC/USDC" to Bybit's "BTCUSDC" form
func venueSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

// venueInterval maps human intervals to Bybit kline interval codes
func venueInterval(interval string) string {
	switch interval {
	case "1m":
		return "1"
	case "5m":
		return "5"
	case "15m":
		return "15"
	case "30m":
		return "30"
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "D"
	default:
		return interval
	}
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseMillis(s string) time.Time {
	ms, _ := strconv.ParseInt(s, 10, 64)
	return time.UnixMilli(ms)
}
