package risk

import (
	"strings"

	"github.com/quantsentry/sentinel/internal/errors"
)

// OpenExposure describes one open position as seen by the correlation check
type OpenExposure struct {
	Symbol      string
	NotionalUSD float64
}

// CorrelationManager rejects new positions whose base asset is correlated
// with an already open one. The mapping from base asset to correlated peers
// is static configuration; this component only ever reads the open set.
type CorrelationManager struct {
	groups map[string]map[string]bool // base asset -> set of correlated peers
}

// NewCorrelationManager builds the manager from a base-asset -> peers map
func NewCorrelationManager(groups map[string][]string) *CorrelationManager {
	indexed := make(map[string]map[string]bool, len(groups))
	for base, peers := range groups {
		set := make(map[string]bool, len(peers))
		for _, p := range peers {
			set[strings.ToUpper(p)] = true
		}
		indexed[strings.ToUpper(base)] = set
	}
	return &CorrelationManager{groups: indexed}
}

// CheckExposure validates a candidate symbol against the open positions.
// An open position on a correlated peer rejects the candidate. Exact
// duplicates of the candidate symbol are deliberately ignored here: the
// max-positions-per-symbol rule governs those, not correlation.
func (cm *CorrelationManager) CheckExposure(candidateSymbol string, open []OpenExposure) error {
	candidateBase := BaseAsset(candidateSymbol)
	peers := cm.groups[candidateBase]

	for _, pos := range open {
		openBase := BaseAsset(pos.Symbol)
		if openBase == candidateBase {
			continue
		}
		if peers[openBase] || cm.groups[openBase][candidateBase] {
			return errors.NewRejection(
				errors.ReasonCorrelatedExposure,
				candidateSymbol,
				"correlated with open position on "+pos.Symbol,
			)
		}
	}
	return nil
}

// GroupExposureUSD sums the open notional correlated with the candidate,
// including the candidate's own base asset. Used for the correlated-exposure
// fraction limit.
func (cm *CorrelationManager) GroupExposureUSD(candidateSymbol string, open []OpenExposure) float64 {
	candidateBase := BaseAsset(candidateSymbol)
	peers := cm.groups[candidateBase]

	var total float64
	for _, pos := range open {
		openBase := BaseAsset(pos.Symbol)
		if openBase == candidateBase || peers[openBase] || cm.groups[openBase][candidateBase] {
			total += pos.NotionalUSD
		}
	}
	return total
}

// quoteCurrencies are stripped when deriving a base asset from a compact
// symbol like BTCUSDT. Slash-separated symbols split directly.
var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "USD", "EUR", "BTC", "ETH"}

// BaseAsset extracts the base asset from a trading symbol,
// e.g. "BTC/USDC" -> "BTC", "ethusdt" -> "ETH".
func BaseAsset(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.Index(s, "/"); i > 0 {
		return s[:i]
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return strings.TrimSuffix(s, quote)
		}
	}
	return s
}
