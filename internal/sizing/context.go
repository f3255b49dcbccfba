package sizing

import (
	"github.com/quantsentry/sentinel/internal/stats"
)

// Context carries the account and market inputs a single sizing decision
// needs. It is assembled by the orchestrator right before opening a
// position and never reused.
type Context struct {
	Equity     float64 // account equity in quote currency
	Price      float64 // intended entry price
	ATR        float64 // current ATR in price units, 0 when unavailable
	Leverage   float64 // >= 1; spot mode always passes 1
	Confidence float64 // signal confidence in [0, 1]
	History    stats.Summary
}
