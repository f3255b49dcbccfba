package events

import (
	"time"

	"github.com/quantsentry/sentinel/pkg/types"
)

// Type identifies what happened to a position or signal
type Type string

const (
	TypePositionOpened      Type = "POSITION_OPENED"
	TypePositionRejected    Type = "POSITION_REJECTED"
	TypeStopLossTriggered   Type = "STOP_LOSS_TRIGGERED"
	TypeTakeProfitTriggered Type = "TAKE_PROFIT_TRIGGERED"
	TypePartialTPTriggered  Type = "PARTIAL_TP_TRIGGERED"
	TypeTimeExitTriggered   Type = "TIME_EXIT_TRIGGERED"
	TypeManualCloseDone     Type = "MANUAL_CLOSE_DONE"
	TypeTrailingStopUpdated Type = "TRAILING_STOP_UPDATED"
	TypeKillSwitchTripped   Type = "KILL_SWITCH_TRIPPED"
	TypeCloseFailed         Type = "CLOSE_FAILED"
)

// Event is a single occurrence emitted by the engine or the monitor.
// Fields beyond Type, Symbol and At are populated per event type.
type Event struct {
	Type       Type
	Symbol     string
	PositionID string
	Side       types.Side
	Price      float64
	Quantity   float64
	PnL        float64
	PnLPercent float64
	Reason     string // rejection reason or close-failure detail
	At         time.Time
}
