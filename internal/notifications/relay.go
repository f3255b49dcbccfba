package notifications

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quantsentry/sentinel/internal/events"
)

// Relay forwards engine events to the notifier until the context is
// cancelled or the event channel closes. Notification failures are logged
// and never propagate back to the trading path.
func Relay(ctx context.Context, ch <-chan events.Event, notifier Notifier, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			level, message := format(event)
			if message == "" {
				continue
			}
			if err := notifier.SendAlert(level, levelEmoji(level)+" "+message); err != nil {
				logger.Warn("notification failed",
					zap.String("type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}

// levelEmoji prefixes messages so severity is visible at a glance in chat
// clients.
func levelEmoji(level string) string {
	switch level {
	case "warning":
		return "⚠️"
	case "error":
		return "🚨"
	case "success":
		return "✅"
	default:
		return "ℹ️"
	}
}

// format maps an event to an alert level and text. Unmapped event types
// produce no alert.
func format(e events.Event) (string, string) {
	switch e.Type {
	case events.TypePositionOpened:
		return "info", fmt.Sprintf("Opened %s %s qty %.6f at %.4f", e.Side, e.Symbol, e.Quantity, e.Price)
	case events.TypeStopLossTriggered:
		return "warning", fmt.Sprintf("Stop loss hit on %s at %.4f, PnL %.2f (%.2f%%)", e.Symbol, e.Price, e.PnL, e.PnLPercent)
	case events.TypeTakeProfitTriggered:
		return "success", fmt.Sprintf("Take profit hit on %s at %.4f, PnL %.2f (%.2f%%)", e.Symbol, e.Price, e.PnL, e.PnLPercent)
	case events.TypePartialTPTriggered:
		return "success", fmt.Sprintf("Partial take profit on %s: closed %.6f at %.4f", e.Symbol, e.Quantity, e.Price)
	case events.TypeTimeExitTriggered:
		return "info", fmt.Sprintf("Time exit on %s at %.4f, PnL %.2f", e.Symbol, e.Price, e.PnL)
	case events.TypeCloseFailed:
		return "error", fmt.Sprintf("Close FAILED on %s: %s (position stays open)", e.Symbol, e.Reason)
	case events.TypeKillSwitchTripped:
		return "error", fmt.Sprintf("Kill switch tripped: %s", e.Reason)
	case events.TypePositionRejected:
		return "info", fmt.Sprintf("Signal rejected on %s: %s", e.Symbol, e.Reason)
	default:
		return "", ""
	}
}
