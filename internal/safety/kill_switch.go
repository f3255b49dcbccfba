package safety

import (
	"fmt"
	"sync"
	"time"
)

// KillSwitchState represents the state of the kill switch
type KillSwitchState int

const (
	KillSwitchArmed   KillSwitchState = iota // normal trading
	KillSwitchTripped                        // entry halted
	KillSwitchCooling                        // cooldown elapsed, next clean observation re-arms
)

// String returns the string representation of the kill switch state
func (s KillSwitchState) String() string {
	switch s {
	case KillSwitchArmed:
		return "ARMED"
	case KillSwitchTripped:
		return "TRIPPED"
	case KillSwitchCooling:
		return "COOLING"
	default:
		return "UNKNOWN"
	}
}

// KillSwitchConfig holds the thresholds that trip the switch
type KillSwitchConfig struct {
	MaxVolatilityPercent float64       // ATR% above this trips the switch
	MaxDrawdownPercent   float64       // drawdown from equity peak above this trips
	CooldownPeriod       time.Duration // minimum halt duration after a trip
}

// KillSwitch is an emergency halt that disables new position entry under
// extreme market conditions. Open positions remain supervised; only entry
// is blocked.
type KillSwitch struct {
	config     KillSwitchConfig
	state      KillSwitchState
	reason     string
	trippedAt  time.Time
	peakEquity float64
	mutex      sync.RWMutex
	now        func() time.Time

	onStateChange func(from, to KillSwitchState, reason string)
}

// NewKillSwitch creates an armed kill switch
func NewKillSwitch(config KillSwitchConfig) *KillSwitch {
	if config.CooldownPeriod == 0 {
		config.CooldownPeriod = 30 * time.Minute
	}
	return &KillSwitch{
		config: config,
		state:  KillSwitchArmed,
		now:    time.Now,
	}
}

// SetStateChangeCallback registers a callback invoked on state transitions
func (ks *KillSwitch) SetStateChangeCallback(cb func(from, to KillSwitchState, reason string)) {
	ks.mutex.Lock()
	defer ks.mutex.Unlock()
	ks.onStateChange = cb
}

// Observe feeds the latest market and account readings into the switch.
// Volatility is ATR as a percentage of price; equity is current account
// equity used for drawdown tracking against the running peak.
func (ks *KillSwitch) Observe(volatilityPercent, equity float64) {
	ks.mutex.Lock()
	defer ks.mutex.Unlock()

	if equity > ks.peakEquity {
		ks.peakEquity = equity
	}

	var drawdownPercent float64
	if ks.peakEquity > 0 {
		drawdownPercent = (ks.peakEquity - equity) / ks.peakEquity * 100
	}

	switch {
	case ks.config.MaxVolatilityPercent > 0 && volatilityPercent >= ks.config.MaxVolatilityPercent:
		ks.trip(fmt.Sprintf("volatility %.1f%% >= %.1f%%", volatilityPercent, ks.config.MaxVolatilityPercent))
	case ks.config.MaxDrawdownPercent > 0 && drawdownPercent >= ks.config.MaxDrawdownPercent:
		ks.trip(fmt.Sprintf("drawdown %.1f%% >= %.1f%%", drawdownPercent, ks.config.MaxDrawdownPercent))
	default:
		// Re-arming takes two consecutive clean observations once the
		// cooldown has elapsed, so a single calm tick inside a storm
		// does not reopen entry.
		if ks.state == KillSwitchTripped && ks.now().Sub(ks.trippedAt) >= ks.config.CooldownPeriod {
			ks.changeState(KillSwitchCooling, "cooldown elapsed")
		} else if ks.state == KillSwitchCooling {
			ks.changeState(KillSwitchArmed, "conditions normalized")
			ks.reason = ""
		}
	}
}

// ForceTrip trips the switch manually, e.g. from an operator command
func (ks *KillSwitch) ForceTrip(reason string) {
	ks.mutex.Lock()
	defer ks.mutex.Unlock()
	ks.trip(reason)
}

// Reset re-arms the switch regardless of cooldown
func (ks *KillSwitch) Reset() {
	ks.mutex.Lock()
	defer ks.mutex.Unlock()
	ks.changeState(KillSwitchArmed, "manual reset")
	ks.reason = ""
}

// Active reports whether new position entry is currently halted.
// Entry stays blocked through COOLING until the switch fully re-arms.
func (ks *KillSwitch) Active() bool {
	ks.mutex.RLock()
	defer ks.mutex.RUnlock()
	return ks.state != KillSwitchArmed
}

// Reason returns why the switch tripped, empty when armed
func (ks *KillSwitch) Reason() string {
	ks.mutex.RLock()
	defer ks.mutex.RUnlock()
	return ks.reason
}

// GetState returns the current state
func (ks *KillSwitch) GetState() KillSwitchState {
	ks.mutex.RLock()
	defer ks.mutex.RUnlock()
	return ks.state
}

// trip transitions to TRIPPED. Caller holds the lock.
func (ks *KillSwitch) trip(reason string) {
	if ks.state != KillSwitchTripped {
		ks.trippedAt = ks.now()
		ks.reason = reason
		ks.changeState(KillSwitchTripped, reason)
		return
	}
	// Already tripped: extend the halt and keep the newest reason
	ks.trippedAt = ks.now()
	ks.reason = reason
}

// changeState transitions state and fires the callback. Caller holds the lock.
func (ks *KillSwitch) changeState(newState KillSwitchState, reason string) {
	oldState := ks.state
	ks.state = newState
	if ks.onStateChange != nil && oldState != newState {
		// Fire outside the lock to avoid deadlocks in the callback
		go ks.onStateChange(oldState, newState, reason)
	}
}
