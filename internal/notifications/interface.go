package notifications

// Notifier delivers operator alerts outside the process
type Notifier interface {
	SendAlert(level, message string) error
}

// NopNotifier discards all alerts, used when no channel is configured
type NopNotifier struct{}

// SendAlert implements Notifier
func (NopNotifier) SendAlert(string, string) error { return nil }
