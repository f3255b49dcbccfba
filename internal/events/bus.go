package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Bus fans events out to subscribers over buffered channels. Publishing
// never blocks the trading path: when a subscriber's buffer is full the
// event is dropped for that subscriber and counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	dropped     atomic.Uint64
	logger      *zap.Logger
	closed      bool
}

// NewBus creates an event bus with the given per-subscriber buffer size
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{bufferSize: bufferSize, logger: logger}
}

// Subscribe returns a channel that receives every published event.
// The channel is closed when the bus shuts down.
func (b *Bus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers the event to all subscribers without blocking
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event dropped, subscriber buffer full",
				zap.String("type", string(event.Type)),
				zap.String("symbol", event.Symbol))
		}
	}
}

// Dropped returns how many events were dropped since startup
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
