package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Type: TypePositionOpened, Symbol: "BTC/USDC"})

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, TypePositionOpened, ev.Type)
		assert.Equal(t, "BTC/USDC", ev.Symbol)
		assert.False(t, ev.At.IsZero())
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(1, zap.NewNop())
	ch := bus.Subscribe()

	bus.Publish(Event{Type: TypeStopLossTriggered, Symbol: "ETH/USDT"})
	bus.Publish(Event{Type: TypeStopLossTriggered, Symbol: "ETH/USDT"}) // buffer full, dropped

	assert.Equal(t, uint64(1), bus.Dropped())
	<-ch
}

func TestBus_CloseEndsSubscribers(t *testing.T) {
	bus := NewBus(4, zap.NewNop())
	ch := bus.Subscribe()
	bus.Close()

	_, ok := <-ch
	require.False(t, ok)

	// publishing after close is a no-op
	bus.Publish(Event{Type: TypeTimeExitTriggered})

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
