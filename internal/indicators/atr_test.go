package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantsentry/sentinel/pkg/types"
)

func makeCandles(n int, high, low, close float64) []types.OHLCV {
	data := make([]types.OHLCV, n)
	for i := 0; i < n; i++ {
		data[i] = types.OHLCV{
			Open:      close,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    1000.0,
			Timestamp: time.Now().Add(time.Duration(i) * time.Hour),
		}
	}
	return data
}

func TestATR_ConstantRange(t *testing.T) {
	atr := NewATR(14)

	// Every candle spans exactly 10: the smoothed true range converges to 10
	data := makeCandles(50, 105.0, 95.0, 100.0)

	value, err := atr.Calculate(data)
	if err != nil {
		t.Fatalf("ATR calculation failed: %v", err)
	}

	assert.InDelta(t, 10.0, value, 0.5)
}

func TestATR_InsufficientData(t *testing.T) {
	atr := NewATR(14)

	_, err := atr.Calculate(makeCandles(5, 105.0, 95.0, 100.0))
	assert.Error(t, err)
}

func TestATR_Incremental(t *testing.T) {
	atr := NewATR(14)

	data := makeCandles(30, 105.0, 95.0, 100.0)
	first, err := atr.Calculate(data)
	if err != nil {
		t.Fatalf("initial ATR failed: %v", err)
	}

	// A wider latest candle should pull the smoothed value upward
	wider := append(data, types.OHLCV{
		Open: 100, High: 120, Low: 90, Close: 110, Volume: 1000, Timestamp: time.Now(),
	})
	second, err := atr.Calculate(wider)
	if err != nil {
		t.Fatalf("incremental ATR failed: %v", err)
	}

	assert.Greater(t, second, first)
}

func TestATR_ResetState(t *testing.T) {
	atr := NewATR(14)

	_, err := atr.Calculate(makeCandles(30, 105.0, 95.0, 100.0))
	assert.NoError(t, err)
	assert.Greater(t, atr.GetLastValue(), 0.0)

	atr.ResetState()
	assert.Equal(t, 0.0, atr.GetLastValue())
}

func TestATRPercent(t *testing.T) {
	// Range 10 on close 100 -> ATR% near 10
	pct, err := ATRPercent(makeCandles(50, 105.0, 95.0, 100.0), 14)
	assert.NoError(t, err)
	assert.InDelta(t, 10.0, pct, 0.6)
}
