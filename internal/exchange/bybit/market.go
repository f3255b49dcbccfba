package bybit

import (
	"context"
	"encoding/json"
	"fmt"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/pkg/types"
)

// GetCurrentPrice returns the latest traded price for a symbol
func (g *Gateway) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": g.category,
		"symbol":   venueSymbol(symbol),
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryNetwork, "bybit", "GetCurrentPrice")
	}

	var ticker struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := decodeResult(result, &ticker); err != nil {
		return 0, errors.Wrap(err, errors.CategoryExchange, "bybit", "GetCurrentPrice")
	}
	if len(ticker.List) == 0 {
		return 0, errors.New(errors.CategoryExchange, "bybit", "GetCurrentPrice",
			"no ticker data for "+symbol)
	}

	price := parseFloat(ticker.List[0].LastPrice)
	if price <= 0 {
		return 0, errors.New(errors.CategoryExchange, "bybit", "GetCurrentPrice",
			fmt.Sprintf("non-positive price %q for %s", ticker.List[0].LastPrice, symbol))
	}
	return price, nil
}

// GetOHLCV returns up to limit recent candles for the symbol, oldest first
func (g *Gateway) GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": g.category,
		"symbol":   venueSymbol(symbol),
		"interval": venueInterval(interval),
		"limit":    limit,
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryNetwork, "bybit", "GetOHLCV")
	}

	var kline struct {
		List [][]string `json:"list"`
	}
	if err := decodeResult(result, &kline); err != nil {
		return nil, errors.Wrap(err, errors.CategoryExchange, "bybit", "GetOHLCV")
	}

	// Bybit returns newest first: [startTime, open, high, low, close, volume, turnover]
	candles := make([]types.OHLCV, 0, len(kline.List))
	for i := len(kline.List) - 1; i >= 0; i-- {
		row := kline.List[i]
		if len(row) < 6 {
			continue
		}
		candles = append(candles, types.OHLCV{
			Timestamp: parseMillis(row[0]),
			Open:      parseFloat(row[1]),
			High:      parseFloat(row[2]),
			Low:       parseFloat(row[3]),
			Close:     parseFloat(row[4]),
			Volume:    parseFloat(row[5]),
		})
	}
	return candles, nil
}

// decodeResult checks the API return code and unmarshals the result payload
func decodeResult(response interface{}, out interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("unexpected response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return fmt.Errorf("api error %d: %s", serverResp.RetCode, serverResp.RetMsg)
	}

	raw, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
