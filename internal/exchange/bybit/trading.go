package bybit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quantsentry/sentinel/internal/errors"
	"github.com/quantsentry/sentinel/internal/exchange"
	"github.com/quantsentry/sentinel/pkg/types"
)

// retLeverageNotModified is Bybit's return code when the requested
// leverage equals the current setting.
const retLeverageNotModified = 110043

// GetEquity returns total account equity in the quote coin
func (g *Gateway) GetEquity(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        g.quoteCoin,
	}

	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryNetwork, "bybit", "GetEquity")
	}

	var wallet struct {
		List []struct {
			TotalEquity string `json:"totalEquity"`
		} `json:"list"`
	}
	if err := decodeResult(result, &wallet); err != nil {
		return 0, errors.Wrap(err, errors.CategoryExchange, "bybit", "GetEquity")
	}
	if len(wallet.List) == 0 {
		return 0, errors.New(errors.CategoryExchange, "bybit", "GetEquity", "empty wallet response")
	}
	return parseFloat(wallet.List[0].TotalEquity), nil
}

// OpenPosition submits a market order establishing a new position. For
// margined categories the symbol's leverage is set first so the venue
// matches what sizing and stops assume.
func (g *Gateway) OpenPosition(ctx context.Context, req exchange.OpenRequest) (exchange.OrderResult, error) {
	if g.category == "linear" && req.Leverage >= 1 {
		if err := g.setLeverage(ctx, req.Symbol, req.Leverage); err != nil {
			return exchange.OrderResult{}, err
		}
	}

	side := "Buy"
	if req.Side == types.SideShort {
		side = "Sell"
	}

	params := map[string]interface{}{
		"category":    g.category,
		"symbol":      venueSymbol(req.Symbol),
		"side":        side,
		"orderType":   "Market",
		"qty":         formatQty(req.Quantity),
		"orderLinkId": uuid.New().String(),
	}
	if g.category == "spot" {
		params["marketUnit"] = "baseCoin"
	}

	return g.placeOrder(ctx, "OpenPosition", req.Symbol, req.Quantity, params)
}

// ClosePosition submits a reduce-only market order against an open position
func (g *Gateway) ClosePosition(ctx context.Context, req exchange.CloseRequest) (exchange.OrderResult, error) {
	// Closing a long sells, closing a short buys
	side := "Sell"
	if req.Side == types.SideShort {
		side = "Buy"
	}

	params := map[string]interface{}{
		"category":    g.category,
		"symbol":      venueSymbol(req.Symbol),
		"side":        side,
		"orderType":   "Market",
		"qty":         formatQty(req.Quantity),
		"orderLinkId": uuid.New().String(),
	}
	if g.category == "linear" {
		params["reduceOnly"] = true
	}
	if g.category == "spot" {
		params["marketUnit"] = "baseCoin"
	}

	return g.placeOrder(ctx, "ClosePosition", req.Symbol, req.Quantity, params)
}

func (g *Gateway) placeOrder(ctx context.Context, op, symbol string, qty float64, params map[string]interface{}) (exchange.OrderResult, error) {
	result, err := g.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return exchange.OrderResult{}, errors.Wrap(err, errors.CategoryExchange, "bybit", op)
	}

	var order struct {
		OrderID string `json:"orderId"`
	}
	if err := decodeResult(result, &order); err != nil {
		return exchange.OrderResult{}, errors.Wrap(err, errors.CategoryExchange, "bybit", op)
	}

	return exchange.OrderResult{
		OrderID:    order.OrderID,
		Symbol:     symbol,
		Quantity:   qty,
		ExecutedAt: time.Now(),
	}, nil
}

// setLeverage applies the same leverage to both sides of a symbol.
// "Leverage not modified" from the venue is success.
func (g *Gateway) setLeverage(ctx context.Context, symbol string, leverage float64) error {
	result, err := g.httpClient.NewUtaBybitServiceWithParams(leverageParams(g.category, symbol, leverage)).SetPositionLeverage(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryExchange, "bybit", "SetLeverage")
	}

	if resp := result; resp != nil {
		if resp.RetCode != 0 && resp.RetCode != retLeverageNotModified {
			return errors.New(errors.CategoryExchange, "bybit", "SetLeverage",
				fmt.Sprintf("api error %d: %s", resp.RetCode, resp.RetMsg))
		}
	}
	return nil
}

func leverageParams(category, symbol string, leverage float64) map[string]interface{} {
	lev := formatQty(leverage)
	return map[string]interface{}{
		"category":     category,
		"symbol":       venueSymbol(symbol),
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
}

func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

var _ exchange.Gateway = (*Gateway)(nil)
