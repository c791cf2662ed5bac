// Package zerodha adapts the Kite Connect API to the broker gateway. The
// access token must be provisioned out of band; Kite has no headless login.
package zerodha

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/types"
)

type Params struct {
	APIKey      string
	AccessToken string
}

type Zerodha struct {
	p  Params
	kc *kiteconnect.Client
}

var _ interfaces.Broker = (*Zerodha)(nil)

func New(p Params) *Zerodha {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return &Zerodha{p: p, kc: kc}
}

// Login verifies the provisioned token by fetching the user profile.
func (z *Zerodha) Login(ctx context.Context) error {
	if _, err := z.kc.GetUserProfile(); err != nil {
		return fmt.Errorf("verify access token: %w", err)
	}
	return nil
}

func (z *Zerodha) Logout(ctx context.Context) error {
	if _, err := z.kc.InvalidateAccessToken(); err != nil {
		return fmt.Errorf("invalidate access token: %w", err)
	}
	return nil
}

func (z *Zerodha) Quote(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	key := inst.Exchange + ":" + inst.TradingSymbol
	quotes, err := z.kc.GetQuote(key)
	if err != nil {
		return types.Quote{}, err
	}
	kq, ok := quotes[key]
	if !ok {
		return types.Quote{}, fmt.Errorf("no quote for %s", key)
	}

	q := types.Quote{
		LTP:          decimal.NewFromFloat(kq.LastPrice),
		LowerCircuit: decimal.NewFromFloat(kq.LowerCircuitLimit),
		UpperCircuit: decimal.NewFromFloat(kq.UpperCircuitLimit),
	}
	if len(kq.Depth.Sell) > 0 {
		q.BestBidSellQty = int64(kq.Depth.Sell[0].Quantity)
	}
	return q, nil
}

func (z *Zerodha) Positions(ctx context.Context) ([]types.Position, error) {
	positions, err := z.kc.GetPositions()
	if err != nil {
		return nil, err
	}

	out := make([]types.Position, 0, len(positions.Day))
	for _, p := range positions.Day {
		out = append(out, types.Position{
			TradingSymbol:  p.Tradingsymbol,
			NetQty:         p.Quantity,
			DayBuyAvgPrice: decimal.NewFromFloat(p.DayBuyPrice),
			LastPrice:      decimal.NewFromFloat(p.LastPrice),
		})
	}
	return out, nil
}

// OrderBook returns the day's orders newest first. Kite sends them in
// placement order, so the list is reversed here.
func (z *Zerodha) OrderBook(ctx context.Context) ([]types.Order, error) {
	orders, err := z.kc.GetOrders()
	if err != nil {
		return nil, err
	}

	out := make([]types.Order, 0, len(orders))
	for i := len(orders) - 1; i >= 0; i-- {
		out = append(out, mapOrder(orders[i]))
	}
	return out, nil
}

func (z *Zerodha) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	params := kiteconnect.OrderParams{
		Exchange:        req.Exchange,
		Tradingsymbol:   req.TradingSymbol,
		Product:         kiteconnect.ProductMIS,
		Validity:        "DAY",
		Quantity:        req.Qty,
		TransactionType: mapSide(req.Side),
		OrderType:       mapPriceType(req.PriceType),
		Tag:             req.Remarks,
	}
	if req.PriceType == types.Limit {
		params.Price, _ = req.Price.Float64()
	}

	resp, err := z.kc.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return types.OrderResp{}, err
	}
	return types.OrderResp{OrderID: resp.OrderID}, nil
}

func (z *Zerodha) OrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	hist, err := z.kc.GetOrderHistory(orderID)
	if err != nil {
		return types.OrderStatus{}, err
	}
	if len(hist) == 0 {
		return types.OrderStatus{}, fmt.Errorf("no history for order %s", orderID)
	}

	latest := hist[len(hist)-1]
	return types.OrderStatus{
		State:    mapOrderState(latest.Status),
		AvgPrice: decimal.NewFromFloat(latest.AveragePrice),
		Reason:   latest.StatusMessage,
	}, nil
}

func (z *Zerodha) CashLimits(ctx context.Context) (types.Limits, error) {
	margins, err := z.kc.GetUserMargins()
	if err != nil {
		return types.Limits{}, err
	}
	return types.Limits{Cash: decimal.NewFromFloat(margins.Equity.Available.Cash)}, nil
}

// SearchInstrument scans the exchange instrument dump for the symbol.
func (z *Zerodha) SearchInstrument(ctx context.Context, exchange, symbol string) (types.Instrument, error) {
	instruments, err := z.kc.GetInstrumentsByExchange(exchange)
	if err != nil {
		return types.Instrument{}, err
	}
	for _, in := range instruments {
		if in.Tradingsymbol == symbol {
			return types.Instrument{
				Exchange:      exchange,
				TradingSymbol: in.Tradingsymbol,
				Token:         strconv.Itoa(in.InstrumentToken),
			}, nil
		}
	}
	return types.Instrument{}, fmt.Errorf("no instrument %s on %s", symbol, exchange)
}

func mapOrder(o kiteconnect.Order) types.Order {
	side := types.Buy
	if o.TransactionType == kiteconnect.TransactionTypeSell {
		side = types.Sell
	}
	return types.Order{
		OrderID:       o.OrderID,
		TradingSymbol: o.TradingSymbol,
		Side:          side,
		Status:        mapOrderState(o.Status),
		AvgPrice:      decimal.NewFromFloat(o.AveragePrice),
		Qty:           int(o.Quantity),
	}
}

func mapSide(s types.Side) string {
	if s == types.Sell {
		return kiteconnect.TransactionTypeSell
	}
	return kiteconnect.TransactionTypeBuy
}

func mapPriceType(pt types.PriceType) string {
	if pt == types.Market {
		return kiteconnect.OrderTypeMarket
	}
	return kiteconnect.OrderTypeLimit
}

func mapOrderState(s string) types.OrderState {
	switch strings.ToUpper(s) {
	case "COMPLETE":
		return types.OrderComplete
	case "REJECTED", "CANCELLED":
		return types.OrderRejected
	default:
		return types.OrderOpen
	}
}
