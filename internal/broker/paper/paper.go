// Package paper wraps a real gateway for dry runs: market data passes
// through untouched while orders, positions and cash are simulated in
// memory. Session code runs unchanged against it.
package paper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/types"
)

type position struct {
	netQty  int
	buyQty  int
	buyCost decimal.Decimal
	last    decimal.Decimal
}

type Broker struct {
	real interfaces.Broker

	mu          sync.Mutex
	cash        decimal.Decimal
	positions   map[string]*position
	orders      []types.Order
	instruments map[string]types.Instrument
}

var _ interfaces.Broker = (*Broker)(nil)

// Wrap builds a paper broker on top of a real gateway with the given
// simulated cash balance.
func Wrap(real interfaces.Broker, startingCash decimal.Decimal) *Broker {
	return &Broker{
		real:        real,
		cash:        startingCash,
		positions:   make(map[string]*position),
		instruments: make(map[string]types.Instrument),
	}
}

func (b *Broker) Login(ctx context.Context) error  { return b.real.Login(ctx) }
func (b *Broker) Logout(ctx context.Context) error { return b.real.Logout(ctx) }

func (b *Broker) Quote(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	return b.real.Quote(ctx, inst)
}

func (b *Broker) SearchInstrument(ctx context.Context, exchange, symbol string) (types.Instrument, error) {
	return b.real.SearchInstrument(ctx, exchange, symbol)
}

func (b *Broker) Positions(ctx context.Context) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Position, 0, len(b.positions))
	for sym, p := range b.positions {
		pos := types.Position{
			TradingSymbol: sym,
			NetQty:        p.netQty,
			LastPrice:     p.last,
		}
		if p.buyQty > 0 {
			pos.DayBuyAvgPrice = p.buyCost.Div(decimal.NewFromInt(int64(p.buyQty)))
		}
		out = append(out, pos)
	}
	return out, nil
}

// OrderBook returns simulated orders, newest first.
func (b *Broker) OrderBook(ctx context.Context) ([]types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.Order, len(b.orders))
	for i, o := range b.orders {
		out[len(b.orders)-1-i] = o
	}
	return out, nil
}

// PlaceOrder fills immediately against the live quote. Marketable limits
// fill at the last traded price, non-marketable ones at their limit.
func (b *Broker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	inst, err := b.resolve(ctx, req.Exchange, req.TradingSymbol)
	if err != nil {
		return types.OrderResp{}, err
	}
	q, err := b.real.Quote(ctx, inst)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("paper fill: %w", err)
	}

	fill := q.LTP
	if req.PriceType == types.Limit {
		if req.Side == types.Buy && req.Price.LessThan(q.LTP) {
			fill = req.Price
		}
		if req.Side == types.Sell && req.Price.GreaterThan(q.LTP) {
			fill = req.Price
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[req.TradingSymbol]
	if !ok {
		p = &position{}
		b.positions[req.TradingSymbol] = p
	}

	notional := fill.Mul(decimal.NewFromInt(int64(req.Qty)))
	switch req.Side {
	case types.Buy:
		p.netQty += req.Qty
		p.buyQty += req.Qty
		p.buyCost = p.buyCost.Add(notional)
		b.cash = b.cash.Sub(notional)
	case types.Sell:
		if req.Qty > p.netQty {
			return types.OrderResp{}, fmt.Errorf("paper fill: sell %d exceeds held %d", req.Qty, p.netQty)
		}
		p.netQty -= req.Qty
		b.cash = b.cash.Add(notional)
	}
	p.last = q.LTP

	order := types.Order{
		OrderID:       uuid.NewString(),
		TradingSymbol: req.TradingSymbol,
		Side:          req.Side,
		Status:        types.OrderComplete,
		AvgPrice:      fill,
		Qty:           req.Qty,
	}
	b.orders = append(b.orders, order)
	return types.OrderResp{OrderID: order.OrderID}, nil
}

func (b *Broker) OrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.orders {
		if o.OrderID == orderID {
			return types.OrderStatus{State: o.Status, AvgPrice: o.AvgPrice}, nil
		}
	}
	return types.OrderStatus{}, fmt.Errorf("unknown paper order %s", orderID)
}

func (b *Broker) CashLimits(ctx context.Context) (types.Limits, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return types.Limits{Cash: b.cash}, nil
}

func (b *Broker) resolve(ctx context.Context, exchange, symbol string) (types.Instrument, error) {
	b.mu.Lock()
	if inst, ok := b.instruments[symbol]; ok {
		b.mu.Unlock()
		return inst, nil
	}
	b.mu.Unlock()

	inst, err := b.real.SearchInstrument(ctx, exchange, symbol)
	if err != nil {
		return types.Instrument{}, err
	}
	b.mu.Lock()
	b.instruments[symbol] = inst
	b.mu.Unlock()
	return inst, nil
}
