// Package mock is a scripted gateway for tests. Each method delegates to
// an optional function field; unset fields succeed with zero values.
package mock

import (
	"context"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/types"
)

type Broker struct {
	LoginFn            func(ctx context.Context) error
	LogoutFn           func(ctx context.Context) error
	QuoteFn            func(ctx context.Context, inst types.Instrument) (types.Quote, error)
	PositionsFn        func(ctx context.Context) ([]types.Position, error)
	OrderBookFn        func(ctx context.Context) ([]types.Order, error)
	PlaceOrderFn       func(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	OrderStatusFn      func(ctx context.Context, orderID string) (types.OrderStatus, error)
	CashLimitsFn       func(ctx context.Context) (types.Limits, error)
	SearchInstrumentFn func(ctx context.Context, exchange, symbol string) (types.Instrument, error)

	PlacedOrders []types.OrderReq
}

var _ interfaces.Broker = (*Broker)(nil)

func (m *Broker) Login(ctx context.Context) error {
	if m.LoginFn != nil {
		return m.LoginFn(ctx)
	}
	return nil
}

func (m *Broker) Logout(ctx context.Context) error {
	if m.LogoutFn != nil {
		return m.LogoutFn(ctx)
	}
	return nil
}

func (m *Broker) Quote(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	if m.QuoteFn != nil {
		return m.QuoteFn(ctx, inst)
	}
	return types.Quote{}, nil
}

func (m *Broker) Positions(ctx context.Context) ([]types.Position, error) {
	if m.PositionsFn != nil {
		return m.PositionsFn(ctx)
	}
	return nil, nil
}

func (m *Broker) OrderBook(ctx context.Context) ([]types.Order, error) {
	if m.OrderBookFn != nil {
		return m.OrderBookFn(ctx)
	}
	return nil, nil
}

func (m *Broker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	m.PlacedOrders = append(m.PlacedOrders, req)
	if m.PlaceOrderFn != nil {
		return m.PlaceOrderFn(ctx, req)
	}
	return types.OrderResp{OrderID: "mock-order"}, nil
}

func (m *Broker) OrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	if m.OrderStatusFn != nil {
		return m.OrderStatusFn(ctx, orderID)
	}
	return types.OrderStatus{State: types.OrderComplete}, nil
}

func (m *Broker) CashLimits(ctx context.Context) (types.Limits, error) {
	if m.CashLimitsFn != nil {
		return m.CashLimitsFn(ctx)
	}
	return types.Limits{}, nil
}

func (m *Broker) SearchInstrument(ctx context.Context, exchange, symbol string) (types.Instrument, error) {
	if m.SearchInstrumentFn != nil {
		return m.SearchInstrumentFn(ctx, exchange, symbol)
	}
	return types.Instrument{Exchange: exchange, TradingSymbol: symbol, Token: "1"}, nil
}
