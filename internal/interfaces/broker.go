package interfaces

import (
	"context"

	"ladder-trading-bot/internal/types"
)

// Broker is the gateway capability set the trading core consumes. Every call
// is a blocking suspension point; implementations handle their own transport
// retries and return either a definitive result or a terminal error.
type Broker interface {
	// Login establishes the broker session.
	Login(ctx context.Context) error

	// Logout releases the broker session.
	Logout(ctx context.Context) error

	// Quote returns the current market snapshot for an instrument.
	Quote(ctx context.Context, inst types.Instrument) (types.Quote, error)

	// Positions returns the net position book for the day.
	Positions(ctx context.Context) ([]types.Position, error)

	// OrderBook returns today's orders, newest first.
	OrderBook(ctx context.Context) ([]types.Order, error)

	// PlaceOrder submits an order. A response without an order id is a
	// placement failure.
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)

	// OrderStatus returns the latest status of a submitted order.
	OrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error)

	// CashLimits returns the available cash snapshot.
	CashLimits(ctx context.Context) (types.Limits, error)

	// SearchInstrument resolves a trading symbol to a full instrument.
	SearchInstrument(ctx context.Context, exchange, symbol string) (types.Instrument, error)
}
