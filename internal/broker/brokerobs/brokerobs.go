package brokerobs

import (
	"context"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/trace"
	"ladder-trading-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) Login(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "broker.Login")
	defer span.End()

	logger.Info(ctx, "Logging in to broker")
	if err := ob.broker.Login(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Broker login failed", err)
		return err
	}
	logger.Info(ctx, "Broker login successful")
	return nil
}

func (ob *observableBroker) Logout(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "broker.Logout")
	defer span.End()

	if err := ob.broker.Logout(ctx); err != nil {
		logger.ErrorWithErr(ctx, "Broker logout failed", err)
		return err
	}
	logger.Info(ctx, "Broker logout successful")
	return nil
}

func (ob *observableBroker) Quote(ctx context.Context, inst types.Instrument) (types.Quote, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Quote")
	defer span.End()

	logger.Debug(ctx, "Fetching quote", "symbol", inst.TradingSymbol)
	q, err := ob.broker.Quote(ctx, inst)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch quote", err, "symbol", inst.TradingSymbol)
		return types.Quote{}, err
	}
	logger.Debug(ctx, "Quote fetched", "symbol", inst.TradingSymbol, "ltp", q.LTP.String())
	return q, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	positions, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch positions", err)
		return nil, err
	}
	logger.Debug(ctx, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) OrderBook(ctx context.Context) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OrderBook")
	defer span.End()

	orders, err := ob.broker.OrderBook(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch order book", err)
		return nil, err
	}
	logger.Debug(ctx, "Order book fetched", "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.Info(ctx, "Placing order",
		"symbol", req.TradingSymbol,
		"side", string(req.Side),
		"qty", req.Qty,
		"price_type", string(req.PriceType),
		"price", req.Price.String(),
	)
	resp, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to place order", err,
			"symbol", req.TradingSymbol,
			"side", string(req.Side),
			"qty", req.Qty,
		)
		return types.OrderResp{}, err
	}
	logger.Info(ctx, "Order placed",
		"symbol", req.TradingSymbol,
		"order_id", resp.OrderID,
	)
	return resp, nil
}

func (ob *observableBroker) OrderStatus(ctx context.Context, orderID string) (types.OrderStatus, error) {
	ctx, span := trace.StartSpan(ctx, "broker.OrderStatus")
	defer span.End()

	st, err := ob.broker.OrderStatus(ctx, orderID)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch order status", err, "order_id", orderID)
		return types.OrderStatus{}, err
	}
	logger.Debug(ctx, "Order status fetched", "order_id", orderID, "state", string(st.State))
	return st, nil
}

func (ob *observableBroker) CashLimits(ctx context.Context) (types.Limits, error) {
	ctx, span := trace.StartSpan(ctx, "broker.CashLimits")
	defer span.End()

	limits, err := ob.broker.CashLimits(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch cash limits", err)
		return types.Limits{}, err
	}
	logger.Debug(ctx, "Cash limits fetched", "cash", limits.Cash.String())
	return limits, nil
}

func (ob *observableBroker) SearchInstrument(ctx context.Context, exchange, symbol string) (types.Instrument, error) {
	ctx, span := trace.StartSpan(ctx, "broker.SearchInstrument")
	defer span.End()

	inst, err := ob.broker.SearchInstrument(ctx, exchange, symbol)
	if err != nil {
		logger.ErrorWithErr(ctx, "Instrument search failed", err, "exchange", exchange, "symbol", symbol)
		return types.Instrument{}, err
	}
	logger.Debug(ctx, "Instrument resolved",
		"exchange", inst.Exchange,
		"symbol", inst.TradingSymbol,
		"token", inst.Token,
	)
	return inst, nil
}
