package types

import "github.com/shopspring/decimal"

// Side is the transaction side of an order.
type Side string

const (
	Buy  Side = "B"
	Sell Side = "S"
)

// PriceType selects how an order is priced at the exchange.
type PriceType string

const (
	Limit  PriceType = "LMT"
	Market PriceType = "MKT"
)

// OrderState is the terminal-or-pending status reported by the gateway.
type OrderState string

const (
	OrderOpen     OrderState = "OPEN"
	OrderComplete OrderState = "COMPLETE"
	OrderRejected OrderState = "REJECTED"
)

// Terminal reports whether the state will no longer change.
func (s OrderState) Terminal() bool {
	return s == OrderComplete || s == OrderRejected
}

// Instrument identifies one tradable scrip on an exchange.
type Instrument struct {
	Exchange      string
	TradingSymbol string
	Token         string
}

// Quote is a single market snapshot for an instrument.
type Quote struct {
	LTP            decimal.Decimal
	LowerCircuit   decimal.Decimal
	UpperCircuit   decimal.Decimal
	BestBidSellQty int64
}

// Position is a gateway-reported net position. It is fetched fresh every
// loop iteration and never cached across decisions.
type Position struct {
	TradingSymbol  string
	NetQty         int
	DayBuyAvgPrice decimal.Decimal
	LastPrice      decimal.Decimal
}

// Order is one entry of the gateway order book.
type Order struct {
	OrderID       string
	TradingSymbol string
	Side          Side
	Status        OrderState
	AvgPrice      decimal.Decimal
	Qty           int
}

type OrderReq struct {
	Side          Side
	Exchange      string
	TradingSymbol string
	Qty           int
	PriceType     PriceType
	Price         decimal.Decimal
	Remarks       string
}

type OrderResp struct {
	OrderID string `json:"order_id"`
}

// OrderStatus is the resolved status of one submitted order.
type OrderStatus struct {
	State    OrderState
	AvgPrice decimal.Decimal
	Reason   string
}

// Limits is the cash/margin snapshot reported by the gateway.
type Limits struct {
	Cash decimal.Decimal
}
