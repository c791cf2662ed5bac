// Package ladder tracks the per-lot buy fill prices of an open laddered
// position. The ladder is exclusively owned by its session's loop; it is
// mutated only after a completed order and reconciled against the
// gateway-reported quantity before being trusted.
package ladder

import (
	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/types"
)

// Ladder is the ordered record of rung fill prices. Ordering is insertion
// order; in practice each rung is bought lower than the last, but the ladder
// must tolerate out-of-order fills from reconciliation.
type Ladder struct {
	rungs []decimal.Decimal
}

func New() *Ladder {
	return &Ladder{}
}

// Push appends a rung after a buy completes.
func (l *Ladder) Push(fillPrice decimal.Decimal) {
	l.rungs = append(l.rungs, fillPrice)
}

// PopAt removes the rung at index after a profit-take sell completes. An
// out-of-bounds index removes nothing and reports the inconsistency to the
// caller.
func (l *Ladder) PopAt(index int) bool {
	if index < 0 || index >= len(l.rungs) {
		return false
	}
	l.rungs = append(l.rungs[:index], l.rungs[index+1:]...)
	return true
}

// Clear empties the ladder after a stop-loss or timeout liquidation.
func (l *Ladder) Clear() {
	l.rungs = l.rungs[:0]
}

func (l *Ladder) Size() int {
	return len(l.rungs)
}

func (l *Ladder) Empty() bool {
	return len(l.rungs) == 0
}

// At returns the fill price of rung i. Callers index via Index.
func (l *Ladder) At(i int) decimal.Decimal {
	return l.rungs[i]
}

// Rungs returns a copy of the fill prices, oldest first.
func (l *Ladder) Rungs() []decimal.Decimal {
	out := make([]decimal.Decimal, len(l.rungs))
	copy(out, l.rungs)
	return out
}

// Index maps the gateway-reported net quantity onto the active rung:
// floor(netQty/lotSize)-1 floored at 0. An index past the ladder bounds
// wraps to the base rung and reports consistent=false, signalling missed
// fills that need a reconciliation pass.
func (l *Ladder) Index(netQty, lotSize int) (idx int, consistent bool) {
	if len(l.rungs) == 0 || lotSize <= 0 {
		return 0, false
	}
	idx = netQty/lotSize - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(l.rungs) {
		return 0, false
	}
	return idx, true
}

// ReconcileFromPosition rebuilds the ladder from the reported day-average
// buy price, replicated once per held lot.
func (l *Ladder) ReconcileFromPosition(netQty, lotSize int, avgPrice decimal.Decimal) {
	l.rungs = l.rungs[:0]
	if lotSize <= 0 {
		return
	}
	for i := 0; i < netQty/lotSize; i++ {
		l.rungs = append(l.rungs, avgPrice)
	}
}

// RebuildFromOrders replays today's completed orders for one symbol in
// chronological order (the order book arrives newest first): each completed
// buy pushes its fill price, each completed sell pops the most recent
// entry. This stack unwind runs at session start only;
// steady-state removal is by rung index.
func (l *Ladder) RebuildFromOrders(orders []types.Order, symbol string) {
	l.rungs = l.rungs[:0]
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if o.TradingSymbol != symbol || o.Status != types.OrderComplete {
			continue
		}
		switch o.Side {
		case types.Buy:
			l.rungs = append(l.rungs, o.AvgPrice)
		case types.Sell:
			if len(l.rungs) > 0 {
				l.rungs = l.rungs[:len(l.rungs)-1]
			}
		}
	}
}

// MatchesQty reports whether the ladder agrees with the gateway-reported
// quantity. A disagreeing ladder must be rebuilt, not extended.
func (l *Ladder) MatchesQty(netQty, lotSize int) bool {
	if lotSize <= 0 {
		return false
	}
	return len(l.rungs) == netQty/lotSize
}
