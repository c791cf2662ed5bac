package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/clock"
	"ladder-trading-bot/internal/ladder"
)

// Action is the single next step the engine picks on one tick.
type Action string

const (
	Hold         Action = "HOLD"
	BuyRung      Action = "BUY_RUNG"
	SellProfit   Action = "SELL_PROFIT"
	SellStopLoss Action = "SELL_STOP_LOSS"
	SellTimeout  Action = "SELL_TIMEOUT"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Action    Action
	RungIndex int // active rung, valid for SellProfit
	Qty       int

	// LimitPrice is the undercut sell price for a profit-take.
	LimitPrice decimal.Decimal

	// Expired marks the session end boundary as passed; the session closes
	// after executing this decision even when no sell is needed.
	Expired bool

	// Inconsistent marks a ladder index that fell outside the ladder bounds
	// and wrapped to the base rung. The loop must reconcile before the next
	// tick.
	Inconsistent bool

	Reason string
}

// Inputs is the full state one evaluation sees. All fields are fetched
// fresh for the tick; Evaluate never mutates any of them.
type Inputs struct {
	Ladder       *ladder.Ladder
	NetQty       int
	LTP          decimal.Decimal
	NextBuyPrice decimal.Decimal
	Now          time.Time
}

// Evaluate picks exactly one action for the tick. Priority encodes risk
// precedence: stop-loss, then profit-take, then accumulation, then hold.
// The session end boundary is checked independently afterwards and
// overrides a hold or a buy; a session past its end never adds exposure.
// All price comparisons are exact: a boundary tick resolves to "not
// triggered".
func Evaluate(strat Strategy, clk clock.SessionClock, in Inputs) Decision {
	d := evaluateRungs(strat, clk, in)

	if d.Action == Hold || d.Action == BuyRung {
		if clk.Expired(in.Now) {
			exp := Decision{Action: Hold, Expired: true, Reason: "session expired"}
			if in.NetQty > 0 && clk.CanLiquidate(in.Now) {
				exp.Action = SellTimeout
				exp.Qty = in.NetQty
			}
			exp.Inconsistent = d.Inconsistent
			return exp
		}
	}
	return d
}

func evaluateRungs(strat Strategy, clk clock.SessionClock, in Inputs) Decision {
	if !in.Ladder.Empty() {
		idx, consistent := in.Ladder.Index(in.NetQty, strat.LotSize)
		rung := in.Ladder.At(idx)

		if in.LTP.LessThan(rung.Sub(strat.StopLossAmount)) {
			return Decision{
				Action:       SellStopLoss,
				RungIndex:    idx,
				Qty:          in.NetQty,
				Inconsistent: !consistent,
				Reason:       "LTP below stop-loss cushion",
			}
		}

		if in.LTP.GreaterThan(rung.Add(strat.TargetDiff)) && in.NetQty > 0 {
			return Decision{
				Action:       SellProfit,
				RungIndex:    idx,
				Qty:          strat.LotSize,
				LimitPrice:   in.LTP.Sub(strat.SellUndercut),
				Inconsistent: !consistent,
				Reason:       "LTP above rung target",
			}
		}

		if clk.CanEnter(in.Now) && in.LTP.LessThan(in.NextBuyPrice) && in.NetQty <= strat.MaxQty() {
			return Decision{
				Action:       BuyRung,
				RungIndex:    idx,
				Qty:          strat.LotSize,
				Inconsistent: !consistent,
				Reason:       "LTP below next entry",
			}
		}

		return Decision{Action: Hold, RungIndex: idx, Inconsistent: !consistent, Reason: "no threshold met"}
	}

	// No rungs held: only the accumulation rule applies.
	if clk.CanEnter(in.Now) && in.LTP.LessThan(in.NextBuyPrice) && in.NetQty <= strat.MaxQty() {
		return Decision{Action: BuyRung, Qty: strat.LotSize, Reason: "LTP below next entry"}
	}
	return Decision{Action: Hold, Reason: "no position, no entry signal"}
}
