package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/clock"
	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/journal"
	"ladder-trading-bot/internal/ladder"
	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/metrics"
	"ladder-trading-bot/internal/store"
	"ladder-trading-bot/internal/tradelog"
	"ladder-trading-bot/internal/types"
)

// State is the execution-loop phase of a session.
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateEntering     State = "ENTERING"
	StateMonitoring   State = "MONITORING"
	StateExiting      State = "EXITING"
	StateClosed       State = "CLOSED"
)

const positionWaitInterval = 200 * time.Millisecond

// Session drives one laddered averaging strategy run for one instrument.
// It is a strictly sequential loop: no two gateway calls are ever in flight
// concurrently, and the ladder is owned by this session for its whole life.
type Session struct {
	id    string
	strat Strategy
	brk   interfaces.Broker
	clk   clock.SessionClock
	lad   *ladder.Ladder
	jnl   journal.Journal

	pollInterval      time.Duration
	orderPollInterval time.Duration
	orderTimeout      time.Duration

	state          State
	nextBuy        decimal.Decimal
	needsReconcile bool
	reuseGateway   bool

	startingCash decimal.Decimal
	buys, sells  int
	exitReason   string
}

// NewSession builds a session for the configured instrument. The session
// clock is fixed at construction time.
func NewSession(cfg *store.Config, brk interfaces.Broker, jnl journal.Journal) (*Session, error) {
	now := time.Now().In(clock.IST)
	clk, err := clock.New(now, cfg.Session.MarketClosingTime, time.Duration(cfg.Session.DurationMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:                uuid.NewString(),
		strat:             StrategyFromConfig(cfg),
		brk:               brk,
		clk:               clk,
		lad:               ladder.New(),
		jnl:               jnl,
		pollInterval:      time.Duration(cfg.Session.PollIntervalMs) * time.Millisecond,
		orderPollInterval: time.Duration(cfg.Session.OrderPollIntervalMs) * time.Millisecond,
		orderTimeout:      time.Duration(cfg.Session.OrderStatusTimeoutS) * time.Second,
		state:             StateInitializing,
	}, nil
}

// NewSessionAt is NewSession with an explicit clock, used by tests and by
// the screener when it re-anchors a session mid-day.
func NewSessionAt(cfg *store.Config, brk interfaces.Broker, jnl journal.Journal, clk clock.SessionClock) (*Session, error) {
	s, err := NewSession(cfg, brk, jnl)
	if err != nil {
		return nil, err
	}
	s.clk = clk
	return s, nil
}

// ID returns the session identity used in logs and the journal.
func (s *Session) ID() string { return s.id }

// ReuseGateway marks the broker session as shared: Run will neither log
// in nor log out. Used when several sessions fan out over one gateway.
func (s *Session) ReuseGateway() { s.reuseGateway = true }

// Run executes the session to completion: login, entry, the monitoring
// loop, liquidation and logout. Fatal errors abort without flattening the
// position; it is left exactly as last confirmed by the gateway.
func (s *Session) Run(ctx context.Context) (*types.SessionResult, error) {
	startedAt := time.Now().In(clock.IST)
	res := &types.SessionResult{
		SessionID:     s.id,
		TradingSymbol: s.strat.Instrument.TradingSymbol,
		StartedAt:     startedAt,
	}
	finish := func(err error) (*types.SessionResult, error) {
		s.setState(ctx, StateClosed)
		res.EndedAt = time.Now().In(clock.IST)
		res.ExitReason = s.exitReason
		res.Buys = s.buys
		res.Sells = s.sells
		res.StartingCash = s.startingCash
		if limits, lerr := s.brk.CashLimits(ctx); lerr == nil {
			res.EndingCash = limits.Cash
			res.Profit = limits.Cash.Sub(s.startingCash)
			metrics.SetSessionProfit(res.Profit.InexactFloat64())
		} else {
			logger.Warn(ctx, "Ending cash unavailable", "session_id", s.id, "error", lerr)
		}
		if s.jnl != nil {
			_ = s.jnl.RecordSession(journal.SessionRecord{
				SessionID:    s.id,
				Symbol:       s.strat.Instrument.TradingSymbol,
				ExitReason:   s.exitReason,
				StartingCash: s.startingCash.InexactFloat64(),
				EndingCash:   res.EndingCash.InexactFloat64(),
				Profit:       res.Profit.InexactFloat64(),
				StartedAt:    startedAt,
				EndedAt:      res.EndedAt,
			})
		}
		if !s.reuseGateway {
			if lerr := s.brk.Logout(ctx); lerr != nil {
				logger.Warn(ctx, "Logout failed", "session_id", s.id, "error", lerr)
			}
		}
		logger.Info(ctx, "Session closed",
			"session_id", s.id,
			"symbol", s.strat.Instrument.TradingSymbol,
			"exit_reason", s.exitReason,
			"profit", res.Profit.String(),
			"buys", s.buys,
			"sells", s.sells,
		)
		return res, err
	}

	if err := s.initialize(ctx); err != nil {
		s.exitReason = "INIT_FAILED"
		return finish(err)
	}

	if err := s.enter(ctx); err != nil {
		s.exitReason = "ENTRY_FAILED"
		return finish(err)
	}

	err := s.monitor(ctx)
	return finish(err)
}

func (s *Session) setState(ctx context.Context, st State) {
	if s.state == st {
		return
	}
	logger.Info(ctx, "Session state transition",
		"session_id", s.id,
		"symbol", s.strat.Instrument.TradingSymbol,
		"from", string(s.state),
		"to", string(st),
	)
	s.state = st
}

func (s *Session) initialize(ctx context.Context) error {
	s.setState(ctx, StateInitializing)

	if !s.reuseGateway {
		if err := s.brk.Login(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrAuthFailure, err)
		}
	}

	limits, err := s.brk.CashLimits(ctx)
	if err != nil {
		return fmt.Errorf("fetch starting cash: %w", err)
	}
	s.startingCash = limits.Cash

	logger.Info(ctx, "Session initialized",
		"session_id", s.id,
		"symbol", s.strat.Instrument.TradingSymbol,
		"starting_cash", s.startingCash.String(),
		"stop_loss_amount", s.strat.StopLossAmount.String(),
		"hard_end", s.clk.HardEnd.Format(time.RFC3339),
		"closing", s.clk.Closing.Format(time.RFC3339),
	)
	return nil
}

// enter opens the initial position, or reconciles the ladder against a
// pre-existing one.
func (s *Session) enter(ctx context.Context) error {
	s.setState(ctx, StateEntering)

	pos, err := s.position(ctx)
	if err != nil {
		return err
	}

	now := time.Now().In(clock.IST)
	if pos.NetQty < 1 && s.clk.CanEnter(now) {
		st, err := s.placeAndAwait(ctx, types.OrderReq{
			Side:          types.Buy,
			Exchange:      s.strat.Instrument.Exchange,
			TradingSymbol: s.strat.Instrument.TradingSymbol,
			Qty:           s.strat.LotSize,
			PriceType:     s.strat.EntryPriceType,
			Price:         s.strat.InitialBuyPrice,
			Remarks:       "ladder initial buy",
		})
		if err != nil {
			return err
		}
		s.recordBuy(ctx, st.AvgPrice, s.strat.LotSize)
		return nil
	}

	// A position already exists (or entry is closed for the day): rebuild
	// the ladder from the most recent completed buy/sell pairs.
	orders, err := s.brk.OrderBook(ctx)
	if err != nil {
		return fmt.Errorf("fetch order book: %w", err)
	}
	s.lad.RebuildFromOrders(orders, s.strat.Instrument.TradingSymbol)
	if pos.NetQty > 0 {
		s.nextBuy = pos.DayBuyAvgPrice.Sub(s.strat.EntryDiff)
	}

	if s.lad.Empty() {
		if err := s.waitForPosition(ctx); err != nil {
			return err
		}
	}
	return nil
}

// waitForPosition polls the position book until the gateway reports held
// quantity, then replicates the day-average buy price across the ladder.
// Bounded by the session clock and by cancellation.
func (s *Session) waitForPosition(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.clk.Expired(time.Now().In(clock.IST)) {
			s.exitReason = "TIMEOUT"
			return fmt.Errorf("session expired before a position was established")
		}

		pos, err := s.position(ctx)
		if err != nil {
			return err
		}
		if pos.NetQty > 0 {
			s.lad.ReconcileFromPosition(pos.NetQty, s.strat.LotSize, pos.DayBuyAvgPrice)
			s.nextBuy = pos.DayBuyAvgPrice.Sub(s.strat.EntryDiff)
			logger.Info(ctx, "Position established",
				"session_id", s.id,
				"net_qty", pos.NetQty,
				"avg_price", pos.DayBuyAvgPrice.String(),
				"next_buy_price", s.nextBuy.String(),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(positionWaitInterval):
		}
	}
}

// monitor is the steady-state tick loop. Each iteration fetches fresh
// position and quote, evaluates the decision function and executes the
// returned action.
func (s *Session) monitor(ctx context.Context) error {
	s.setState(ctx, StateMonitoring)

	for {
		if err := ctx.Err(); err != nil {
			s.exitReason = "CANCELLED"
			return err
		}

		pos, err := s.position(ctx)
		if err != nil {
			return err
		}

		if s.needsReconcile || !s.lad.MatchesQty(pos.NetQty, s.strat.LotSize) {
			if err := s.reconcile(ctx, pos); err != nil {
				return err
			}
		}

		quote, err := s.brk.Quote(ctx, s.strat.Instrument)
		if err != nil {
			// Transient: degrade to a no-op tick.
			logger.Warn(ctx, "Quote unavailable, holding",
				"session_id", s.id,
				"symbol", s.strat.Instrument.TradingSymbol,
				"error", err,
			)
			if err := s.sleep(ctx); err != nil {
				s.exitReason = "CANCELLED"
				return err
			}
			continue
		}

		now := time.Now().In(clock.IST)
		d := Evaluate(s.strat, s.clk, Inputs{
			Ladder:       s.lad,
			NetQty:       pos.NetQty,
			LTP:          quote.LTP,
			NextBuyPrice: s.nextBuy,
			Now:          now,
		})
		s.emitDecision(ctx, d, quote.LTP)

		if d.Inconsistent {
			logger.Risk(ctx, s.strat.Instrument.TradingSymbol, "LADDER_INDEX_INCONSISTENT",
				"session_id", s.id,
				"net_qty", pos.NetQty,
				"ladder_size", s.lad.Size(),
			)
			s.needsReconcile = true
		}

		done, err := s.execute(ctx, d, quote.LTP)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if err := s.sleep(ctx); err != nil {
			s.exitReason = "CANCELLED"
			return err
		}
	}
}

// execute applies one decision against the gateway. done reports that the
// session reached a terminal condition.
func (s *Session) execute(ctx context.Context, d Decision, ltp decimal.Decimal) (done bool, err error) {
	switch d.Action {
	case Hold:
		if d.Expired {
			if s.exitReason == "" {
				s.exitReason = "TIMEOUT"
			}
			return true, nil
		}
		return false, nil

	case BuyRung:
		st, err := s.placeAndAwait(ctx, types.OrderReq{
			Side:          types.Buy,
			Exchange:      s.strat.Instrument.Exchange,
			TradingSymbol: s.strat.Instrument.TradingSymbol,
			Qty:           d.Qty,
			PriceType:     s.strat.EntryPriceType,
			Price:         s.strat.InitialBuyPrice,
			Remarks:       "ladder rung buy",
		})
		if err != nil {
			return false, err
		}
		s.recordBuy(ctx, st.AvgPrice, d.Qty)
		return false, nil

	case SellProfit:
		req := types.OrderReq{
			Side:          types.Sell,
			Exchange:      s.strat.Instrument.Exchange,
			TradingSymbol: s.strat.Instrument.TradingSymbol,
			Qty:           d.Qty,
			PriceType:     s.strat.ProfitPriceType,
			Remarks:       "ladder profit take",
		}
		if s.strat.ProfitPriceType == types.Limit {
			req.Price = d.LimitPrice
		}
		st, err := s.placeAndAwait(ctx, req)
		if err != nil {
			return false, err
		}
		if !s.lad.PopAt(d.RungIndex) {
			logger.Risk(ctx, s.strat.Instrument.TradingSymbol, "LADDER_POP_OUT_OF_RANGE",
				"session_id", s.id,
				"rung_index", d.RungIndex,
				"ladder_size", s.lad.Size(),
			)
			s.needsReconcile = true
		}
		s.recordSell(ctx, st.AvgPrice, d.Qty, "PROFIT_TAKE")
		s.nextBuy = st.AvgPrice.Sub(s.strat.EntryDiff)
		return false, nil

	case SellStopLoss:
		s.setState(ctx, StateExiting)
		st, err := s.placeAndAwait(ctx, types.OrderReq{
			Side:          types.Sell,
			Exchange:      s.strat.Instrument.Exchange,
			TradingSymbol: s.strat.Instrument.TradingSymbol,
			Qty:           d.Qty,
			PriceType:     types.Market,
			Remarks:       "ladder stop loss",
		})
		if err != nil {
			return false, err
		}
		s.recordSell(ctx, st.AvgPrice, d.Qty, "STOP_LOSS")
		s.lad.Clear()
		s.nextBuy = ltp.Sub(s.strat.EntryDiff)
		s.exitReason = "STOP_LOSS"
		return true, nil

	case SellTimeout:
		s.setState(ctx, StateExiting)
		st, err := s.placeAndAwait(ctx, types.OrderReq{
			Side:          types.Sell,
			Exchange:      s.strat.Instrument.Exchange,
			TradingSymbol: s.strat.Instrument.TradingSymbol,
			Qty:           d.Qty,
			PriceType:     types.Market,
			Remarks:       "ladder session end",
		})
		if err != nil {
			return false, err
		}
		s.recordSell(ctx, st.AvgPrice, d.Qty, "TIMEOUT")
		s.lad.Clear()
		s.exitReason = "TIMEOUT"
		return true, nil
	}
	return false, nil
}

// reconcile rebuilds the ladder from the order book, falling back to the
// reported day-average price when the order book yields nothing.
func (s *Session) reconcile(ctx context.Context, pos types.Position) error {
	orders, err := s.brk.OrderBook(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: fetch order book: %w", err)
	}
	s.lad.RebuildFromOrders(orders, s.strat.Instrument.TradingSymbol)
	if !s.lad.MatchesQty(pos.NetQty, s.strat.LotSize) {
		s.lad.ReconcileFromPosition(pos.NetQty, s.strat.LotSize, pos.DayBuyAvgPrice)
	}
	s.needsReconcile = false
	logger.Info(ctx, "Ladder reconciled",
		"session_id", s.id,
		"symbol", s.strat.Instrument.TradingSymbol,
		"net_qty", pos.NetQty,
		"ladder_size", s.lad.Size(),
	)
	return nil
}

// placeAndAwait submits one order and blocks until the gateway reports a
// terminal status. A missing order id, a rejection, a polling timeout and
// cancellation are all fatal for the session.
func (s *Session) placeAndAwait(ctx context.Context, req types.OrderReq) (types.OrderStatus, error) {
	resp, err := s.brk.PlaceOrder(ctx, req)
	if err != nil {
		return types.OrderStatus{}, fmt.Errorf("place %s order: %w", req.Side, err)
	}
	if resp.OrderID == "" {
		return types.OrderStatus{}, ErrPlacementFailed
	}

	st, err := s.awaitTerminal(ctx, resp.OrderID)
	if err != nil {
		return types.OrderStatus{}, err
	}
	metrics.ObserveOrder(string(req.Side), string(st.State))
	if st.State == types.OrderRejected {
		return types.OrderStatus{}, fmt.Errorf("%w: order %s: %s", ErrOrderRejected, resp.OrderID, st.Reason)
	}
	logger.Trade(ctx, req.TradingSymbol, string(req.Side), req.Qty, st.AvgPrice.String(), resp.OrderID,
		"session_id", s.id,
		"remarks", req.Remarks,
	)
	if s.jnl != nil {
		_ = s.jnl.RecordTrade(journal.TradeRecord{
			SessionID: s.id,
			Symbol:    req.TradingSymbol,
			Side:      string(req.Side),
			Qty:       req.Qty,
			Price:     st.AvgPrice.InexactFloat64(),
			OrderID:   resp.OrderID,
			Reason:    req.Remarks,
			Time:      time.Now().In(clock.IST),
		})
	}
	_ = tradelog.Append(tradelog.Entry{
		SessionID: s.id,
		Symbol:    req.TradingSymbol,
		Side:      string(req.Side),
		Qty:       req.Qty,
		Price:     st.AvgPrice.InexactFloat64(),
		OrderID:   resp.OrderID,
		Reason:    req.Remarks,
	})
	return st, nil
}

// awaitTerminal polls order status until it leaves OPEN. The wait is
// bounded and honors cancellation at every poll step.
func (s *Session) awaitTerminal(ctx context.Context, orderID string) (types.OrderStatus, error) {
	deadline := time.Now().Add(s.orderTimeout)
	for {
		st, err := s.brk.OrderStatus(ctx, orderID)
		if err != nil {
			return types.OrderStatus{}, fmt.Errorf("order %s status: %w", orderID, err)
		}
		if st.State.Terminal() {
			return st, nil
		}
		if time.Now().After(deadline) {
			return types.OrderStatus{}, fmt.Errorf("%w: order %s still %s after %s",
				ErrOrderStatusTimeout, orderID, st.State, s.orderTimeout)
		}
		select {
		case <-ctx.Done():
			return types.OrderStatus{}, ctx.Err()
		case <-time.After(s.orderPollInterval):
		}
	}
}

func (s *Session) position(ctx context.Context) (types.Position, error) {
	positions, err := s.brk.Positions(ctx)
	if err != nil {
		return types.Position{}, fmt.Errorf("fetch positions: %w", err)
	}
	for _, p := range positions {
		if p.TradingSymbol == s.strat.Instrument.TradingSymbol {
			return p, nil
		}
	}
	return types.Position{TradingSymbol: s.strat.Instrument.TradingSymbol}, nil
}

func (s *Session) recordBuy(ctx context.Context, fill decimal.Decimal, qty int) {
	s.lad.Push(fill)
	s.nextBuy = fill.Sub(s.strat.EntryDiff)
	s.buys++
	metrics.SetOpenRungs(s.lad.Size())
	logger.Info(ctx, "Rung bought",
		"session_id", s.id,
		"symbol", s.strat.Instrument.TradingSymbol,
		"fill_price", fill.String(),
		"qty", qty,
		"ladder_size", s.lad.Size(),
		"next_buy_price", s.nextBuy.String(),
	)
}

func (s *Session) recordSell(ctx context.Context, fill decimal.Decimal, qty int, reason string) {
	s.sells++
	metrics.SetOpenRungs(s.lad.Size())
	logger.Info(ctx, "Rungs sold",
		"session_id", s.id,
		"symbol", s.strat.Instrument.TradingSymbol,
		"fill_price", fill.String(),
		"qty", qty,
		"reason", reason,
		"ladder_size", s.lad.Size(),
	)
}

func (s *Session) emitDecision(ctx context.Context, d Decision, ltp decimal.Decimal) {
	logger.Decision(ctx, s.strat.Instrument.TradingSymbol, string(d.Action),
		"session_id", s.id,
		"ltp", ltp.String(),
		"rung_index", d.RungIndex,
		"qty", d.Qty,
		"next_buy_price", s.nextBuy.String(),
		"ladder_size", s.lad.Size(),
		"reason", d.Reason,
	)
	metrics.ObserveDecision(string(d.Action))
	_ = tradelog.AppendDecision(tradelog.DecisionEntry{
		SessionID:    s.id,
		Symbol:       s.strat.Instrument.TradingSymbol,
		Action:       string(d.Action),
		LTP:          ltp.InexactFloat64(),
		RungIndex:    d.RungIndex,
		NextBuyPrice: s.nextBuy.InexactFloat64(),
		LadderSize:   s.lad.Size(),
		Reason:       d.Reason,
	})
}

func (s *Session) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.pollInterval):
		return nil
	}
}
