package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-trading-bot/internal/broker/mock"
	"ladder-trading-bot/internal/clock"
	"ladder-trading-bot/internal/store"
	"ladder-trading-bot/internal/types"
)

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Mode = "DRY_RUN"
	cfg.Broker = "SHOONYA"
	cfg.Exchange = "NSE"
	cfg.Instrument.Symbol = "SUZLON-EQ"
	cfg.Instrument.Token = "12018"
	cfg.Entry.InitialBuyPrice = 100.00
	cfg.Entry.PriceType = "LMT"
	cfg.Ladder.EntryDiffPrice = 2.0
	cfg.Ladder.TargetPriceDiff = 1.5
	cfg.Ladder.LotSize = 1
	cfg.Ladder.MaxOpenPosition = 3
	cfg.ProfitTake.PriceType = "LMT"
	cfg.ProfitTake.Undercut = 0.05
	cfg.Session.DurationMinutes = 120
	cfg.Session.MarketClosingTime = "15:30:00"
	cfg.Session.PollIntervalMs = 1
	cfg.Session.OrderPollIntervalMs = 1
	cfg.Session.OrderStatusTimeoutS = 5
	return cfg
}

// openClock anchors a session clock around the wall clock with every
// window still open.
func openClock() clock.SessionClock {
	now := time.Now().In(clock.IST)
	return clock.SessionClock{
		Start:          now,
		HardEnd:        now.Add(2 * time.Hour),
		Closing:        now.Add(3 * time.Hour),
		ClosingMinus30: now.Add(150 * time.Minute),
		ClosingMinus1:  now.Add(179 * time.Minute),
	}
}

// entryClosedClock keeps the session alive but past the entry cutoff.
func entryClosedClock() clock.SessionClock {
	now := time.Now().In(clock.IST)
	return clock.SessionClock{
		Start:          now.Add(-10 * time.Minute),
		HardEnd:        now.Add(2 * time.Hour),
		Closing:        now.Add(61 * time.Minute),
		ClosingMinus30: now.Add(-time.Minute),
		ClosingMinus1:  now.Add(time.Hour),
	}
}

func newTestSession(t *testing.T, brk *mock.Broker, clk clock.SessionClock) *Session {
	t.Helper()
	t.Setenv("LADDER_LOG_DIR", t.TempDir())

	s, err := NewSessionAt(testConfig(), brk, nil, clk)
	require.NoError(t, err)
	return s
}

func TestSessionStopLossRoundTrip(t *testing.T) {
	cash := decimal.NewFromInt(1000)
	netQty := 0

	brk := &mock.Broker{}
	brk.CashLimitsFn = func(ctx context.Context) (types.Limits, error) {
		return types.Limits{Cash: cash}, nil
	}
	brk.PositionsFn = func(ctx context.Context) ([]types.Position, error) {
		return []types.Position{{
			TradingSymbol:  "SUZLON-EQ",
			NetQty:         netQty,
			DayBuyAvgPrice: decimal.NewFromInt(100),
		}}, nil
	}
	brk.QuoteFn = func(ctx context.Context, inst types.Instrument) (types.Quote, error) {
		return types.Quote{LTP: decimal.RequireFromString("91.99")}, nil
	}
	brk.PlaceOrderFn = func(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
		return types.OrderResp{OrderID: "ord-" + string(req.Side)}, nil
	}
	brk.OrderStatusFn = func(ctx context.Context, orderID string) (types.OrderStatus, error) {
		if orderID == "ord-B" {
			netQty = 1
			cash = cash.Sub(decimal.NewFromInt(100))
			return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.NewFromInt(100)}, nil
		}
		netQty = 0
		cash = cash.Add(decimal.NewFromInt(92))
		return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.NewFromInt(92)}, nil
	}

	s := newTestSession(t, brk, openClock())
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "STOP_LOSS", res.ExitReason)
	assert.Equal(t, 1, res.Buys)
	assert.Equal(t, 1, res.Sells)
	assert.True(t, res.StartingCash.Equal(decimal.NewFromInt(1000)))
	assert.True(t, res.EndingCash.Equal(decimal.NewFromInt(992)))
	assert.True(t, res.Profit.Equal(decimal.NewFromInt(-8)))

	require.Len(t, brk.PlacedOrders, 2)
	assert.Equal(t, types.Buy, brk.PlacedOrders[0].Side)
	assert.Equal(t, types.Limit, brk.PlacedOrders[0].PriceType)
	assert.Equal(t, types.Sell, brk.PlacedOrders[1].Side)
	assert.Equal(t, types.Market, brk.PlacedOrders[1].PriceType, "stop loss routes at market")
	assert.Equal(t, 1, brk.PlacedOrders[1].Qty)
}

func TestSessionProfitTakeAttachesLimit(t *testing.T) {
	netQty := 0
	sold := false

	brk := &mock.Broker{}
	brk.PositionsFn = func(ctx context.Context) ([]types.Position, error) {
		return []types.Position{{TradingSymbol: "SUZLON-EQ", NetQty: netQty}}, nil
	}
	brk.QuoteFn = func(ctx context.Context, inst types.Instrument) (types.Quote, error) {
		if sold {
			// Past the hard end boundary the session would exit, but here
			// the loop is cut short by cancellation below.
			return types.Quote{LTP: decimal.RequireFromString("100.00")}, nil
		}
		return types.Quote{LTP: decimal.RequireFromString("101.51")}, nil
	}
	brk.OrderStatusFn = func(ctx context.Context, orderID string) (types.OrderStatus, error) {
		if netQty == 0 {
			netQty = 1
			return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.NewFromInt(100)}, nil
		}
		netQty = 0
		sold = true
		return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.RequireFromString("101.46")}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	brk.PlaceOrderFn = func(_ context.Context, req types.OrderReq) (types.OrderResp, error) {
		if req.Side == types.Sell {
			// Let the loop finish this order, then stop the session.
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
		}
		return types.OrderResp{OrderID: "ord"}, nil
	}

	s := newTestSession(t, brk, openClock())
	res, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	require.GreaterOrEqual(t, len(brk.PlacedOrders), 2)
	sell := brk.PlacedOrders[1]
	assert.Equal(t, types.Sell, sell.Side)
	assert.Equal(t, types.Limit, sell.PriceType)
	assert.True(t, sell.Price.Equal(decimal.RequireFromString("101.46")),
		"profit take undercuts LTP, got %s", sell.Price)
}

func TestSessionEntryRejectionIsFatal(t *testing.T) {
	brk := &mock.Broker{}
	brk.PositionsFn = func(ctx context.Context) ([]types.Position, error) {
		return nil, nil
	}
	brk.OrderStatusFn = func(ctx context.Context, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{State: types.OrderRejected, Reason: "insufficient funds"}, nil
	}

	s := newTestSession(t, brk, openClock())
	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrOrderRejected)
	require.NotNil(t, res)
	assert.Equal(t, "ENTRY_FAILED", res.ExitReason)
}

func TestSessionMissingOrderIDIsFatal(t *testing.T) {
	brk := &mock.Broker{}
	brk.PlaceOrderFn = func(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
		return types.OrderResp{}, nil
	}

	s := newTestSession(t, brk, openClock())
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrPlacementFailed)
}

func TestSessionOrderStatusTimeout(t *testing.T) {
	brk := &mock.Broker{}
	brk.OrderStatusFn = func(ctx context.Context, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{State: types.OrderOpen}, nil
	}

	cfg := testConfig()
	cfg.Session.OrderStatusTimeoutS = 0 // expire on the first poll
	t.Setenv("LADDER_LOG_DIR", t.TempDir())
	s, err := NewSessionAt(cfg, brk, nil, openClock())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrOrderStatusTimeout)
}

func TestSessionLoginFailure(t *testing.T) {
	brk := &mock.Broker{}
	brk.LoginFn = func(ctx context.Context) error {
		return errors.New("invalid totp")
	}

	s := newTestSession(t, brk, openClock())
	res, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailure)
	require.NotNil(t, res)
	assert.Equal(t, "INIT_FAILED", res.ExitReason)
}

func TestSessionQuoteGapHoldsTick(t *testing.T) {
	netQty := 0
	quoteCalls := 0

	brk := &mock.Broker{}
	brk.PositionsFn = func(ctx context.Context) ([]types.Position, error) {
		return []types.Position{{TradingSymbol: "SUZLON-EQ", NetQty: netQty}}, nil
	}
	brk.QuoteFn = func(ctx context.Context, inst types.Instrument) (types.Quote, error) {
		quoteCalls++
		if quoteCalls == 1 {
			return types.Quote{}, errors.New("gateway hiccup")
		}
		return types.Quote{LTP: decimal.RequireFromString("91.99")}, nil
	}
	brk.OrderStatusFn = func(ctx context.Context, orderID string) (types.OrderStatus, error) {
		if netQty == 0 {
			netQty = 1
			return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.NewFromInt(100)}, nil
		}
		netQty = 0
		return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.NewFromInt(92)}, nil
	}

	s := newTestSession(t, brk, openClock())
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "STOP_LOSS", res.ExitReason)
	assert.GreaterOrEqual(t, quoteCalls, 2, "a failed quote degrades to a held tick, not an exit")
}

func TestSessionReconcilesExistingPosition(t *testing.T) {
	// Entry window closed, one lot already held from earlier in the day:
	// the session rebuilds the ladder off the order book instead of buying.
	brk := &mock.Broker{}
	brk.PositionsFn = func(ctx context.Context) ([]types.Position, error) {
		return []types.Position{{
			TradingSymbol:  "SUZLON-EQ",
			NetQty:         1,
			DayBuyAvgPrice: decimal.NewFromInt(100),
		}}, nil
	}
	brk.OrderBookFn = func(ctx context.Context) ([]types.Order, error) {
		return []types.Order{{
			OrderID:       "ord-1",
			TradingSymbol: "SUZLON-EQ",
			Side:          types.Buy,
			Status:        types.OrderComplete,
			AvgPrice:      decimal.NewFromInt(100),
			Qty:           1,
		}}, nil
	}
	brk.QuoteFn = func(ctx context.Context, inst types.Instrument) (types.Quote, error) {
		return types.Quote{LTP: decimal.RequireFromString("91.99")}, nil
	}
	brk.OrderStatusFn = func(ctx context.Context, orderID string) (types.OrderStatus, error) {
		return types.OrderStatus{State: types.OrderComplete, AvgPrice: decimal.NewFromInt(92)}, nil
	}

	s := newTestSession(t, brk, entryClosedClock())
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "STOP_LOSS", res.ExitReason)
	require.Len(t, brk.PlacedOrders, 1, "no entry buy when a position already exists")
	assert.Equal(t, types.Sell, brk.PlacedOrders[0].Side)
}
