package paper

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-trading-bot/internal/broker/mock"
	"ladder-trading-bot/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func marketAt(ltp string) *mock.Broker {
	brk := &mock.Broker{}
	brk.QuoteFn = func(ctx context.Context, inst types.Instrument) (types.Quote, error) {
		return types.Quote{LTP: dec(ltp)}, nil
	}
	return brk
}

func TestPaperBuySellCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := Wrap(marketAt("100.00"), dec("1000"))

	buy := types.OrderReq{
		Side: types.Buy, Exchange: "NSE", TradingSymbol: "SUZLON-EQ",
		Qty: 2, PriceType: types.Limit, Price: dec("101.00"),
	}
	resp, err := b.PlaceOrder(ctx, buy)
	require.NoError(t, err)
	require.NotEmpty(t, resp.OrderID)

	st, err := b.OrderStatus(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, types.OrderComplete, st.State)
	assert.True(t, st.AvgPrice.Equal(dec("100.00")), "marketable limit fills at the last price")

	limits, err := b.CashLimits(ctx)
	require.NoError(t, err)
	assert.True(t, limits.Cash.Equal(dec("800")))

	positions, err := b.Positions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 2, positions[0].NetQty)
	assert.True(t, positions[0].DayBuyAvgPrice.Equal(dec("100.00")))

	sell := types.OrderReq{
		Side: types.Sell, Exchange: "NSE", TradingSymbol: "SUZLON-EQ",
		Qty: 1, PriceType: types.Market,
	}
	_, err = b.PlaceOrder(ctx, sell)
	require.NoError(t, err)

	limits, err = b.CashLimits(ctx)
	require.NoError(t, err)
	assert.True(t, limits.Cash.Equal(dec("900")))

	positions, _ = b.Positions(ctx)
	assert.Equal(t, 1, positions[0].NetQty)
}

func TestPaperNonMarketableLimitFillsAtLimit(t *testing.T) {
	t.Parallel()

	b := Wrap(marketAt("100.00"), dec("1000"))

	resp, err := b.PlaceOrder(context.Background(), types.OrderReq{
		Side: types.Buy, Exchange: "NSE", TradingSymbol: "SUZLON-EQ",
		Qty: 1, PriceType: types.Limit, Price: dec("99.00"),
	})
	require.NoError(t, err)

	st, _ := b.OrderStatus(context.Background(), resp.OrderID)
	assert.True(t, st.AvgPrice.Equal(dec("99.00")))
}

func TestPaperSellExceedingHeldFails(t *testing.T) {
	t.Parallel()

	b := Wrap(marketAt("100.00"), dec("1000"))
	_, err := b.PlaceOrder(context.Background(), types.OrderReq{
		Side: types.Sell, Exchange: "NSE", TradingSymbol: "SUZLON-EQ", Qty: 1, PriceType: types.Market,
	})
	assert.Error(t, err)
}

func TestPaperOrderBookNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := Wrap(marketAt("100.00"), dec("1000"))

	for i := 0; i < 3; i++ {
		_, err := b.PlaceOrder(ctx, types.OrderReq{
			Side: types.Buy, Exchange: "NSE", TradingSymbol: "SUZLON-EQ",
			Qty: 1, PriceType: types.Market,
		})
		require.NoError(t, err)
	}
	_, err := b.PlaceOrder(ctx, types.OrderReq{
		Side: types.Sell, Exchange: "NSE", TradingSymbol: "SUZLON-EQ",
		Qty: 1, PriceType: types.Market,
	})
	require.NoError(t, err)

	orders, err := b.OrderBook(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 4)
	assert.Equal(t, types.Sell, orders[0].Side, "latest order leads the book")
	assert.Equal(t, types.Buy, orders[3].Side)
}

func TestPaperUnknownOrder(t *testing.T) {
	t.Parallel()

	b := Wrap(marketAt("100.00"), dec("1000"))
	_, err := b.OrderStatus(context.Background(), "nope")
	assert.Error(t, err)
}
