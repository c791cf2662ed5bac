package ladder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"ladder-trading-bot/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPushAndPopAt(t *testing.T) {
	t.Parallel()

	l := New()
	l.Push(dec("100.00"))
	l.Push(dec("98.00"))
	l.Push(dec("96.00"))
	assert.Equal(t, 3, l.Size())

	assert.True(t, l.PopAt(1))
	assert.Equal(t, 2, l.Size())
	assert.True(t, l.At(0).Equal(dec("100.00")))
	assert.True(t, l.At(1).Equal(dec("96.00")))

	assert.True(t, l.PopAt(0))
	assert.True(t, l.PopAt(0))
	assert.True(t, l.Empty())
}

func TestPopAtOutOfBounds(t *testing.T) {
	t.Parallel()

	l := New()
	l.Push(dec("100.00"))

	assert.False(t, l.PopAt(-1))
	assert.False(t, l.PopAt(1))
	assert.Equal(t, 1, l.Size(), "out-of-bounds pop must not remove anything")
}

func TestClear(t *testing.T) {
	t.Parallel()

	l := New()
	l.Push(dec("100.00"))
	l.Push(dec("98.00"))
	l.Clear()
	assert.True(t, l.Empty())
}

func TestIndex(t *testing.T) {
	t.Parallel()

	l := New()
	l.Push(dec("100.00"))
	l.Push(dec("98.00"))
	l.Push(dec("96.00"))

	cases := []struct {
		name       string
		netQty     int
		lotSize    int
		wantIdx    int
		consistent bool
	}{
		{"one lot", 1, 1, 0, true},
		{"two lots", 2, 1, 1, true},
		{"three lots", 3, 1, 2, true},
		{"zero qty floors to base", 0, 1, 0, true},
		{"beyond bounds wraps", 4, 1, 0, false},
		{"multi-share lots", 6, 2, 2, true},
		{"partial lot floors", 5, 2, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx, ok := l.Index(tc.netQty, tc.lotSize)
			assert.Equal(t, tc.wantIdx, idx)
			assert.Equal(t, tc.consistent, ok)
		})
	}
}

func TestIndexEmptyLadder(t *testing.T) {
	t.Parallel()

	l := New()
	idx, ok := l.Index(1, 1)
	assert.Equal(t, 0, idx)
	assert.False(t, ok)
}

func TestReconcileFromPosition(t *testing.T) {
	t.Parallel()

	l := New()
	l.Push(dec("55.00"))
	l.ReconcileFromPosition(6, 2, dec("97.50"))

	assert.Equal(t, 3, l.Size())
	for _, r := range l.Rungs() {
		assert.True(t, r.Equal(dec("97.50")))
	}
	assert.True(t, l.MatchesQty(6, 2))
}

func TestRebuildFromOrders(t *testing.T) {
	t.Parallel()

	// The order book arrives newest first: read bottom-up this is
	// buy 100, buy 98, sell, buy 96.
	orders := []types.Order{
		{TradingSymbol: "SUZLON-EQ", Side: types.Buy, Status: types.OrderComplete, AvgPrice: dec("96.00")},
		{TradingSymbol: "SUZLON-EQ", Side: types.Sell, Status: types.OrderComplete, AvgPrice: dec("99.70")},
		{TradingSymbol: "SUZLON-EQ", Side: types.Buy, Status: types.OrderComplete, AvgPrice: dec("98.00")},
		{TradingSymbol: "OTHER-EQ", Side: types.Buy, Status: types.OrderComplete, AvgPrice: dec("50.00")},
		{TradingSymbol: "SUZLON-EQ", Side: types.Buy, Status: types.OrderRejected, AvgPrice: dec("97.00")},
		{TradingSymbol: "SUZLON-EQ", Side: types.Buy, Status: types.OrderComplete, AvgPrice: dec("100.00")},
	}

	l := New()
	l.RebuildFromOrders(orders, "SUZLON-EQ")

	assert.Equal(t, 2, l.Size())
	assert.True(t, l.At(0).Equal(dec("100.00")))
	assert.True(t, l.At(1).Equal(dec("96.00")))
}

func TestRebuildFromOrdersSellOnEmpty(t *testing.T) {
	t.Parallel()

	orders := []types.Order{
		{TradingSymbol: "X-EQ", Side: types.Sell, Status: types.OrderComplete, AvgPrice: dec("10.00")},
	}

	l := New()
	l.RebuildFromOrders(orders, "X-EQ")
	assert.True(t, l.Empty())
}

func TestMatchesQty(t *testing.T) {
	t.Parallel()

	l := New()
	l.Push(dec("100.00"))
	l.Push(dec("98.00"))

	assert.True(t, l.MatchesQty(2, 1))
	assert.False(t, l.MatchesQty(3, 1))
	assert.True(t, l.MatchesQty(4, 2))
	assert.False(t, l.MatchesQty(2, 0))
}
