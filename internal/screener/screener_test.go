package screener

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder-trading-bot/internal/broker/mock"
	"ladder-trading-bot/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testParams() Params {
	return Params{
		Exchange:            "NSE",
		PollInterval:        5 * time.Millisecond,
		Linger:              50 * time.Millisecond,
		CircuitProximityPct: dec("0.005"),
		MaxBestBidSellQty:   10,
		MinPrice:            dec("100"),
	}
}

func fundedBroker(quote func() types.Quote) *mock.Broker {
	brk := &mock.Broker{}
	brk.QuoteFn = func(ctx context.Context, inst types.Instrument) (types.Quote, error) {
		return quote(), nil
	}
	brk.CashLimitsFn = func(ctx context.Context) (types.Limits, error) {
		return types.Limits{Cash: dec("10000")}, nil
	}
	return brk
}

func TestAtLowerCircuit(t *testing.T) {
	t.Parallel()

	s := New(&mock.Broker{}, testParams())

	assert.True(t, s.atLowerCircuit(dec("100.00"), dec("100.00")))
	assert.True(t, s.atLowerCircuit(dec("100.40"), dec("100.00")))
	assert.False(t, s.atLowerCircuit(dec("100.50"), dec("100.00")), "proximity boundary is exclusive")
	assert.False(t, s.atLowerCircuit(dec("105.00"), dec("100.00")))
}

func TestEligibilityGates(t *testing.T) {
	t.Parallel()

	brk := fundedBroker(func() types.Quote { return types.Quote{} })
	s := New(brk, testParams())
	inst := types.Instrument{Exchange: "NSE", TradingSymbol: "SUZLON-EQ", Token: "12018"}

	ok := s.eligible(context.Background(), inst, types.Quote{LTP: dec("101"), BestBidSellQty: 5})
	assert.True(t, ok)

	ok = s.eligible(context.Background(), inst, types.Quote{LTP: dec("101"), BestBidSellQty: 10})
	assert.False(t, ok, "a thick sell queue at the touch is disqualifying")

	ok = s.eligible(context.Background(), inst, types.Quote{LTP: dec("100"), BestBidSellQty: 5})
	assert.False(t, ok, "price must exceed the floor, not meet it")

	poor := fundedBroker(func() types.Quote { return types.Quote{} })
	poor.CashLimitsFn = func(ctx context.Context) (types.Limits, error) {
		return types.Limits{Cash: dec("50")}, nil
	}
	ok = New(poor, testParams()).eligible(context.Background(), inst, types.Quote{LTP: dec("101"), BestBidSellQty: 5})
	assert.False(t, ok, "candidates beyond available cash are skipped")
}

func TestTriggerAndMute(t *testing.T) {
	t.Parallel()

	brk := fundedBroker(func() types.Quote {
		return types.Quote{LTP: dec("101.00"), LowerCircuit: dec("101.00"), BestBidSellQty: 3}
	})

	s := New(brk, testParams())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx, []string{"SUZLON-EQ"}) }()

	var cand Candidate
	select {
	case cand = <-s.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger emitted")
	}
	assert.Equal(t, "SUZLON-EQ", cand.Instrument.TradingSymbol)
	assert.True(t, cand.LTP.Equal(dec("101.00")))

	// Muted while a session is running for the symbol.
	select {
	case <-s.Triggers():
		t.Fatal("symbol re-triggered while active")
	case <-time.After(50 * time.Millisecond):
	}

	// Released symbols can trigger again.
	s.Release("SUZLON-EQ")
	select {
	case cand = <-s.Triggers():
	case <-time.After(2 * time.Second):
		t.Fatal("no trigger after release")
	}
	assert.Equal(t, "SUZLON-EQ", cand.Instrument.TradingSymbol)
}

func TestLingerWindow(t *testing.T) {
	t.Parallel()

	// The stock sits at the band once, then bounces off it. Within the
	// linger window it still qualifies; past it the record is dropped.
	atBand := true
	brk := fundedBroker(func() types.Quote {
		if atBand {
			return types.Quote{LTP: dec("101.00"), LowerCircuit: dec("101.00"), BestBidSellQty: 3}
		}
		return types.Quote{LTP: dec("104.00"), LowerCircuit: dec("101.00"), BestBidSellQty: 3}
	})

	s := New(brk, testParams())
	inst := types.Instrument{Exchange: "NSE", TradingSymbol: "SUZLON-EQ", Token: "12018"}
	ctx := context.Background()

	_, ok := s.check(ctx, inst)
	require.True(t, ok, "at the band")
	s.Release("SUZLON-EQ")

	atBand = false
	_, ok = s.check(ctx, inst)
	assert.True(t, ok, "inside the linger window after bouncing off")
	s.Release("SUZLON-EQ")

	time.Sleep(60 * time.Millisecond)
	_, ok = s.check(ctx, inst)
	assert.False(t, ok, "linger expired")

	// Once dropped, off-band prices never qualify.
	_, ok = s.check(ctx, inst)
	assert.False(t, ok)
}

func TestUniverseStaticFallback(t *testing.T) {
	t.Parallel()

	symbols, err := Universe(context.Background(), "Custom", nil, false)
	require.NoError(t, err)
	assert.Contains(t, symbols, "SUZLON-EQ")

	_, err = Universe(context.Background(), "Nifty 500000", nil, false)
	assert.Error(t, err)

	explicit, err := Universe(context.Background(), "ignored", []string{"BCG-EQ"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"BCG-EQ"}, explicit)
}
