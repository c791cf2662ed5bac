// Package screener watches a universe of symbols for stocks pinned at
// their lower circuit band and emits buy candidates once they come off it.
package screener

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/metrics"
	"ladder-trading-bot/internal/types"
)

type Candidate struct {
	Instrument types.Instrument
	LTP        decimal.Decimal
}

type Params struct {
	Exchange            string
	PollInterval        time.Duration
	Linger              time.Duration
	CircuitProximityPct decimal.Decimal
	MaxBestBidSellQty   int64
	MinPrice            decimal.Decimal
}

type Screener struct {
	brk interfaces.Broker
	p   Params

	instruments []types.Instrument
	recent      map[string]time.Time
	triggers    chan Candidate

	mu     sync.Mutex
	active map[string]bool
}

func New(brk interfaces.Broker, p Params) *Screener {
	return &Screener{
		brk:      brk,
		p:        p,
		recent:   make(map[string]time.Time),
		triggers: make(chan Candidate),
		active:   make(map[string]bool),
	}
}

// Triggers delivers candidates that passed every eligibility gate. A
// symbol is muted until Release is called for it.
func (s *Screener) Triggers() <-chan Candidate { return s.triggers }

// Release re-arms a symbol after its session ends.
func (s *Screener) Release(symbol string) {
	s.mu.Lock()
	delete(s.active, symbol)
	s.mu.Unlock()
}

// Run resolves the universe to instrument tokens and polls it until the
// context is cancelled.
func (s *Screener) Run(ctx context.Context, symbols []string) error {
	for _, sym := range symbols {
		inst, err := s.brk.SearchInstrument(ctx, s.p.Exchange, sym)
		if err != nil {
			logger.Warn(ctx, "Token fetch failed", "symbol", sym, "error", err)
			continue
		}
		s.instruments = append(s.instruments, inst)
	}
	logger.Info(ctx, "Screener universe resolved",
		"requested", len(symbols),
		"resolved", len(s.instruments),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, inst := range s.instruments {
			if c, ok := s.check(ctx, inst); ok {
				metrics.IncScreenerTrigger()
				select {
				case s.triggers <- c:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.p.PollInterval):
		}
	}
}

// check applies the circuit, linger and eligibility gates to one symbol.
func (s *Screener) check(ctx context.Context, inst types.Instrument) (Candidate, bool) {
	s.mu.Lock()
	busy := s.active[inst.TradingSymbol]
	s.mu.Unlock()
	if busy {
		return Candidate{}, false
	}

	q, err := s.brk.Quote(ctx, inst)
	if err != nil {
		logger.Warn(ctx, "Quote fetch failed", "symbol", inst.TradingSymbol, "error", err)
		return Candidate{}, false
	}
	if q.LTP.IsZero() || q.LowerCircuit.IsZero() {
		return Candidate{}, false
	}

	now := time.Now()
	if s.atLowerCircuit(q.LTP, q.LowerCircuit) {
		s.recent[inst.TradingSymbol] = now
	} else if seen, ok := s.recent[inst.TradingSymbol]; ok {
		if now.Sub(seen) >= s.p.Linger {
			delete(s.recent, inst.TradingSymbol)
			return Candidate{}, false
		}
		// Still within the linger window: the stock just came off the
		// band, which is the entry we are after.
	} else {
		return Candidate{}, false
	}

	if !s.eligible(ctx, inst, q) {
		return Candidate{}, false
	}

	s.mu.Lock()
	s.active[inst.TradingSymbol] = true
	s.mu.Unlock()

	logger.Info(ctx, "Screener trigger",
		"symbol", inst.TradingSymbol,
		"ltp", q.LTP.String(),
		"lower_circuit", q.LowerCircuit.String(),
		"best_sell_qty", q.BestBidSellQty,
	)
	return Candidate{Instrument: inst, LTP: q.LTP}, true
}

// atLowerCircuit reports whether the last price sits within the proximity
// band of the lower circuit limit.
func (s *Screener) atLowerCircuit(lp, lc decimal.Decimal) bool {
	return lp.Sub(lc).Abs().Div(lc).LessThan(s.p.CircuitProximityPct)
}

// eligible screens out thick sell queues, penny prices and accounts
// without the cash to take the trade.
func (s *Screener) eligible(ctx context.Context, inst types.Instrument, q types.Quote) bool {
	if q.BestBidSellQty >= s.p.MaxBestBidSellQty {
		return false
	}
	if !q.LTP.GreaterThan(s.p.MinPrice) {
		return false
	}

	limits, err := s.brk.CashLimits(ctx)
	if err != nil {
		logger.Warn(ctx, "Cash check failed", "symbol", inst.TradingSymbol, "error", err)
		return false
	}
	if limits.Cash.LessThan(q.LTP) {
		logger.Info(ctx, "Insufficient balance for candidate",
			"symbol", inst.TradingSymbol,
			"ltp", q.LTP.String(),
			"cash", limits.Cash.String(),
		)
		return false
	}
	return true
}
