package engine

import (
	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/store"
	"ladder-trading-bot/internal/types"
)

// Strategy is the immutable per-session parameter snapshot, with all prices
// carried as two-decimal fixed-point values.
type Strategy struct {
	Instrument      types.Instrument
	InitialBuyPrice decimal.Decimal
	EntryPriceType  types.PriceType
	EntryDiff       decimal.Decimal
	TargetDiff      decimal.Decimal
	LotSize         int
	MaxOpenPosition int

	// StopLossAmount is the fixed worst-case cushion below the active rung:
	// EntryDiff * (MaxOpenPosition + 1).
	StopLossAmount decimal.Decimal

	ProfitPriceType types.PriceType
	SellUndercut    decimal.Decimal
}

// StrategyFromConfig freezes the configured parameters into decimals.
func StrategyFromConfig(cfg *store.Config) Strategy {
	entryDiff := decimal.NewFromFloat(cfg.Ladder.EntryDiffPrice)
	return Strategy{
		Instrument: types.Instrument{
			Exchange:      cfg.Exchange,
			TradingSymbol: cfg.Instrument.Symbol,
			Token:         cfg.Instrument.Token,
		},
		InitialBuyPrice: decimal.NewFromFloat(cfg.Entry.InitialBuyPrice),
		EntryPriceType:  types.PriceType(cfg.Entry.PriceType),
		EntryDiff:       entryDiff,
		TargetDiff:      decimal.NewFromFloat(cfg.Ladder.TargetPriceDiff),
		LotSize:         cfg.Ladder.LotSize,
		MaxOpenPosition: cfg.Ladder.MaxOpenPosition,
		StopLossAmount:  entryDiff.Mul(decimal.NewFromInt(int64(cfg.Ladder.MaxOpenPosition + 1))),
		ProfitPriceType: types.PriceType(cfg.ProfitTake.PriceType),
		SellUndercut:    decimal.NewFromFloat(cfg.ProfitTake.Undercut),
	}
}

// MaxQty is the share-count accumulation cap.
func (s Strategy) MaxQty() int {
	return s.MaxOpenPosition * s.LotSize
}
