package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionResult is the realized outcome of one completed trading session.
type SessionResult struct {
	SessionID     string          `json:"session_id"`
	TradingSymbol string          `json:"symbol"`
	ExitReason    string          `json:"exit_reason"`
	StartingCash  decimal.Decimal `json:"starting_cash"`
	EndingCash    decimal.Decimal `json:"ending_cash"`
	Profit        decimal.Decimal `json:"profit"`
	Buys          int             `json:"buys"`
	Sells         int             `json:"sells"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       time.Time       `json:"ended_at"`
}
