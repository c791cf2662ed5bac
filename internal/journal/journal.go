// Package journal persists completed trades and sessions to sqlite so a
// day's activity survives process restarts and can be queried offline.
package journal

import "time"

type TradeRecord struct {
	TradeID   string
	SessionID string
	Symbol    string
	Side      string
	Qty       int
	Price     float64
	OrderID   string
	Reason    string
	Time      time.Time
}

type SessionRecord struct {
	SessionID    string
	Symbol       string
	ExitReason   string
	StartingCash float64
	EndingCash   float64
	Profit       float64
	StartedAt    time.Time
	EndedAt      time.Time
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSession(SessionRecord) error
	Close() error
}
