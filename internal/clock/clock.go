// Package clock derives the fixed time boundaries of one trading session
// from the configured market close time. All boundaries are computed once at
// session start and are immutable afterward.
package clock

import (
	"fmt"
	"time"
)

// IST is UTC+5:30 (19800 seconds).
var IST = time.FixedZone("IST", 19800)

// SessionClock holds the immutable time boundaries of one session.
type SessionClock struct {
	Start          time.Time
	HardEnd        time.Time // Start + configured duration
	Closing        time.Time // market close, today
	ClosingMinus30 time.Time // no new entries past this point
	ClosingMinus1  time.Time // force-liquidation boundary
}

// New computes the session boundaries. closingTime is "HH:MM:SS" in IST;
// duration bounds the session independently of market close.
func New(start time.Time, closingTime string, duration time.Duration) (SessionClock, error) {
	ct, err := time.Parse("15:04:05", closingTime)
	if err != nil {
		return SessionClock{}, fmt.Errorf("parse market closing time %q: %w", closingTime, err)
	}

	day := start.In(IST)
	closing := time.Date(day.Year(), day.Month(), day.Day(), ct.Hour(), ct.Minute(), ct.Second(), 0, IST)

	return SessionClock{
		Start:          start,
		HardEnd:        start.Add(duration),
		Closing:        closing,
		ClosingMinus30: closing.Add(-30 * time.Minute),
		ClosingMinus1:  closing.Add(-1 * time.Minute),
	}, nil
}

// CanEnter reports whether new rungs may still be bought: no entries in the
// last 30 minutes of the trading day.
func (c SessionClock) CanEnter(now time.Time) bool {
	return now.Before(c.ClosingMinus30)
}

// Expired reports whether the session has hit its end boundary. Equality at
// ClosingMinus1 counts as past the boundary; the hard end is strict.
func (c SessionClock) Expired(now time.Time) bool {
	return now.After(c.HardEnd) || !now.Before(c.ClosingMinus1)
}

// CanLiquidate reports whether a forced sell can still be routed before the
// market closes.
func (c SessionClock) CanLiquidate(now time.Time) bool {
	return now.Before(c.Closing)
}
