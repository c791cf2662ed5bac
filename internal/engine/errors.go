package engine

import "errors"

// Fatal conditions terminate the session without attempting to flatten the
// position; it is left exactly as last confirmed by the gateway.
var (
	// ErrAuthFailure aborts before the loop is entered.
	ErrAuthFailure = errors.New("broker authentication failed")

	// ErrPlacementFailed means the gateway returned no order id.
	ErrPlacementFailed = errors.New("order placement returned no order id")

	// ErrOrderRejected means the gateway rejected a submitted order. The
	// session aborts rather than retrying at a different price.
	ErrOrderRejected = errors.New("order rejected")

	// ErrOrderStatusTimeout means status polling never reached a terminal
	// state within the configured bound.
	ErrOrderStatusTimeout = errors.New("order status polling timed out")

	// ErrQuoteUnavailable is transient: the tick degrades to a hold.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrLadderInconsistent flags a ladder/position mismatch. It is logged
	// and triggers a reconciliation pass, never a crash.
	ErrLadderInconsistent = errors.New("ladder index inconsistent with reported position")
)
