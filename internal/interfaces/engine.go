package interfaces

import (
	"context"

	"ladder-trading-bot/internal/types"
)

// Engine runs one trading session to completion.
type Engine interface {
	Run(ctx context.Context) (*types.SessionResult, error)
}
