package engineobs

import (
	"context"
	"time"

	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/trace"
	"ladder-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Run(ctx context.Context) (*types.SessionResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.Info(ctx, "Starting trading session")

	result, err := oe.engine.Run(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Trading session failed", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, err
	}

	logger.Info(ctx, "Trading session completed",
		"session_id", result.SessionID,
		"symbol", result.TradingSymbol,
		"exit_reason", result.ExitReason,
		"profit", result.Profit.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
