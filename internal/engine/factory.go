package engine

import (
	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/journal"
	"ladder-trading-bot/internal/store"
)

// New builds a session engine for the configured instrument.
func New(cfg *store.Config, brk interfaces.Broker, jnl journal.Journal) (interfaces.Engine, error) {
	return NewSession(cfg, brk, jnl)
}
