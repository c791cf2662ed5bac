package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
mode: DRY_RUN
instrument:
  symbol: SUZLON-EQ
  token: "12018"
entry:
  initial_buy_price: 101.55
ladder:
  entry_diff_price: 2.0
  target_price_diff: 1.5
  lot_size: 1
  max_open_position: 3
session:
  duration_minutes: 120
`

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "SHOONYA", cfg.Broker)
	assert.Equal(t, "NSE", cfg.Exchange)
	assert.Equal(t, "LMT", cfg.Entry.PriceType)
	assert.Equal(t, "LMT", cfg.ProfitTake.PriceType)
	assert.Equal(t, 0.05, cfg.ProfitTake.Undercut)
	assert.Equal(t, "15:30:00", cfg.Session.MarketClosingTime)
	assert.Equal(t, 1000, cfg.Session.PollIntervalMs)
	assert.Equal(t, 500, cfg.Session.OrderPollIntervalMs)
	assert.Equal(t, 120, cfg.Session.OrderStatusTimeoutS)
	assert.Equal(t, 30, cfg.Screener.PollSeconds)
	assert.Equal(t, 10, cfg.Screener.LingerSeconds)
	assert.Equal(t, 0.5, cfg.Screener.CircuitProximityPct)
	assert.Equal(t, int64(10), cfg.Screener.MaxBestBidSellQty)
	assert.Equal(t, 100.0, cfg.Screener.MinPrice)
	assert.Equal(t, 3, cfg.Screener.MaxConcurrentSessions)
}

func TestLoadConfigRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		edit string
	}{
		{"bad mode", "mode: PRETEND"},
		{"bad broker", "mode: LIVE\nbroker: ROBINHOOD"},
		{"no instrument", "mode: DRY_RUN\nladder: {entry_diff_price: 1, target_price_diff: 1, lot_size: 1, max_open_position: 1}\nsession: {duration_minutes: 10}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.edit))
			assert.Error(t, err)
		})
	}
}

func TestValidateLadderParams(t *testing.T) {
	t.Parallel()

	body := minimalConfig + "\n"
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)

	cfg.Ladder.EntryDiffPrice = 0
	assert.Error(t, cfg.Validate())

	cfg.Ladder.EntryDiffPrice = 2
	cfg.Ladder.MaxOpenPosition = -1
	assert.Error(t, cfg.Validate())

	cfg.Ladder.MaxOpenPosition = 3
	cfg.Session.DurationMinutes = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
