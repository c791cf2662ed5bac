package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode     string `yaml:"mode"`   // DRY_RUN or LIVE
	Broker   string `yaml:"broker"` // SHOONYA or ZERODHA
	Exchange string `yaml:"exchange"`

	Instrument struct {
		Symbol string `yaml:"symbol"`
		Token  string `yaml:"token"`
	} `yaml:"instrument"`

	Entry struct {
		InitialBuyPrice float64 `yaml:"initial_buy_price"`
		PriceType       string  `yaml:"price_type"` // LMT or MKT
	} `yaml:"entry"`

	Ladder struct {
		EntryDiffPrice  float64 `yaml:"entry_diff_price"`
		TargetPriceDiff float64 `yaml:"target_price_diff"`
		LotSize         int     `yaml:"lot_size"`
		MaxOpenPosition int     `yaml:"max_open_position"`
	} `yaml:"ladder"`

	ProfitTake struct {
		// LMT attaches the undercut limit price to the profit-take sell;
		// MKT routes it as a market order.
		PriceType string  `yaml:"price_type"`
		Undercut  float64 `yaml:"undercut"`
	} `yaml:"profit_take"`

	Session struct {
		DurationMinutes     int    `yaml:"duration_minutes"`
		MarketClosingTime   string `yaml:"market_closing_time"` // "15:30:00" IST
		PollIntervalMs      int    `yaml:"poll_interval_ms"`
		OrderPollIntervalMs int    `yaml:"order_poll_interval_ms"`
		OrderStatusTimeoutS int    `yaml:"order_status_timeout_s"`
	} `yaml:"session"`

	LiveFeed bool `yaml:"live_feed"` // stream quotes over the broker WebSocket

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"metrics"`

	Screener struct {
		Universe              string   `yaml:"universe"` // index name for scraped constituents
		Static                []string `yaml:"static"`
		ScrapeConstituents    bool     `yaml:"scrape_constituents"`
		PollSeconds           int      `yaml:"poll_seconds"`
		LingerSeconds         int      `yaml:"linger_seconds"`
		CircuitProximityPct   float64  `yaml:"circuit_proximity_pct"`
		MaxBestBidSellQty     int64    `yaml:"max_best_bid_sell_qty"`
		MinPrice              float64  `yaml:"min_price"`
		MaxConcurrentSessions int      `yaml:"max_concurrent_sessions"`
	} `yaml:"screener"`

	DebugOn bool `yaml:"debug_on"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Broker != "SHOONYA" && c.Broker != "ZERODHA" {
		return fmt.Errorf("invalid broker '%s': must be 'SHOONYA' or 'ZERODHA'", c.Broker)
	}
	if c.Instrument.Symbol == "" {
		return errors.New("instrument.symbol cannot be empty")
	}
	if c.Entry.PriceType != "LMT" && c.Entry.PriceType != "MKT" {
		return fmt.Errorf("entry.price_type must be 'LMT' or 'MKT', got '%s'", c.Entry.PriceType)
	}
	if c.ProfitTake.PriceType != "LMT" && c.ProfitTake.PriceType != "MKT" {
		return fmt.Errorf("profit_take.price_type must be 'LMT' or 'MKT', got '%s'", c.ProfitTake.PriceType)
	}
	if c.Ladder.EntryDiffPrice <= 0 {
		return fmt.Errorf("ladder.entry_diff_price must be positive, got %.2f", c.Ladder.EntryDiffPrice)
	}
	if c.Ladder.TargetPriceDiff <= 0 {
		return fmt.Errorf("ladder.target_price_diff must be positive, got %.2f", c.Ladder.TargetPriceDiff)
	}
	if c.Ladder.LotSize <= 0 {
		return fmt.Errorf("ladder.lot_size must be positive, got %d", c.Ladder.LotSize)
	}
	if c.Ladder.MaxOpenPosition <= 0 {
		return fmt.Errorf("ladder.max_open_position must be positive, got %d", c.Ladder.MaxOpenPosition)
	}
	if c.Session.DurationMinutes <= 0 {
		return fmt.Errorf("session.duration_minutes must be positive, got %d", c.Session.DurationMinutes)
	}
	if c.Session.MarketClosingTime == "" {
		return errors.New("session.market_closing_time cannot be empty")
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.Broker == "" {
		c.Broker = "SHOONYA"
	}
	if c.Entry.PriceType == "" {
		c.Entry.PriceType = "LMT"
	}
	if c.ProfitTake.PriceType == "" {
		c.ProfitTake.PriceType = "LMT"
	}
	if c.ProfitTake.Undercut == 0 {
		c.ProfitTake.Undercut = 0.05
	}
	if c.Session.MarketClosingTime == "" {
		c.Session.MarketClosingTime = "15:30:00"
	}
	if c.Session.PollIntervalMs == 0 {
		c.Session.PollIntervalMs = 1000
	}
	if c.Session.OrderPollIntervalMs == 0 {
		c.Session.OrderPollIntervalMs = 500
	}
	if c.Session.OrderStatusTimeoutS == 0 {
		c.Session.OrderStatusTimeoutS = 120
	}
	if c.Screener.PollSeconds == 0 {
		c.Screener.PollSeconds = 30
	}
	if c.Screener.LingerSeconds == 0 {
		c.Screener.LingerSeconds = 10
	}
	if c.Screener.CircuitProximityPct == 0 {
		c.Screener.CircuitProximityPct = 0.5
	}
	if c.Screener.MaxBestBidSellQty == 0 {
		c.Screener.MaxBestBidSellQty = 10
	}
	if c.Screener.MinPrice == 0 {
		c.Screener.MinPrice = 100
	}
	if c.Screener.MaxConcurrentSessions == 0 {
		c.Screener.MaxConcurrentSessions = 3
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
