// Package broker builds the configured gateway from config and
// environment credentials.
package broker

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/broker/paper"
	"ladder-trading-bot/internal/broker/shoonya"
	"ladder-trading-bot/internal/broker/zerodha"
	"ladder-trading-bot/internal/interfaces"
	"ladder-trading-bot/internal/store"
)

const defaultPaperCash = 1_000_000

// FromConfig builds the gateway named in config. In DRY_RUN mode the real
// gateway still serves market data but orders run against a paper book.
func FromConfig(cfg *store.Config) (interfaces.Broker, error) {
	var brk interfaces.Broker
	switch cfg.Broker {
	case "SHOONYA":
		p := shoonya.Params{
			UserID:     os.Getenv("SHOONYA_USER_ID"),
			Password:   os.Getenv("SHOONYA_PASSWORD"),
			APIKey:     os.Getenv("SHOONYA_API_KEY"),
			TOTPSecret: os.Getenv("SHOONYA_TOTP_SECRET"),
			VendorCode: os.Getenv("SHOONYA_VENDOR_CODE"),
			IMEI:       os.Getenv("SHOONYA_IMEI"),
			BaseURL:    os.Getenv("SHOONYA_BASE_URL"),
			LiveFeed:   cfg.LiveFeed,
		}
		if p.UserID == "" || p.Password == "" || p.TOTPSecret == "" {
			return nil, fmt.Errorf("SHOONYA_USER_ID, SHOONYA_PASSWORD and SHOONYA_TOTP_SECRET must be set")
		}
		brk = shoonya.New(p)
	case "ZERODHA":
		p := zerodha.Params{
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		}
		if p.APIKey == "" || p.AccessToken == "" {
			return nil, fmt.Errorf("KITE_API_KEY and KITE_ACCESS_TOKEN must be set")
		}
		brk = zerodha.New(p)
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker)
	}

	if cfg.Mode == "DRY_RUN" {
		cash := decimal.NewFromInt(defaultPaperCash)
		if v := os.Getenv("PAPER_STARTING_CASH"); v != "" {
			parsed, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("PAPER_STARTING_CASH: %w", err)
			}
			cash = parsed
		}
		brk = paper.Wrap(brk, cash)
	}
	return brk, nil
}
