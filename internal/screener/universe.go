package screener

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"ladder-trading-bot/internal/logger"
)

// Static universes. Symbols carry the NSE series suffix.
var staticUniverses = map[string][]string{
	"Nifty 50": {
		"RELIANCE-EQ", "HDFCBANK-EQ", "INFY-EQ", "ICICIBANK-EQ", "TCS-EQ", "KOTAKBANK-EQ",
		"SPANDANA-EQ", "AGSTRA-EQ", "NEWGEN-EQ", "SUZLON-EQ", "RAMANEWS-BE", "SWSOLAR-EQ",
		"PCJEWELLER-EQ", "BGRENERGY-EQ", "NAVKARURB-EQ", "SADHNANIQ-BE", "BCG-EQ",
		"RELINFRA-EQ", "INDOTECH-EQ", "GOACARBON-EQ", "DISHTV-BE", "VERTOZ-BE",
		"VAKRANGEE-EQ", "KPIGREEN-EQ",
	},
	"Nifty 100": {
		"RELIANCE-EQ", "HDFCBANK-EQ", "INFY-EQ", "ICICIBANK-EQ", "TCS-EQ", "KOTAKBANK-EQ",
		"SBIN-EQ", "ADANIENT-EQ", "BAJAJ-AUTO-EQ",
	},
	"Custom": {
		"NAVKARURB-EQ", "INDOTECH-EQ", "GOACARBON-EQ", "PCJEWELLER-EQ", "BCG-EQ", "SUZLON-EQ",
	},
}

// Universe returns the symbols to screen. With scraping enabled it pulls
// the current index constituents and falls back to the static list when
// the scrape yields nothing.
func Universe(ctx context.Context, name string, static []string, scrape bool) ([]string, error) {
	if len(static) > 0 {
		return static, nil
	}

	if scrape {
		symbols, err := scrapeConstituents(name)
		if err != nil {
			logger.Warn(ctx, "Constituent scrape failed, using static universe",
				"universe", name,
				"error", err,
			)
		} else if len(symbols) > 0 {
			return symbols, nil
		}
	}

	symbols, ok := staticUniverses[name]
	if !ok {
		return nil, fmt.Errorf("unknown universe %q", name)
	}
	return symbols, nil
}

// scrapeConstituents pulls index constituents off the NSE listing page.
func scrapeConstituents(name string) ([]string, error) {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	url := "https://www.nseindia.com/market-data/live-equity-market?symbol=" + slug

	var symbols []string
	var scrapeErr error

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"),
	)
	c.SetRequestTimeout(15 * time.Second)

	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			scrapeErr = err
			return
		}
		doc.Find("table tbody tr td:first-child a").Each(func(_ int, sel *goquery.Selection) {
			sym := strings.TrimSpace(sel.Text())
			if sym != "" && !strings.EqualFold(sym, name) {
				symbols = append(symbols, sym+"-EQ")
			}
		})
	})
	c.OnError(func(_ *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(url); err != nil {
		return nil, err
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, scrapeErr
	}
	return symbols, nil
}
