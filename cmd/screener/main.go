package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"ladder-trading-bot/internal/broker"
	"ladder-trading-bot/internal/broker/brokerobs"
	"ladder-trading-bot/internal/engine"
	"ladder-trading-bot/internal/journal"
	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/metrics"
	"ladder-trading-bot/internal/screener"
	"ladder-trading-bot/internal/store"
	"ladder-trading-bot/internal/trace"
)

// entryTickOffset nudges the entry limit above the last price so the
// opening buy of a triggered session fills immediately.
var entryTickOffset = decimal.NewFromFloat(0.05)

func main() {
	_ = godotenv.Load()

	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := trace.Init(); err != nil {
		log.Fatal(err)
	}
	defer trace.Shutdown(context.Background())

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.Warn(ctx, "Metrics server stopped", "error", err)
			}
		}()
	}

	brk, err := broker.FromConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	brk = brokerobs.Wrap(brk)

	if err := brk.Login(ctx); err != nil {
		log.Fatal(err)
	}

	var jnl journal.Journal
	if cfg.Journal.Path != "" {
		sj, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer sj.Close()
		jnl = sj
	}

	universe, err := screener.Universe(ctx, cfg.Screener.Universe, cfg.Screener.Static, cfg.Screener.ScrapeConstituents)
	if err != nil {
		log.Fatal(err)
	}

	scr := screener.New(brk, screener.Params{
		Exchange:            cfg.Exchange,
		PollInterval:        time.Duration(cfg.Screener.PollSeconds) * time.Second,
		Linger:              time.Duration(cfg.Screener.LingerSeconds) * time.Second,
		CircuitProximityPct: decimal.NewFromFloat(cfg.Screener.CircuitProximityPct).Div(decimal.NewFromInt(100)),
		MaxBestBidSellQty:   cfg.Screener.MaxBestBidSellQty,
		MinPrice:            decimal.NewFromFloat(cfg.Screener.MinPrice),
	})

	go func() {
		if err := scr.Run(ctx, universe); err != nil && ctx.Err() == nil {
			logger.ErrorWithErr(ctx, "Screener stopped", err)
			cancel()
		}
	}()

	// Bounded session fan-out: one slot per concurrent session.
	slots := make(chan struct{}, cfg.Screener.MaxConcurrentSessions)
	var wg sync.WaitGroup

	log.Println("Screener started.")
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Println("Shutting down...")
			return
		case cand := <-scr.Triggers():
			select {
			case slots <- struct{}{}:
			default:
				logger.Warn(ctx, "Session slots exhausted, skipping candidate",
					"symbol", cand.Instrument.TradingSymbol,
				)
				scr.Release(cand.Instrument.TradingSymbol)
				continue
			}

			wg.Add(1)
			go func(cand screener.Candidate) {
				defer wg.Done()
				defer func() { <-slots }()
				defer scr.Release(cand.Instrument.TradingSymbol)

				sessCfg := *cfg
				sessCfg.Instrument.Symbol = cand.Instrument.TradingSymbol
				sessCfg.Instrument.Token = cand.Instrument.Token
				sessCfg.Entry.InitialBuyPrice, _ = cand.LTP.Add(entryTickOffset).Round(2).Float64()

				sess, err := engine.NewSession(&sessCfg, brk, jnl)
				if err != nil {
					logger.ErrorWithErr(ctx, "Session construction failed", err,
						"symbol", cand.Instrument.TradingSymbol,
					)
					return
				}
				sess.ReuseGateway()

				result, err := sess.Run(ctx)
				if err != nil {
					logger.ErrorWithErr(ctx, "Session ended with error", err,
						"symbol", cand.Instrument.TradingSymbol,
					)
				}
				if result != nil {
					b, _ := json.Marshal(result)
					fmt.Println(string(b))
				}
			}(cand)
		}
	}
}
