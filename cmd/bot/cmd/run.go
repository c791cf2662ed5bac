package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ladder-trading-bot/internal/broker"
	"ladder-trading-bot/internal/broker/brokerobs"
	"ladder-trading-bot/internal/engine"
	"ladder-trading-bot/internal/engine/engineobs"
	"ladder-trading-bot/internal/journal"
	"ladder-trading-bot/internal/logger"
	"ladder-trading-bot/internal/metrics"
	"ladder-trading-bot/internal/store"
	"ladder-trading-bot/internal/trace"
	"ladder-trading-bot/internal/tradelog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one trading session for the configured instrument",
	Long: `Run logs in to the configured gateway, opens the initial position and
drives the ladder until profit target exhaustion, stop loss or the session
timeout. The session result is printed as JSON on exit.

Example:
  bot run --config config.yaml`,
	RunE: runRun,
}

var runConfigPath string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "config.yaml", "path to config file")
}

func runRun(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := store.LoadConfig(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if cfg.DebugOn {
		_ = logger.InitWithConfig(logger.Config{Level: "DEBUG", Format: "json", Debug: true})
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := trace.Init(); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer trace.Shutdown(context.Background())

	if v := os.Getenv("LADDER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		_ = tradelog.CompressOlder(n)
	}

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
				logger.Warn(ctx, "Metrics server stopped", "error", err)
			}
		}()
	}

	brk, err := broker.FromConfig(cfg)
	if err != nil {
		return err
	}
	brk = brokerobs.Wrap(brk)

	var jnl journal.Journal
	if cfg.Journal.Path != "" {
		sj, err := journal.NewSQLite(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer sj.Close()
		jnl = sj
	}

	if cfg.Mode == "DRY_RUN" {
		logger.Info(ctx, "DRY_RUN mode: orders are simulated")
	}

	eng, err := engine.New(cfg, brk, jnl)
	if err != nil {
		return err
	}
	eng = engineobs.Wrap(eng)

	result, err := eng.Run(ctx)
	if result != nil {
		b, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(b))
	}
	return err
}
