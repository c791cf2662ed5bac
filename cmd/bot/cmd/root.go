package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bot",
	Short: "Intraday laddered averaging bot for Indian equities",
	Long: `bot runs a single-instrument intraday session that accumulates lots on
the way down and sells them back one rung at a time on the way up.

It talks to the Shoonya (Noren) or Zerodha Kite gateway, simulates fills
in DRY_RUN mode, and flattens everything before the market closes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
