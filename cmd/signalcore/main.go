package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "signalcore",
	Short: "SignalCore - consensus trading signal engine",
	Long: `SignalCore turns OHLCV candles into risk-managed trading signals.
Pattern detectors vote, an ensemble weights the votes by recent performance,
and only signals that clear the risk and loss-averse gates are released.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
