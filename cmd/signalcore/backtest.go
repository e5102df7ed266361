package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/newthinker/signalcore/internal/app"
	"github.com/newthinker/signalcore/internal/backtest"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/feed"
)

var (
	backtestData     string
	backtestUser     string
	backtestMaxHold  int
	backtestRefresh  int
	backtestShowList bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest the pipeline against a CSV candle file",
	Long: `Replay historical candles bar by bar, resolve every strategy signal and
every released signal against the bars that follow, and report win rates and
returns. Resolved strategy trades feed the performance weights as the replay
progresses.`,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestData, "data", "", "CSV candle file (required)")
	backtestCmd.Flags().StringVar(&backtestUser, "user", "", "account whose risk settings apply (defaults to account.user)")
	backtestCmd.Flags().IntVar(&backtestMaxHold, "max-hold", backtest.DefaultConfig().MaxHoldBars, "bars before an unresolved signal expires (0 holds forever)")
	backtestCmd.Flags().IntVar(&backtestRefresh, "refresh-every", backtest.DefaultConfig().RefreshEvery, "bars between weight refreshes (0 disables)")
	backtestCmd.Flags().BoolVar(&backtestShowList, "signals", false, "list every released signal")

	backtestCmd.MarkFlagRequired("data")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	f, err := os.Open(backtestData)
	if err != nil {
		return fmt.Errorf("opening candles: %w", err)
	}
	defer f.Close()
	series, err := feed.LoadCSV(f)
	if err != nil {
		return fmt.Errorf("reading candles: %w", err)
	}

	user := backtestUser
	if user == "" {
		user = cfg.Account.User
	}

	svc, err := app.New(cfg, app.Dependencies{}, log)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	bt, err := backtest.New(svc, backtest.Config{
		User:         user,
		MaxHoldBars:  backtestMaxHold,
		RefreshEvery: backtestRefresh,
	}, log)
	if err != nil {
		return err
	}

	result, err := bt.Run(context.Background(), series)
	if err != nil {
		return err
	}

	fmt.Println("=== SignalCore Backtest ===")
	fmt.Printf("Symbols:  %v\n", result.Symbols)
	fmt.Printf("Period:   %s to %s (%d bars)\n",
		result.StartDate.Format("2006-01-02 15:04"), result.EndDate.Format("2006-01-02 15:04"), result.Bars)
	fmt.Printf("Released: %d\n", len(result.Released))
	fmt.Println()

	s := result.Stats
	fmt.Printf("Trades:       %d (%d won, %d lost)\n", s.TotalTrades, s.WinningTrades, s.LosingTrades)
	fmt.Printf("Win rate:     %.1f%%\n", s.WinRate)
	fmt.Printf("Total return: %.2f%%\n", s.TotalReturn)
	fmt.Printf("Avg return:   %.2f%%\n", s.AvgReturn)
	fmt.Printf("Max drawdown: %.2f%%\n", s.MaxDrawdown)
	fmt.Printf("Sharpe:       %.2f\n", s.SharpeRatio)
	fmt.Printf("Profit factor: %.2f\n", s.ProfitFactor)
	fmt.Println()

	names := make([]string, 0, len(result.StrategyStats))
	for name := range result.StrategyStats {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Strategy", "Trades", "Win rate", "Return", "Weight")
	for _, name := range names {
		st := result.StrategyStats[name]
		table.Append(
			name,
			fmt.Sprintf("%d", st.TotalTrades),
			fmt.Sprintf("%.1f%%", st.WinRate),
			fmt.Sprintf("%.2f%%", st.TotalReturn),
			fmt.Sprintf("%.4f", result.Weights[name]),
		)
	}
	table.Render()

	if len(result.Rejections) > 0 {
		fmt.Println()
		reasons := make([]string, 0, len(result.Rejections))
		for r := range result.Rejections {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		rejections := tablewriter.NewWriter(os.Stdout)
		rejections.Header("Rejection", "Count")
		for _, r := range reasons {
			rejections.Append(r, fmt.Sprintf("%d", result.Rejections[core.Reason(r)]))
		}
		rejections.Render()
	}

	if backtestShowList {
		fmt.Println()
		printSignals(result.Released)
	}
	return nil
}
