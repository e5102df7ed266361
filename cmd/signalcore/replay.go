package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/signalcore/internal/app"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/feed"
	"github.com/newthinker/signalcore/internal/metrics"
	signalstore "github.com/newthinker/signalcore/internal/storage/signal"
)

var (
	replayData        string
	replayUser        string
	replayAsync       bool
	replayMetricsAddr string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a CSV candle file through the signal pipeline",
	Long: `Feed every candle of a CSV file through the full pipeline and print the
released signals, the strategy weights and the kill-switch state.

The clock follows candle time. By default each candle is evaluated as it
arrives. --async hands candles to the worker pool instead, which catches up
on every bar queued for a symbol.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayData, "data", "", "CSV candle file (defaults to feed.path)")
	replayCmd.Flags().StringVar(&replayUser, "user", "", "account whose risk settings apply (defaults to account.user)")
	replayCmd.Flags().BoolVar(&replayAsync, "async", false, "evaluate on the worker pool")
	replayCmd.Flags().StringVar(&replayMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while replaying")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	path := replayData
	if path == "" {
		path = cfg.Feed.Path
	}
	if path == "" {
		return fmt.Errorf("no candle file: pass --data or set feed.path")
	}
	user := replayUser
	if user == "" {
		user = cfg.Account.User
	}

	candles, err := feed.OpenCSV(path)
	if err != nil {
		return fmt.Errorf("opening candles: %w", err)
	}
	symbols := cfg.Symbols()
	if len(symbols) == 0 {
		symbols = candles.Symbols()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled || replayMetricsAddr != "" {
		reg = metrics.NewRegistry()
		if replayMetricsAddr != "" {
			serveMetrics(ctx, replayMetricsAddr, cfg.Metrics.Path, reg, log)
		}
	}

	svc, err := app.New(cfg, app.Dependencies{Metrics: reg}, log)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	// workers read the clock concurrently with the feed advancing it
	var current atomic.Int64
	svc.SetClock(func() time.Time { return time.Unix(0, current.Load()).UTC() })
	advance := func(at time.Time) {
		if n := at.UnixNano(); n > current.Load() {
			current.Store(n)
		}
	}

	var handler feed.Handler
	if replayAsync {
		if err := svc.Start(ctx); err != nil {
			return err
		}
		defer svc.Stop()
		handler = func(symbol string, c core.Candle) {
			advance(c.Time)
			if _, err := svc.Ingest(symbol, c); err != nil {
				log.Warn("candle rejected", zap.String("symbol", symbol), zap.Error(err))
			}
		}
	} else {
		handler = func(symbol string, c core.Candle) {
			advance(c.Time)
			if err := svc.Push(symbol, c); err != nil {
				log.Warn("candle rejected", zap.String("symbol", symbol), zap.Error(err))
				return
			}
			if _, err := svc.EvaluateFor(ctx, user, symbol); err != nil {
				log.Warn("evaluation failed", zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}

	poller := feed.NewPoller(feed.PollerConfig{
		Interval:        cfg.Feed.Interval,
		RatePerSecond:   cfg.Feed.RatePerSecond,
		Burst:           cfg.Feed.Burst,
		BreakerFailures: cfg.Feed.BreakerFailures,
		BreakerTimeout:  cfg.Feed.BreakerTimeout,
	}, candles, handler, log)
	poller.SetMetrics(reg)

	log.Info("replaying candles",
		zap.String("path", path),
		zap.Strings("symbols", symbols),
		zap.Bool("async", replayAsync),
	)
	if err := poller.Drain(ctx, symbols); err != nil {
		return fmt.Errorf("replay interrupted: %w", err)
	}
	if replayAsync {
		if err := svc.Drain(ctx); err != nil {
			return fmt.Errorf("waiting for workers: %w", err)
		}
	}

	weights, err := svc.RefreshWeights(ctx)
	if err != nil {
		return fmt.Errorf("refreshing weights: %w", err)
	}
	released, err := svc.Signals().List(ctx, signalstore.ListFilter{})
	if err != nil {
		return fmt.Errorf("listing signals: %w", err)
	}
	status, err := svc.CheckKillSwitch(ctx, user)
	if err != nil {
		log.Warn("kill switch check failed", zap.String("user", user), zap.Error(err))
	}

	fmt.Println("=== SignalCore Replay ===")
	fmt.Printf("File:    %s\n", path)
	fmt.Printf("Symbols: %v\n", symbols)
	fmt.Println()
	printSignals(released)
	fmt.Println()
	printWeights(weights, svc.Engine().Names())
	fmt.Println()
	fmt.Printf("Kill switch (%s): active=%t drawdown=%.2f%%\n", user, status.Active, status.Drawdown*100)

	return nil
}
