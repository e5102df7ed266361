package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/newthinker/signalcore/internal/config"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/logger"
	"github.com/newthinker/signalcore/internal/metrics"
)

// setup loads and validates configuration and builds the logger
func setup() (*config.Config, *zap.Logger, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.NewWithLevel(debug || cfg.Log.Development, level)
	if err != nil {
		return nil, nil, err
	}
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}
	return cfg, log, nil
}

// serveMetrics exposes the registry until ctx is done
func serveMetrics(ctx context.Context, addr, path string, reg *metrics.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, reg.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr), zap.String("path", path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

func printSignals(signals []core.Signal) {
	if len(signals) == 0 {
		fmt.Println("No signals released.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Symbol", "Action", "Entry", "Stop", "Target", "R:R", "Conf", "Size")
	for _, s := range signals {
		table.Append(
			s.GeneratedAt.Format("2006-01-02 15:04"),
			s.Symbol,
			string(s.Action),
			fmt.Sprintf("%.4f", s.Entry),
			fmt.Sprintf("%.4f", s.StopLoss),
			fmt.Sprintf("%.4f", s.TakeProfit),
			fmt.Sprintf("%.2f", s.RiskReward),
			fmt.Sprintf("%.2f", s.Confidence),
			fmt.Sprintf("%.2f", s.PositionSize),
		)
	}
	table.Render()
}

func printWeights(weights map[string]float64, names []string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Strategy", "Weight")
	for _, name := range names {
		table.Append(name, fmt.Sprintf("%.4f", weights[name]))
	}
	table.Render()
}
