package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/signalcore/internal/app"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/performance"
	"github.com/newthinker/signalcore/internal/storage/signal"
)

// TradeRecorder accepts closed strategy trades
type TradeRecorder interface {
	Record(t performance.Trade)
}

// Config tunes a replay
type Config struct {
	// User whose account and profile gate the releases
	User string
	// MaxHoldBars expires signals that reach neither level; zero holds forever
	MaxHoldBars int
	// RefreshEvery recomputes strategy weights after this many candles
	RefreshEvery int
}

// DefaultConfig returns the replay defaults
func DefaultConfig() Config {
	return Config{
		User:         "default",
		MaxHoldBars:  48,
		RefreshEvery: 24,
	}
}

// Backtester replays historical candles through the signal pipeline bar by
// bar, resolving the signals it produces against the bars that follow.
type Backtester struct {
	svc      *app.Service
	recorder TradeRecorder
	cfg      Config
	logger   *zap.Logger
}

// New creates a Backtester over svc. Strategy trades are recorded into the
// service's trade history, which must accept them.
func New(svc *app.Service, cfg Config, logger ...*zap.Logger) (*Backtester, error) {
	recorder, ok := svc.Trades().(TradeRecorder)
	if !ok {
		return nil, errors.New("trade history does not accept recorded trades")
	}
	if cfg.User == "" {
		cfg.User = DefaultConfig().User
	}

	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	return &Backtester{
		svc:      svc,
		recorder: recorder,
		cfg:      cfg,
		logger:   l,
	}, nil
}

type step struct {
	symbol string
	candle core.Candle
}

// merge interleaves every series into one time-ordered stream
func merge(series map[string][]core.Candle) []step {
	var steps []step
	for symbol, candles := range series {
		for _, c := range candles {
			steps = append(steps, step{symbol: symbol, candle: c})
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		if !steps[i].candle.Time.Equal(steps[j].candle.Time) {
			return steps[i].candle.Time.Before(steps[j].candle.Time)
		}
		return steps[i].symbol < steps[j].symbol
	})
	return steps
}

// Run replays the series. The service clock follows the candle being
// replayed.
func (b *Backtester) Run(ctx context.Context, series map[string][]core.Candle) (*Result, error) {
	steps := merge(series)
	if len(steps) == 0 {
		return nil, core.WrapError(core.ErrInsufficientData, errors.New("no historical data available"))
	}

	current := steps[0].candle.Time
	b.svc.SetClock(func() time.Time { return current })

	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	result := &Result{
		Symbols:        symbols,
		StartDate:      steps[0].candle.Time,
		EndDate:        steps[len(steps)-1].candle.Time,
		StrategyTrades: make(map[string][]Trade),
		Rejections:     make(map[core.Reason]int),
	}

	perStrategy := NewResolver(b.cfg.MaxHoldBars)
	released := NewResolver(b.cfg.MaxHoldBars)
	last := make(map[string]core.Candle, len(series))
	store := b.svc.Signals()

	for _, st := range steps {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		current = st.candle.Time
		last[st.symbol] = st.candle

		for _, t := range perStrategy.OnCandle(st.symbol, st.candle) {
			b.recorder.Record(performance.Trade{
				Strategy: t.Signal.Strategy,
				Symbol:   t.Signal.Symbol,
				PnL:      t.Return,
				OpenedAt: t.Signal.GeneratedAt,
				ClosedAt: t.ExitAt,
			})
			result.StrategyTrades[t.Signal.Strategy] = append(result.StrategyTrades[t.Signal.Strategy], t)
		}
		for _, t := range released.OnCandle(st.symbol, st.candle) {
			outcome := signal.Outcome{Won: t.IsWin(), Return: t.Return, ResolvedAt: t.ExitAt}
			if err := store.RecordOutcome(ctx, t.Signal.ID, outcome); err != nil {
				b.logger.Warn("failed to record outcome", zap.String("id", t.Signal.ID), zap.Error(err))
			}
			result.Trades = append(result.Trades, t)
		}

		if err := b.svc.Push(st.symbol, st.candle); err != nil {
			b.logger.Debug("candle skipped", zap.String("symbol", st.symbol), zap.Error(err))
			continue
		}
		result.Bars++

		report, err := b.svc.EvaluateFor(ctx, b.cfg.User, st.symbol)
		if err != nil {
			b.logger.Warn("evaluation failed",
				zap.String("symbol", st.symbol),
				zap.Time("at", st.candle.Time),
				zap.Error(err),
			)
		}
		for _, o := range report.Outcomes {
			if o.Voted() && o.Signal != nil {
				perStrategy.Open(*o.Signal)
			}
		}
		if report.Released() {
			released.Open(*report.Signal)
			result.Released = append(result.Released, *report.Signal)
		} else if report.Reason != core.ReasonNone {
			result.Rejections[report.Reason]++
		}

		if b.cfg.RefreshEvery > 0 && result.Bars%b.cfg.RefreshEvery == 0 {
			if _, err := b.svc.RefreshWeights(ctx); err != nil {
				return nil, fmt.Errorf("refresh weights: %w", err)
			}
		}
	}

	result.Trades = append(result.Trades, released.Remaining(last)...)
	for _, t := range perStrategy.Remaining(last) {
		result.StrategyTrades[t.Signal.Strategy] = append(result.StrategyTrades[t.Signal.Strategy], t)
	}

	if _, err := b.svc.RefreshWeights(ctx); err != nil {
		return nil, fmt.Errorf("refresh weights: %w", err)
	}
	result.Weights = b.svc.StrategyWeights()

	result.Stats = CalculateStats(result.Trades)
	result.StrategyStats = make(map[string]Stats, len(result.StrategyTrades))
	for name, trades := range result.StrategyTrades {
		result.StrategyStats[name] = CalculateStats(trades)
	}

	b.logger.Info("backtest complete",
		zap.Strings("symbols", symbols),
		zap.Int("bars", result.Bars),
		zap.Int("released", len(result.Released)),
		zap.Int("trades", result.Stats.TotalTrades),
	)
	return result, nil
}
