package performance

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds weight calculation settings
type Config struct {
	LookbackDays int
	RecentDays   int
	MinTrades    int

	SharpeWeight       float64
	WinRateWeight      float64
	RecentWeight       float64
	ProfitFactorWeight float64

	// Temperature sharpens the exponential transform from score to weight.
	Temperature float64
	// MinWeight is a floor for every strategy that cleared MinTrades.
	MinWeight float64
}

// DefaultConfig returns the standard weighting
func DefaultConfig() Config {
	return Config{
		LookbackDays:       30,
		RecentDays:         7,
		MinTrades:          5,
		SharpeWeight:       0.4,
		WinRateWeight:      0.3,
		RecentWeight:       0.2,
		ProfitFactorWeight: 0.1,
		Temperature:        3.0,
		MinWeight:          0,
	}
}

// Calculator derives ensemble weights from closed trade history and caches
// the latest result.
type Calculator struct {
	cfg      Config
	provider TradeHistoryProvider
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	weights map[string]float64
	metrics map[string]Metrics
	scores  map[string]float64
	updated time.Time
}

// New creates a weight calculator
func New(cfg Config, provider TradeHistoryProvider, logger ...*zap.Logger) *Calculator {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	def := DefaultConfig()
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = def.LookbackDays
	}
	if cfg.RecentDays <= 0 {
		cfg.RecentDays = def.RecentDays
	}
	if cfg.MinTrades <= 0 {
		cfg.MinTrades = def.MinTrades
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.SharpeWeight+cfg.WinRateWeight+cfg.RecentWeight+cfg.ProfitFactorWeight <= 0 {
		cfg.SharpeWeight, cfg.WinRateWeight = def.SharpeWeight, def.WinRateWeight
		cfg.RecentWeight, cfg.ProfitFactorWeight = def.RecentWeight, def.ProfitFactorWeight
	}
	return &Calculator{
		cfg:      cfg,
		provider: provider,
		logger:   log,
		now:      time.Now,
		weights:  make(map[string]float64),
		metrics:  make(map[string]Metrics),
		scores:   make(map[string]float64),
	}
}

// SetClock overrides the clock used for the recency window
func (c *Calculator) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Score normalizes each metric to [0,1] and combines them. Strategies below
// MinTrades score 0.
func (c *Calculator) Score(m Metrics) float64 {
	if m.TotalTrades < c.cfg.MinTrades {
		return 0
	}
	sharpe := clamp01((m.SharpeProxy + 1) / 3)
	recent := clamp01((m.RecentPerformance + 0.05) / 0.10)
	pf := clamp01(m.ProfitFactor / 3)

	return c.cfg.SharpeWeight*sharpe +
		c.cfg.WinRateWeight*clamp01(m.WinRate) +
		c.cfg.RecentWeight*recent +
		c.cfg.ProfitFactorWeight*pf
}

// Weights converts scores into weights summing to 1. Positive scores go
// through exp(Temperature*score); non-positive scores get no weight. When no
// strategy scores above 0 every strategy gets an equal share.
func (c *Calculator) Weights(scores map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(scores))
	if len(scores) == 0 {
		return weights
	}

	var total float64
	for name, s := range scores {
		if s > 0 && !math.IsNaN(s) && !math.IsInf(s, 0) {
			weights[name] = math.Exp(c.cfg.Temperature * s)
			total += weights[name]
		} else {
			weights[name] = 0
		}
	}

	if total <= 0 {
		equal := 1 / float64(len(scores))
		for name := range weights {
			weights[name] = equal
		}
		return weights
	}

	for name := range weights {
		weights[name] /= total
	}
	if c.cfg.MinWeight > 0 {
		applyFloor(weights, scores, c.cfg.MinWeight)
	}
	return weights
}

// applyFloor lifts every scoring strategy to at least floor and takes the
// difference proportionally from those above it.
func applyFloor(weights, scores map[string]float64, floor float64) {
	var eligible int
	for _, s := range scores {
		if s > 0 {
			eligible++
		}
	}
	if eligible == 0 || floor*float64(eligible) >= 1 {
		return
	}

	var deficit, surplus float64
	for name, w := range weights {
		if scores[name] <= 0 {
			continue
		}
		if w < floor {
			deficit += floor - w
		} else {
			surplus += w - floor
		}
	}
	if deficit == 0 || surplus <= 0 {
		return
	}
	for name, w := range weights {
		if scores[name] <= 0 {
			continue
		}
		if w < floor {
			weights[name] = floor
		} else {
			weights[name] = floor + (w-floor)*(1-deficit/surplus)
		}
	}
}

// Refresh pulls trade history for every strategy and recomputes the cached
// weights. A provider failure for one strategy scores it 0.
func (c *Calculator) Refresh(ctx context.Context, strategies []string) (map[string]float64, error) {
	c.mu.RLock()
	now := c.now()
	c.mu.RUnlock()

	scores := make(map[string]float64, len(strategies))
	metrics := make(map[string]Metrics, len(strategies))
	for _, name := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trades, err := c.provider.ClosedTrades(ctx, name, c.cfg.LookbackDays)
		if err != nil {
			c.logger.Warn("trade history unavailable",
				zap.String("strategy", name),
				zap.Error(err),
			)
			scores[name] = 0
			continue
		}
		m := ComputeMetrics(trades, now, c.cfg.RecentDays)
		metrics[name] = m
		scores[name] = c.Score(m)
	}

	weights := c.Weights(scores)

	c.mu.Lock()
	c.weights = weights
	c.metrics = metrics
	c.scores = scores
	c.updated = now
	c.mu.Unlock()

	c.logger.Debug("strategy weights refreshed", zap.Int("strategies", len(weights)))
	return copyMap(weights), nil
}

// StrategyWeights returns a copy of the cached weights
func (c *Calculator) StrategyWeights() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMap(c.weights)
}

// Metrics returns the cached metrics for a strategy
func (c *Calculator) Metrics(strategy string) (Metrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.metrics[strategy]
	return m, ok
}

// Scores returns the cached scores, sorted by strategy name
func (c *Calculator) Scores() []NamedScore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]NamedScore, 0, len(c.scores))
	for name, s := range c.scores {
		out = append(out, NamedScore{Strategy: name, Score: s, Weight: c.weights[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

// UpdatedAt returns the time of the last refresh
func (c *Calculator) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// NamedScore pairs a strategy with its score and weight
type NamedScore struct {
	Strategy string
	Score    float64
	Weight   float64
}

// StartRefreshRoutine refreshes weights on interval until ctx is done.
func (c *Calculator) StartRefreshRoutine(ctx context.Context, interval time.Duration, strategies func() []string) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Refresh(ctx, strategies()); err != nil && ctx.Err() == nil {
					c.logger.Warn("weight refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
