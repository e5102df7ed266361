package performance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHistory struct{}

func (failingHistory) ClosedTrades(ctx context.Context, strategy string, lookbackDays int) ([]Trade, error) {
	return nil, errors.New("history store offline")
}

func sum(weights map[string]float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	return total
}

func TestCalculator_ScoreBelowMinTrades(t *testing.T) {
	c := New(DefaultConfig(), NewInMemoryTradeHistory())

	m := ComputeMetrics(tradesWithReturns("s", 0.05, 0.04, 0.06), now, 7)
	assert.Equal(t, 0.0, c.Score(m), "3 trades must score 0 regardless of quality")

	m = ComputeMetrics(tradesWithReturns("s", 0.05, 0.04, 0.06, 0.03, 0.02), now, 7)
	assert.Greater(t, c.Score(m), 0.0)
}

func TestCalculator_ScoreRange(t *testing.T) {
	c := New(DefaultConfig(), NewInMemoryTradeHistory())

	best := c.Score(Metrics{TotalTrades: 10, WinRate: 1, SharpeProxy: SharpeCap, RecentPerformance: 0.2, ProfitFactor: ProfitFactorCap})
	worst := c.Score(Metrics{TotalTrades: 10, WinRate: 0, SharpeProxy: -SharpeCap, RecentPerformance: -0.2, ProfitFactor: 0})

	assert.InDelta(t, 1.0, best, 1e-12)
	assert.Equal(t, 0.0, worst)
}

func TestCalculator_WeightsEqualFallback(t *testing.T) {
	c := New(DefaultConfig(), NewInMemoryTradeHistory())

	weights := c.Weights(map[string]float64{"a": 0, "b": -0.2, "c": 0, "d": 0})
	for name, w := range weights {
		assert.Equal(t, 0.25, w, name)
	}
}

func TestCalculator_WeightsExponential(t *testing.T) {
	c := New(DefaultConfig(), NewInMemoryTradeHistory())

	weights := c.Weights(map[string]float64{"a": 0.8, "b": 0.4, "c": 0})
	assert.InDelta(t, 1.0, sum(weights), 1e-12)
	assert.Equal(t, 0.0, weights["c"])
	assert.Greater(t, weights["a"], weights["b"])

	// exp(3*0.8) / exp(3*0.4) = exp(1.2)
	assert.InDelta(t, math.Exp(1.2), weights["a"]/weights["b"], 1e-9)
}

func TestCalculator_MinWeightFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinWeight = 0.2
	cfg.Temperature = 10
	c := New(cfg, NewInMemoryTradeHistory())

	weights := c.Weights(map[string]float64{"a": 0.9, "b": 0.1, "c": 0.1, "d": 0})
	assert.InDelta(t, 1.0, sum(weights), 1e-12)
	assert.InDelta(t, 0.2, weights["b"], 1e-12)
	assert.InDelta(t, 0.2, weights["c"], 1e-12)
	assert.InDelta(t, 0.6, weights["a"], 1e-12)
	assert.Equal(t, 0.0, weights["d"])
}

func TestCalculator_Refresh(t *testing.T) {
	history := NewInMemoryTradeHistory()
	history.SetClock(func() time.Time { return now })
	for _, tr := range tradesWithReturns("steady", 0.02, 0.03, -0.01, 0.02, 0.04, 0.01) {
		history.Record(tr)
	}
	for _, tr := range tradesWithReturns("sparse", 0.05, 0.05, 0.05) {
		history.Record(tr)
	}

	c := New(DefaultConfig(), history)
	c.SetClock(func() time.Time { return now })

	weights, err := c.Refresh(context.Background(), []string{"steady", "sparse", "idle"})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, weights["steady"], 1e-12)
	assert.Equal(t, 0.0, weights["sparse"])
	assert.Equal(t, 0.0, weights["idle"])
	assert.Equal(t, weights, c.StrategyWeights())
	assert.Equal(t, now, c.UpdatedAt())

	m, ok := c.Metrics("steady")
	require.True(t, ok)
	assert.Equal(t, 6, m.TotalTrades)

	scores := c.Scores()
	require.Len(t, scores, 3)
	assert.Equal(t, "idle", scores[0].Strategy)
}

func TestCalculator_RefreshProviderFailure(t *testing.T) {
	c := New(DefaultConfig(), failingHistory{})

	weights, err := c.Refresh(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 0.5, "b": 0.5}, weights)
}

func TestCalculator_StrategyWeightsIsCopy(t *testing.T) {
	c := New(DefaultConfig(), failingHistory{})
	_, err := c.Refresh(context.Background(), []string{"a"})
	require.NoError(t, err)

	w := c.StrategyWeights()
	w["a"] = 42
	assert.Equal(t, 1.0, c.StrategyWeights()["a"])
}

func TestCalculator_RefreshCanceled(t *testing.T) {
	c := New(DefaultConfig(), NewInMemoryTradeHistory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Refresh(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryTradeHistory_Lookback(t *testing.T) {
	h := NewInMemoryTradeHistory()
	h.SetClock(func() time.Time { return now })
	h.Record(Trade{Strategy: "a", PnL: 0.01, ClosedAt: now.AddDate(0, 0, -40)})
	h.Record(Trade{Strategy: "a", PnL: 0.02, ClosedAt: now.AddDate(0, 0, -5)})
	h.Record(Trade{Strategy: "b", PnL: 0.03, ClosedAt: now})

	trades, err := h.ClosedTrades(context.Background(), "a", 30)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 0.02, trades[0].PnL)
	assert.Equal(t, 3, h.Count())
}
