package risk

import (
	"math"
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestPositionSize(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		riskPct  float64
		stop     float64
		volScale float64
		want     float64
	}{
		{"capped at ten percent", 10000, 0.01, 0.02, 1, 1000},
		{"below cap", 10000, 0.01, 0.2, 1, 500},
		{"volatility scaled", 10000, 0.01, 0.2, 2, 250},
		{"zero balance", 0, 0.01, 0.02, 1, 0},
		{"negative risk", 10000, -0.01, 0.02, 1, 0},
		{"zero stop", 10000, 0.01, 0, 1, 0},
		{"zero volatility", 10000, 0.01, 0.02, 0, 0},
		{"nan stop", 10000, 0.01, math.NaN(), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PositionSize(tt.balance, tt.riskPct, tt.stop, tt.volScale), 1e-9)
		})
	}
}

func TestPositionSize_NeverExceedsCap(t *testing.T) {
	for _, stop := range []float64{1e-6, 0.001, 0.01, 0.05, 0.5, 5} {
		size := PositionSize(25000, 0.02, stop, 1)
		assert.LessOrEqual(t, size, 25000*MaxPositionFraction+1e-9, "stop %f", stop)
	}
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name string
		p, b float64
		want float64
	}{
		{"positive edge", 0.6, 2, 0.4},
		{"negative edge clamps to zero", 0.3, 1, 0},
		{"certain win clamps to one", 1, 1, 1},
		{"zero payoff", 0.9, 0, 0},
		{"negative payoff", 0.9, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, KellyFraction(tt.p, tt.b), 1e-9)
		})
	}
}

func TestRiskParityAllocate(t *testing.T) {
	signals := []*core.Signal{
		{Strategy: "range_breakout", Confidence: 0.8},
		{Strategy: "order_block", Confidence: 0.5},
		{Strategy: "order_block", Confidence: 0.3},
		nil,
	}

	alloc := RiskParityAllocate(signals)
	assert.Len(t, alloc, 2)
	assert.InDelta(t, 5.0/7.0, alloc["range_breakout"], 1e-9)
	assert.InDelta(t, 2.0/7.0, alloc["order_block"], 1e-9)

	var sum float64
	for _, w := range alloc {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRiskParityAllocate_FullConfidenceBounded(t *testing.T) {
	alloc := RiskParityAllocate([]*core.Signal{
		{Strategy: "a", Confidence: 1},
		{Strategy: "b", Confidence: 0},
	})
	// 1/0.01 against 1/1
	assert.InDelta(t, 100.0/101.0, alloc["a"], 1e-9)
	assert.InDelta(t, 1.0/101.0, alloc["b"], 1e-9)
}

func TestRiskParityAllocate_Empty(t *testing.T) {
	assert.Empty(t, RiskParityAllocate(nil))
}

func TestSortedStrategies(t *testing.T) {
	names := SortedStrategies(map[string]float64{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
