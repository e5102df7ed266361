// Package risk sizes positions, allocates between strategies and guards the
// account with a drawdown kill switch.
package risk

import (
	"math"
	"sort"

	"github.com/newthinker/signalcore/internal/core"
)

// MaxPositionFraction caps any single position at 10% of balance
const MaxPositionFraction = 0.10

// minVolatilityProxy keeps a full-confidence signal from taking an
// unbounded share in RiskParityAllocate.
const minVolatilityProxy = 0.01

// PositionSize returns the currency amount to commit so that hitting the
// stop loses riskPct of balance, scaled down by volatilityScale and capped
// at MaxPositionFraction of balance. Any non-positive input yields 0.
func PositionSize(balance, riskPct, stopDistance, volatilityScale float64) float64 {
	if !positive(balance) || !positive(riskPct) || !positive(stopDistance) || !positive(volatilityScale) {
		return 0
	}
	size := balance * riskPct / stopDistance / volatilityScale
	return math.Min(size, balance*MaxPositionFraction)
}

// KellyFraction returns the Kelly bet fraction for win probability p and
// win/loss payoff ratio b, clamped to [0, 1].
func KellyFraction(p, b float64) float64 {
	if !positive(b) || math.IsNaN(p) {
		return 0
	}
	f := (b*p - (1 - p)) / b
	return math.Max(0, math.Min(1, f))
}

// RiskParityAllocate weights each strategy inversely to its volatility
// proxy (1 - confidence). Weights sum to 1. When a strategy appears more
// than once its most confident signal counts.
func RiskParityAllocate(signals []*core.Signal) map[string]float64 {
	best := make(map[string]float64)
	for _, s := range signals {
		if s == nil || math.IsNaN(s.Confidence) {
			continue
		}
		if c, ok := best[s.Strategy]; !ok || s.Confidence > c {
			best[s.Strategy] = s.Confidence
		}
	}

	alloc := make(map[string]float64, len(best))
	if len(best) == 0 {
		return alloc
	}

	var total float64
	for name, conf := range best {
		vol := math.Max(1-math.Max(0, math.Min(1, conf)), minVolatilityProxy)
		alloc[name] = 1 / vol
		total += alloc[name]
	}
	for name := range alloc {
		alloc[name] /= total
	}
	return alloc
}

// SortedStrategies returns allocation keys in name order
func SortedStrategies(alloc map[string]float64) []string {
	names := make([]string, 0, len(alloc))
	for name := range alloc {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
