// Package performance turns closed trade history into per-strategy ensemble
// weights.
package performance

import (
	"math"
	"sort"
	"time"
)

// Trade is one closed trade attributed to a strategy. PnL is the fractional
// return of the trade (0.02 = +2%).
type Trade struct {
	Strategy string
	Symbol   string
	PnL      float64
	OpenedAt time.Time
	ClosedAt time.Time
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// Metrics holds performance statistics over a trailing window
type Metrics struct {
	WinRate           float64 // fraction of profitable trades
	AvgReturn         float64 // mean per-trade return
	SharpeProxy       float64 // mean / stdev of per-trade returns
	MaxDrawdown       float64 // largest peak-to-trough decline of the running balance
	ProfitFactor      float64 // gross profit / gross loss, capped
	RecentPerformance float64 // mean return of trades closed in the recency window
	WinLossRatio      float64 // average win / average loss, capped like ProfitFactor
	TotalTrades       int
}

// Caps keep a handful of lucky trades from producing unbounded ratios.
const (
	ProfitFactorCap = 10.0
	SharpeCap       = 5.0
)

// ComputeMetrics computes performance statistics from closed trades.
// Trades closed within recentDays of now feed RecentPerformance.
func ComputeMetrics(trades []Trade, now time.Time, recentDays int) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ClosedAt.Before(sorted[j].ClosedAt) })

	returns := make([]float64, len(sorted))
	var wins, losses int
	var grossProfit, grossLoss, recentSum float64
	var recentCount int
	recentSince := now.AddDate(0, 0, -recentDays)

	for i, t := range sorted {
		returns[i] = t.PnL
		if t.IsWin() {
			wins++
			grossProfit += t.PnL
		} else {
			losses++
			grossLoss -= t.PnL
		}
		if !t.ClosedAt.Before(recentSince) {
			recentSum += t.PnL
			recentCount++
		}
	}

	m := Metrics{
		WinRate:      float64(wins) / float64(len(sorted)),
		AvgReturn:    mean(returns),
		SharpeProxy:  sharpeProxy(returns),
		MaxDrawdown:  MaxDrawdown(returns),
		ProfitFactor: profitFactor(grossProfit, grossLoss),
		TotalTrades:  len(sorted),
	}
	if recentCount > 0 {
		m.RecentPerformance = recentSum / float64(recentCount)
	}
	if wins > 0 && losses > 0 {
		m.WinLossRatio = profitFactor(grossProfit/float64(wins), grossLoss/float64(losses))
	} else if wins > 0 {
		m.WinLossRatio = ProfitFactorCap
	}
	return m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sharpeProxy is mean / sample stdev, without annualization or a risk-free
// rate. Identical returns have no dispersion and map to the cap.
func sharpeProxy(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - m) * (r - m)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))
	if stdDev == 0 {
		switch {
		case m > 0:
			return SharpeCap
		case m < 0:
			return -SharpeCap
		default:
			return 0
		}
	}
	return math.Max(-SharpeCap, math.Min(SharpeCap, m/stdDev))
}

// MaxDrawdown finds the largest peak-to-trough decline of a balance that
// compounds each return, starting from 1.
func MaxDrawdown(returns []float64) float64 {
	var maxDD float64
	peak := 1.0
	balance := 1.0

	for _, r := range returns {
		balance *= 1 + r
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			if dd := (peak - balance) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

func profitFactor(grossProfit, grossLoss float64) float64 {
	switch {
	case grossLoss <= 0 && grossProfit > 0:
		return ProfitFactorCap
	case grossLoss <= 0:
		return 0
	default:
		return math.Min(grossProfit/grossLoss, ProfitFactorCap)
	}
}
