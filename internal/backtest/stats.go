package backtest

import (
	"github.com/newthinker/signalcore/internal/performance"
)

// CalculateStats summarizes trades with the same metrics the weight
// calculator uses. Open trades count toward TotalTrades only.
func CalculateStats(trades []Trade) Stats {
	if len(trades) == 0 {
		return Stats{}
	}

	closed := make([]performance.Trade, 0, len(trades))
	var totalReturn float64
	var winning int
	for _, t := range trades {
		if !t.IsClosed() {
			continue
		}
		closed = append(closed, performance.Trade{
			Strategy: t.Signal.Strategy,
			Symbol:   t.Signal.Symbol,
			PnL:      t.Return,
			OpenedAt: t.Signal.GeneratedAt,
			ClosedAt: t.ExitAt,
		})
		totalReturn += t.Return
		if t.IsWin() {
			winning++
		}
	}

	stats := Stats{TotalTrades: len(trades)}
	if len(closed) == 0 {
		return stats
	}

	// recency is irrelevant for a finished run
	m := performance.ComputeMetrics(closed, closed[len(closed)-1].ClosedAt, 0)
	stats.WinningTrades = winning
	stats.LosingTrades = len(closed) - winning
	stats.WinRate = m.WinRate * 100
	stats.TotalReturn = totalReturn * 100
	stats.AvgReturn = m.AvgReturn * 100
	stats.MaxDrawdown = m.MaxDrawdown * 100
	stats.SharpeRatio = m.SharpeProxy
	stats.ProfitFactor = m.ProfitFactor
	return stats
}
