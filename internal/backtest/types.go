package backtest

import (
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

// Result holds the complete backtest output
type Result struct {
	Symbols   []string
	StartDate time.Time
	EndDate   time.Time
	Bars      int

	// Released are the ensemble signals that passed every gate
	Released []core.Signal
	// Trades resolve the released signals
	Trades []Trade
	// StrategyTrades resolve each strategy's own signals and feed the weights
	StrategyTrades map[string][]Trade
	Rejections     map[core.Reason]int
	Weights        map[string]float64

	Stats         Stats
	StrategyStats map[string]Stats
}

// Exit names how a trade left the market
type Exit string

const (
	ExitOpen    Exit = ""
	ExitStop    Exit = "stop"
	ExitTarget  Exit = "target"
	ExitExpired Exit = "expired"
)

// Trade is a signal followed from entry until its stop, its target or the
// holding limit.
type Trade struct {
	Signal    core.Signal
	ExitPrice float64
	ExitAt    time.Time
	Exit      Exit
	Return    float64 // Fractional, positive when the trade made money
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // Percentage of profitable trades
	TotalReturn   float64 // Net return percentage
	AvgReturn     float64 // Mean per-trade return percentage
	MaxDrawdown   float64 // Largest peak-to-trough decline, percent
	SharpeRatio   float64 // Per-trade mean / stdev, capped
	ProfitFactor  float64 // Gross profit / gross loss, capped
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Return > 0
}

// IsClosed returns true if the trade has an exit
func (t Trade) IsClosed() bool {
	return t.Exit != ExitOpen
}
