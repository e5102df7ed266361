package ma_crossover

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// MACrossover implements a moving average crossover strategy
type MACrossover struct {
	fastPeriod   int
	slowPeriod   int
	stopLookback int
	formingBand  float64
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int) *MACrossover {
	return &MACrossover{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		stopLookback: 10,
		formingBand:  0.002,
	}
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

func (m *MACrossover) MinCandles() int {
	return m.slowPeriod + 10 // Extra buffer
}

func (m *MACrossover) Init(cfg strategy.Config) error {
	m.fastPeriod = strategy.IntParam(cfg.Params, "fast_period", m.fastPeriod)
	m.slowPeriod = strategy.IntParam(cfg.Params, "slow_period", m.slowPeriod)
	if m.fastPeriod <= 0 || m.slowPeriod <= m.fastPeriod {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ma_crossover: fast %d must be below slow %d", m.fastPeriod, m.slowPeriod))
	}
	return nil
}

func (m *MACrossover) Detect(bars []core.Candle) strategy.Setup {
	if len(bars) < m.slowPeriod+1 {
		return strategy.None()
	}

	prices := indicator.Closes(bars)
	fastMA := indicator.SMA(prices, m.fastPeriod)
	slowMA := indicator.SMA(prices, m.slowPeriod)

	prevFast, currFast, ok := indicator.LastTwo(fastMA)
	if !ok {
		return strategy.None()
	}
	prevSlow, currSlow, ok := indicator.LastTwo(slowMA)
	if !ok {
		return strategy.None()
	}

	window := bars[max(0, len(bars)-m.stopLookback):]
	meta := map[string]any{
		"fast_ma": currFast,
		"slow_ma": currSlow,
	}

	// Golden Cross: fast crosses above slow
	if prevFast <= prevSlow && currFast > currSlow {
		meta["type"] = "golden_cross"
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionBuy,
			Stop:        indicator.Lowest(window),
			Strength:    m.strength(currFast, currSlow),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Golden Cross: MA%d (%.2f) crossed above MA%d (%.2f)", m.fastPeriod, currFast, m.slowPeriod, currSlow),
			Metadata:    meta,
		}
	}

	// Death Cross: fast crosses below slow
	if prevFast >= prevSlow && currFast < currSlow {
		meta["type"] = "death_cross"
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionSell,
			Stop:        indicator.Highest(window),
			Strength:    m.strength(currFast, currSlow),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Death Cross: MA%d (%.2f) crossed below MA%d (%.2f)", m.fastPeriod, currFast, m.slowPeriod, currSlow),
			Metadata:    meta,
		}
	}

	if math.Abs(currFast-currSlow)/currSlow <= m.formingBand {
		return strategy.Forming("moving averages converging")
	}
	return strategy.None()
}

// strength grows with the separation of the averages; 2% is full strength
func (m *MACrossover) strength(fast, slow float64) float64 {
	return indicator.Clamp(math.Abs(fast-slow)/slow*50, 0, 1)
}
