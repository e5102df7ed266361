package liquidity_sweep

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// LiquiditySweep fires when price runs the stops resting beyond a cluster of
// equal swing lows (or highs) and closes back inside on a rejection wick.
type LiquiditySweep struct {
	lookback      int
	swingStrength int
	tolerance     float64
	wickRatio     float64
	formingPct    float64
}

// New creates a liquidity sweep strategy. tolerance is the fractional
// distance within which two swing points count as equal.
func New(lookback int, tolerance float64) *LiquiditySweep {
	return &LiquiditySweep{
		lookback:      lookback,
		swingStrength: 2,
		tolerance:     tolerance,
		wickRatio:     0.4,
		formingPct:    0.005,
	}
}

func (l *LiquiditySweep) Name() string {
	return "liquidity_sweep"
}

func (l *LiquiditySweep) Description() string {
	return fmt.Sprintf("Liquidity Sweep of equal highs/lows (lookback %d, tolerance %.2f%%)", l.lookback, l.tolerance*100)
}

func (l *LiquiditySweep) MinCandles() int {
	return 50
}

func (l *LiquiditySweep) Init(cfg strategy.Config) error {
	l.lookback = strategy.IntParam(cfg.Params, "lookback", l.lookback)
	l.tolerance = strategy.FloatParam(cfg.Params, "tolerance", l.tolerance)
	l.wickRatio = strategy.FloatParam(cfg.Params, "wick_ratio", l.wickRatio)
	if l.lookback < 2*l.swingStrength+3 || l.tolerance < 0 || l.wickRatio <= 0 || l.wickRatio >= 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("liquidity_sweep: lookback %d, tolerance %.4f, wick_ratio %.2f", l.lookback, l.tolerance, l.wickRatio))
	}
	return nil
}

func (l *LiquiditySweep) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, l.evaluate)
}

func (l *LiquiditySweep) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < 2*l.swingStrength+3 {
		return strategy.None()
	}
	start := max(0, n-1-l.lookback)
	window := bars[start : n-1]
	c := bars[n-1]
	rng := c.Range()

	if level, last, ok := l.cluster(indicator.SwingLows(window, l.swingStrength), math.Min); ok && resting(window[last+1:], func(x core.Candle) bool { return x.Low < level }) {
		if rng > 0 && c.Low < level && c.Close > level && c.LowerWick()/rng >= l.wickRatio {
			return l.setup(core.ActionBuy, level, c.Low, c.LowerWick()/rng, bars)
		}
		if c.Low >= level && (c.Low-level)/level <= l.formingPct {
			return strategy.Forming(fmt.Sprintf("resting liquidity below %.2f", level))
		}
	}

	if level, last, ok := l.cluster(indicator.SwingHighs(window, l.swingStrength), math.Max); ok && resting(window[last+1:], func(x core.Candle) bool { return x.High > level }) {
		if rng > 0 && c.High > level && c.Close < level && c.UpperWick()/rng >= l.wickRatio {
			return l.setup(core.ActionSell, level, c.High, c.UpperWick()/rng, bars)
		}
		if c.High <= level && (level-c.High)/level <= l.formingPct {
			return strategy.Forming(fmt.Sprintf("resting liquidity above %.2f", level))
		}
	}

	return strategy.None()
}

func (l *LiquiditySweep) setup(action core.Action, level, extreme, wick float64, bars []core.Candle) strategy.Setup {
	side := "lows"
	if action == core.ActionSell {
		side = "highs"
	}
	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        extreme,
		Strength:    indicator.Clamp((wick-l.wickRatio)/(1-l.wickRatio), 0, 1),
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Swept equal %s at %.2f and reversed", side, level),
		Metadata: map[string]any{
			"liquidity_level": level,
			"sweep_extreme":   extreme,
		},
	}
}

// cluster returns the most recent pair of pivots lying within tolerance of
// each other. level is their outer extreme; last is the window index of the
// newer pivot.
func (l *LiquiditySweep) cluster(pivots []indicator.Pivot, outer func(a, b float64) float64) (level float64, last int, ok bool) {
	for j := len(pivots) - 1; j > 0; j-- {
		for i := j - 1; i >= 0; i-- {
			a, b := pivots[i].Price, pivots[j].Price
			if math.Abs(a-b)/a <= l.tolerance {
				return outer(a, b), pivots[j].Index, true
			}
		}
	}
	return 0, 0, false
}

// resting reports that no bar has already run the level
func resting(bars []core.Candle, ran func(core.Candle) bool) bool {
	for _, x := range bars {
		if ran(x) {
			return false
		}
	}
	return true
}
