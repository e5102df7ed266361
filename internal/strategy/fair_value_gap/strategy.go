package fair_value_gap

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

type gap struct {
	index  int
	bottom float64
	top    float64
}

// FairValueGap fires when price trades back into an untested three-candle
// imbalance and closes back out of it on the side it came from.
type FairValueGap struct {
	lookback  int
	minGapPct float64
	minAge    int
	atrPeriod int
}

// New creates a fair value gap strategy
func New(lookback int, minGapPct float64) *FairValueGap {
	return &FairValueGap{
		lookback:  lookback,
		minGapPct: minGapPct,
		minAge:    2,
		atrPeriod: 14,
	}
}

func (f *FairValueGap) Name() string {
	return "fair_value_gap"
}

func (f *FairValueGap) Description() string {
	return fmt.Sprintf("Fair Value Gap fill and rejection (lookback %d, gap >= %.2f%%)", f.lookback, f.minGapPct*100)
}

func (f *FairValueGap) MinCandles() int {
	return 50
}

func (f *FairValueGap) Init(cfg strategy.Config) error {
	f.lookback = strategy.IntParam(cfg.Params, "lookback", f.lookback)
	f.minGapPct = strategy.FloatParam(cfg.Params, "min_gap_pct", f.minGapPct)
	if f.lookback <= f.minAge+2 || f.minGapPct < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("fair_value_gap: lookback %d, min_gap_pct %.4f", f.lookback, f.minGapPct))
	}
	return nil
}

func (f *FairValueGap) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, f.evaluate)
}

func (f *FairValueGap) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < f.minAge+3 {
		return strategy.None()
	}
	c := bars[n-1]
	atr := indicator.LastATR(bars, f.atrPeriod)

	if g, ok := f.bullishGap(bars); ok {
		if c.Low <= g.top && c.Close > g.top {
			return f.setup(core.ActionBuy, g, math.Min(g.bottom, c.Low), (g.top-c.Low)/(g.top-g.bottom), bars)
		}
		if atr > 0 && c.Low > g.top && c.Low-g.top <= atr {
			return strategy.Forming(fmt.Sprintf("approaching bullish gap %.2f-%.2f", g.bottom, g.top))
		}
	}

	if g, ok := f.bearishGap(bars); ok {
		if c.High >= g.bottom && c.Close < g.bottom {
			return f.setup(core.ActionSell, g, math.Max(g.top, c.High), (c.High-g.bottom)/(g.top-g.bottom), bars)
		}
		if atr > 0 && c.High < g.bottom && g.bottom-c.High <= atr {
			return strategy.Forming(fmt.Sprintf("approaching bearish gap %.2f-%.2f", g.bottom, g.top))
		}
	}

	return strategy.None()
}

func (f *FairValueGap) setup(action core.Action, g gap, stop, fill float64, bars []core.Candle) strategy.Setup {
	side := "bullish"
	if action == core.ActionSell {
		side = "bearish"
	}
	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        stop,
		Strength:    indicator.Clamp(fill, 0, 1),
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Filled and rejected %s gap %.2f-%.2f", side, g.bottom, g.top),
		Metadata: map[string]any{
			"gap_bottom": g.bottom,
			"gap_top":    g.top,
			"gap_age":    len(bars) - 1 - g.index,
		},
	}
}

// bullishGap finds the most recent gap where the third candle's low sits
// above the first candle's high and no later bar has traded back into it.
func (f *FairValueGap) bullishGap(bars []core.Candle) (gap, bool) {
	n := len(bars)
	for i := n - 1 - f.minAge; i >= max(2, n-f.lookback); i-- {
		bottom, top := bars[i-2].High, bars[i].Low
		if top <= bottom || (top-bottom)/bottom < f.minGapPct {
			continue
		}
		if untouched(bars[i+1:n-1], func(x core.Candle) bool { return x.Low <= top }) {
			return gap{index: i, bottom: bottom, top: top}, true
		}
	}
	return gap{}, false
}

func (f *FairValueGap) bearishGap(bars []core.Candle) (gap, bool) {
	n := len(bars)
	for i := n - 1 - f.minAge; i >= max(2, n-f.lookback); i-- {
		bottom, top := bars[i].High, bars[i-2].Low
		if top <= bottom || (top-bottom)/bottom < f.minGapPct {
			continue
		}
		if untouched(bars[i+1:n-1], func(x core.Candle) bool { return x.High >= bottom }) {
			return gap{index: i, bottom: bottom, top: top}, true
		}
	}
	return gap{}, false
}

func untouched(bars []core.Candle, touched func(core.Candle) bool) bool {
	for _, x := range bars {
		if touched(x) {
			return false
		}
	}
	return true
}
