package engulfing

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// Engulfing detects a reversal candle whose body engulfs the previous
// opposite-colored body at the end of a move.
type Engulfing struct {
	trendBars int
	lookback  int
}

// New creates an engulfing reversal strategy
func New(trendBars, lookback int) *Engulfing {
	return &Engulfing{
		trendBars: trendBars,
		lookback:  lookback,
	}
}

func (e *Engulfing) Name() string {
	return "engulfing"
}

func (e *Engulfing) Description() string {
	return fmt.Sprintf("Engulfing Reversal (%d bar move, %d bar extreme)", e.trendBars, e.lookback)
}

func (e *Engulfing) MinCandles() int {
	return max(30, e.lookback+e.trendBars)
}

func (e *Engulfing) Init(cfg strategy.Config) error {
	e.trendBars = strategy.IntParam(cfg.Params, "trend_bars", e.trendBars)
	e.lookback = strategy.IntParam(cfg.Params, "lookback", e.lookback)
	if e.trendBars < 1 || e.lookback < 2 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("engulfing: trend_bars %d, lookback %d", e.trendBars, e.lookback))
	}
	return nil
}

func (e *Engulfing) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, e.evaluate)
}

func (e *Engulfing) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < max(e.lookback, e.trendBars+2) {
		return strategy.None()
	}

	c, p := bars[n-1], bars[n-2]
	before := bars[n-2-e.trendBars]
	window := bars[n-e.lookback:]

	var action core.Action
	var stop float64
	switch {
	case p.IsBearish() && c.IsBullish() && c.Open <= p.Close && c.Close >= p.Open &&
		p.Close < before.Close && math.Min(c.Low, p.Low) <= indicator.Lowest(window):
		action, stop = core.ActionBuy, math.Min(c.Low, p.Low)
	case p.IsBullish() && c.IsBearish() && c.Open >= p.Close && c.Close <= p.Open &&
		p.Close > before.Close && math.Max(c.High, p.High) >= indicator.Highest(window):
		action, stop = core.ActionSell, math.Max(c.High, p.High)
	default:
		return strategy.None()
	}

	if c.Body() <= p.Body() {
		return strategy.Forming("reversal body does not exceed prior body")
	}

	vr := indicator.VolumeRatio(bars, 20)
	strength := 0.5 * indicator.Clamp(c.Body()/p.Body()-1, 0, 1)
	if rng := c.Range(); rng > 0 {
		strength += 0.5 * indicator.Clamp(c.Body()/rng, 0, 1)
	}

	kind := "Bullish"
	if action == core.ActionSell {
		kind = "Bearish"
	}

	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        stop,
		Strength:    strength,
		VolumeRatio: vr,
		Reason:      fmt.Sprintf("%s engulfing after %d bar move (body x%.1f)", kind, e.trendBars, c.Body()/p.Body()),
		Metadata: map[string]any{
			"prior_open":  p.Open,
			"prior_close": p.Close,
		},
	}
}
