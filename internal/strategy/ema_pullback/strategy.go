package ema_pullback

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// EMAPullback trades the resumption of a trend after price pulled back into
// the fast EMA. The pullback extreme is the structural stop.
type EMAPullback struct {
	fastPeriod   int
	slowPeriod   int
	pullbackBars int
}

// New creates an EMA pullback strategy
func New(fastPeriod, slowPeriod int) *EMAPullback {
	return &EMAPullback{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		pullbackBars: 5,
	}
}

func (e *EMAPullback) Name() string {
	return "ema_pullback"
}

func (e *EMAPullback) Description() string {
	return fmt.Sprintf("EMA Pullback (EMA%d in EMA%d trend)", e.fastPeriod, e.slowPeriod)
}

func (e *EMAPullback) MinCandles() int {
	return e.slowPeriod + 10
}

func (e *EMAPullback) Init(cfg strategy.Config) error {
	e.fastPeriod = strategy.IntParam(cfg.Params, "fast_period", e.fastPeriod)
	e.slowPeriod = strategy.IntParam(cfg.Params, "slow_period", e.slowPeriod)
	e.pullbackBars = strategy.IntParam(cfg.Params, "pullback_bars", e.pullbackBars)
	if e.fastPeriod <= 0 || e.slowPeriod <= e.fastPeriod || e.pullbackBars < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ema_pullback: fast %d, slow %d, pullback_bars %d", e.fastPeriod, e.slowPeriod, e.pullbackBars))
	}
	return nil
}

func (e *EMAPullback) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, e.evaluate)
}

func (e *EMAPullback) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < e.slowPeriod+e.pullbackBars {
		return strategy.None()
	}

	prices := indicator.Closes(bars)
	fast := indicator.EMA(prices, e.fastPeriod)
	slow := indicator.EMA(prices, e.slowPeriod)
	if len(fast) < e.pullbackBars+1 || len(slow) == 0 {
		return strategy.None()
	}
	// fast[len(fast)-1-k] belongs to bar n-1-k
	fastAt := func(k int) float64 { return fast[len(fast)-1-k] }

	c, p := bars[n-1], bars[n-2]
	currFast, currSlow := fastAt(0), indicator.Last(slow)

	var trend core.Action
	switch {
	case currFast > currSlow && c.Close > currSlow:
		trend = core.ActionBuy
	case currFast < currSlow && c.Close < currSlow:
		trend = core.ActionSell
	default:
		return strategy.None()
	}

	window := bars[n-1-e.pullbackBars:]
	touched := false
	for k := 0; k <= e.pullbackBars; k++ {
		b := bars[n-1-k]
		if (trend == core.ActionBuy && b.Low <= fastAt(k)) || (trend == core.ActionSell && b.High >= fastAt(k)) {
			touched = true
			break
		}
	}
	if !touched {
		return strategy.None()
	}

	resumed := false
	stop := indicator.Lowest(window)
	if trend == core.ActionBuy {
		resumed = c.IsBullish() && c.Close > currFast && c.Close > p.High
	} else {
		resumed = c.IsBearish() && c.Close < currFast && c.Close < p.Low
		stop = indicator.Highest(window)
	}
	if !resumed {
		return strategy.Forming(fmt.Sprintf("pulled back to EMA%d %.2f", e.fastPeriod, currFast))
	}

	var strength float64
	if atr := indicator.LastATR(bars, 14); atr > 0 {
		strength = 0.5 * indicator.Clamp(strategy.Direction(trend)*(c.Close-currFast)/atr, 0, 1)
	}
	if currSlow > 0 {
		strength += 0.5 * indicator.Clamp(strategy.Direction(trend)*(currFast-currSlow)/currSlow*20, 0, 1)
	}

	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      trend,
		Stop:        stop,
		Strength:    strength,
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Trend resumed after pullback to EMA%d (%.2f)", e.fastPeriod, currFast),
		Metadata: map[string]any{
			"fast_ema": currFast,
			"slow_ema": currSlow,
		},
	}
}
