package order_block

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// zone is the range of the last opposing candle before an impulse
type zone struct {
	index int
	low   float64
	high  float64
}

// OrderBlock fires when price returns to an untested order block and
// rejects from it. A bullish block is the last bearish candle before an
// impulsive rally of at least impulseATR average true ranges.
type OrderBlock struct {
	lookback    int
	impulseBars int
	impulseATR  float64
	minAge      int
	atrPeriod   int
}

// New creates an order block strategy
func New(lookback int, impulseATR float64) *OrderBlock {
	return &OrderBlock{
		lookback:    lookback,
		impulseBars: 3,
		impulseATR:  impulseATR,
		minAge:      3,
		atrPeriod:   14,
	}
}

func (o *OrderBlock) Name() string {
	return "order_block"
}

func (o *OrderBlock) Description() string {
	return fmt.Sprintf("Order Block retest (lookback %d, impulse >= %.1f ATR)", o.lookback, o.impulseATR)
}

func (o *OrderBlock) MinCandles() int {
	return max(50, o.atrPeriod+o.impulseBars+o.minAge+2)
}

func (o *OrderBlock) Init(cfg strategy.Config) error {
	o.lookback = strategy.IntParam(cfg.Params, "lookback", o.lookback)
	o.impulseATR = strategy.FloatParam(cfg.Params, "impulse_atr", o.impulseATR)
	o.impulseBars = strategy.IntParam(cfg.Params, "impulse_bars", o.impulseBars)
	if o.lookback <= o.minAge || o.impulseATR <= 0 || o.impulseBars < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("order_block: lookback %d, impulse_atr %.2f, impulse_bars %d", o.lookback, o.impulseATR, o.impulseBars))
	}
	return nil
}

func (o *OrderBlock) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, o.evaluate)
}

func (o *OrderBlock) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	atr := indicator.LastATR(bars, o.atrPeriod)
	if atr <= 0 {
		return strategy.None()
	}
	c := bars[n-1]

	if z, ok := o.bullishZone(bars, atr); ok {
		if c.Low <= z.high && c.Close > z.high {
			return o.setup(core.ActionBuy, z, bars, indicator.Clamp((c.Close-z.high)/(z.high-z.low), 0, 1))
		}
		if c.Low > z.high && c.Low-z.high <= atr {
			return strategy.Forming(fmt.Sprintf("approaching bullish order block %.2f-%.2f", z.low, z.high))
		}
	}

	if z, ok := o.bearishZone(bars, atr); ok {
		if c.High >= z.low && c.Close < z.low {
			return o.setup(core.ActionSell, z, bars, indicator.Clamp((z.low-c.Close)/(z.high-z.low), 0, 1))
		}
		if c.High < z.low && z.low-c.High <= atr {
			return strategy.Forming(fmt.Sprintf("approaching bearish order block %.2f-%.2f", z.low, z.high))
		}
	}

	return strategy.None()
}

func (o *OrderBlock) setup(action core.Action, z zone, bars []core.Candle, strength float64) strategy.Setup {
	stop, side := z.low, "bullish"
	if action == core.ActionSell {
		stop, side = z.high, "bearish"
	}
	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        stop,
		Strength:    strength,
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Rejected from %s order block %.2f-%.2f", side, z.low, z.high),
		Metadata: map[string]any{
			"zone_low":  z.low,
			"zone_high": z.high,
			"zone_age":  len(bars) - 1 - z.index,
		},
	}
}

// bullishZone finds the most recent bearish candle followed by an impulsive
// rally whose zone has neither been closed through nor revisited since.
func (o *OrderBlock) bullishZone(bars []core.Candle, atr float64) (zone, bool) {
	n := len(bars)
	for i := n - 1 - o.minAge; i >= max(0, n-o.lookback); i-- {
		b := bars[i]
		if !b.IsBearish() {
			continue
		}
		end := min(i+o.impulseBars, n-2)
		if end <= i {
			continue
		}
		var peak float64
		for _, x := range bars[i+1 : end+1] {
			peak = max(peak, x.Close)
		}
		if peak-b.High < o.impulseATR*atr {
			continue
		}

		z := zone{index: i, low: b.Low, high: b.High}
		if intact(bars[i+1:n-1], bars[end+1:n-1], func(x core.Candle) bool { return x.Close < z.low }, func(x core.Candle) bool { return x.Low <= z.high }) {
			return z, true
		}
	}
	return zone{}, false
}

// bearishZone mirrors bullishZone for the last bullish candle before a sell-off
func (o *OrderBlock) bearishZone(bars []core.Candle, atr float64) (zone, bool) {
	n := len(bars)
	for i := n - 1 - o.minAge; i >= max(0, n-o.lookback); i-- {
		b := bars[i]
		if !b.IsBullish() {
			continue
		}
		end := min(i+o.impulseBars, n-2)
		if end <= i {
			continue
		}
		trough := b.Low
		for _, x := range bars[i+1 : end+1] {
			trough = min(trough, x.Close)
		}
		if b.Low-trough < o.impulseATR*atr {
			continue
		}

		z := zone{index: i, low: b.Low, high: b.High}
		if intact(bars[i+1:n-1], bars[end+1:n-1], func(x core.Candle) bool { return x.Close > z.high }, func(x core.Candle) bool { return x.High >= z.low }) {
			return z, true
		}
	}
	return zone{}, false
}

// intact reports that no bar since formation invalidated the zone and no bar
// after the impulse already touched it.
func intact(since, afterImpulse []core.Candle, broken, touched func(core.Candle) bool) bool {
	for _, x := range since {
		if broken(x) {
			return false
		}
	}
	for _, x := range afterImpulse {
		if touched(x) {
			return false
		}
	}
	return true
}
