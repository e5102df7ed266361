package range_breakout

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// RangeBreakout fires when price closes outside a tight consolidation on a
// volume surge. The opposite range edge is the structural stop.
type RangeBreakout struct {
	rangeBars   int
	maxRangePct float64
	volumeMult  float64
}

// New creates a range breakout strategy
func New(rangeBars int, maxRangePct, volumeMult float64) *RangeBreakout {
	return &RangeBreakout{
		rangeBars:   rangeBars,
		maxRangePct: maxRangePct,
		volumeMult:  volumeMult,
	}
}

func (r *RangeBreakout) Name() string {
	return "range_breakout"
}

func (r *RangeBreakout) Description() string {
	return fmt.Sprintf("Range Breakout (%d bars within %.1f%%, volume x%.1f)", r.rangeBars, r.maxRangePct*100, r.volumeMult)
}

func (r *RangeBreakout) MinCandles() int {
	return max(50, r.rangeBars+1)
}

func (r *RangeBreakout) Init(cfg strategy.Config) error {
	r.rangeBars = strategy.IntParam(cfg.Params, "range_bars", r.rangeBars)
	r.maxRangePct = strategy.FloatParam(cfg.Params, "max_range_pct", r.maxRangePct)
	r.volumeMult = strategy.FloatParam(cfg.Params, "volume_mult", r.volumeMult)
	if r.rangeBars < 2 || r.maxRangePct <= 0 || r.volumeMult <= 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("range_breakout: range_bars %d, max_range_pct %.3f, volume_mult %.2f", r.rangeBars, r.maxRangePct, r.volumeMult))
	}
	return nil
}

func (r *RangeBreakout) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, r.evaluate)
}

func (r *RangeBreakout) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < r.rangeBars+1 {
		return strategy.None()
	}

	window := bars[n-1-r.rangeBars : n-1]
	hh, ll := indicator.Highest(window), indicator.Lowest(window)
	if ll <= 0 || (hh-ll)/ll > r.maxRangePct {
		return strategy.None()
	}

	c := bars[n-1]
	height := hh - ll
	vr := indicator.VolumeRatio(bars, r.rangeBars)

	var action core.Action
	var depth, stop float64
	switch {
	case c.Close > hh:
		action, depth, stop = core.ActionBuy, c.Close-hh, ll
	case c.Close < ll:
		action, depth, stop = core.ActionSell, ll-c.Close, hh
	default:
		return strategy.Forming(fmt.Sprintf("consolidating in %.2f-%.2f", ll, hh))
	}

	if vr < r.volumeMult {
		return strategy.Forming(fmt.Sprintf("breakout without volume (x%.2f)", vr))
	}

	strength := 0.5*indicator.Clamp((vr-r.volumeMult)/r.volumeMult, 0, 1)
	if height > 0 {
		strength += 0.5 * indicator.Clamp(depth/(0.5*height), 0, 1)
	}

	edge := "above"
	if action == core.ActionSell {
		edge = "below"
	}

	return strategy.Setup{
		Phase:          strategy.PhaseCompleted,
		Action:         action,
		Stop:           stop,
		Strength:       strength,
		VolumeRatio:    vr,
		RequiresVolume: true,
		Reason:         fmt.Sprintf("Range breakout %s %.2f-%.2f on x%.2f volume", edge, ll, hh, vr),
		Metadata: map[string]any{
			"range_high": hh,
			"range_low":  ll,
		},
	}
}
