package bollinger_squeeze

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// BollingerSqueeze fires on the first close outside the bands after the
// bandwidth contracted below a threshold.
type BollingerSqueeze struct {
	period       int
	mult         float64
	squeezeWidth float64
	squeezeBars  int
}

// New creates a Bollinger squeeze breakout strategy
func New(period int, mult, squeezeWidth float64) *BollingerSqueeze {
	return &BollingerSqueeze{
		period:       period,
		mult:         mult,
		squeezeWidth: squeezeWidth,
		squeezeBars:  5,
	}
}

func (b *BollingerSqueeze) Name() string {
	return "bollinger_squeeze"
}

func (b *BollingerSqueeze) Description() string {
	return fmt.Sprintf("Bollinger Squeeze (%d, %.1f sd, width < %.1f%%)", b.period, b.mult, b.squeezeWidth*100)
}

func (b *BollingerSqueeze) MinCandles() int {
	return max(50, b.period+b.squeezeBars+1)
}

func (b *BollingerSqueeze) Init(cfg strategy.Config) error {
	b.period = strategy.IntParam(cfg.Params, "period", b.period)
	b.mult = strategy.FloatParam(cfg.Params, "mult", b.mult)
	b.squeezeWidth = strategy.FloatParam(cfg.Params, "squeeze_width", b.squeezeWidth)
	b.squeezeBars = strategy.IntParam(cfg.Params, "squeeze_bars", b.squeezeBars)
	if b.period < 2 || b.mult <= 0 || b.squeezeWidth <= 0 || b.squeezeBars < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("bollinger_squeeze: period %d, mult %.2f, squeeze_width %.4f", b.period, b.mult, b.squeezeWidth))
	}
	return nil
}

func (b *BollingerSqueeze) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, b.evaluate)
}

func (b *BollingerSqueeze) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	bands := indicator.Bollinger(indicator.Closes(bars), b.period, b.mult)
	m := len(bands.Middle)
	if m < b.squeezeBars+1 {
		return strategy.None()
	}

	// the squeeze must precede the current bar
	squeezed := false
	for i := m - 1 - b.squeezeBars; i < m-1; i++ {
		if bands.Bandwidth(i) <= b.squeezeWidth {
			squeezed = true
			break
		}
	}
	if !squeezed {
		return strategy.None()
	}

	c, p := bars[n-1], bars[n-2]
	upper, lower, mid := bands.Upper[m-1], bands.Lower[m-1], bands.Middle[m-1]

	var action core.Action
	var beyond, band float64
	side := "upper"
	switch {
	case c.Close > upper && p.Close <= bands.Upper[m-2]:
		action, beyond, band = core.ActionBuy, c.Close-upper, upper
	case c.Close < lower && p.Close >= bands.Lower[m-2]:
		action, beyond, band, side = core.ActionSell, lower-c.Close, lower, "lower"
	default:
		return strategy.Forming(fmt.Sprintf("bands squeezed to %.2f%%", bands.Bandwidth(m-2)*100))
	}

	var strength float64
	if atr := indicator.LastATR(bars, 14); atr > 0 {
		strength = indicator.Clamp(beyond/atr, 0, 1)
	}

	return strategy.Setup{
		Phase:       strategy.PhaseCompleted,
		Action:      action,
		Stop:        mid,
		Strength:    strength,
		VolumeRatio: indicator.VolumeRatio(bars, 20),
		Reason:      fmt.Sprintf("Squeeze breakout through %s band %.2f", side, band),
		Metadata: map[string]any{
			"upper":     upper,
			"lower":     lower,
			"middle":    mid,
			"bandwidth": bands.Bandwidth(m - 2),
		},
	}
}
