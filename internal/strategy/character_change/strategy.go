package character_change

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// CharacterChange fires on a change of character: during a downtrend of
// lower highs and lower lows, price closes above the last swing high (and the
// mirror for uptrends). The extreme made since that swing is the stop.
type CharacterChange struct {
	swingStrength int
	atrPeriod     int
}

// New creates a change-of-character strategy
func New(swingStrength int) *CharacterChange {
	return &CharacterChange{
		swingStrength: swingStrength,
		atrPeriod:     14,
	}
}

func (c *CharacterChange) Name() string {
	return "character_change"
}

func (c *CharacterChange) Description() string {
	return fmt.Sprintf("Change of Character (swing strength %d)", c.swingStrength)
}

func (c *CharacterChange) MinCandles() int {
	return 50
}

func (c *CharacterChange) Init(cfg strategy.Config) error {
	c.swingStrength = strategy.IntParam(cfg.Params, "swing_strength", c.swingStrength)
	if c.swingStrength < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("character_change: swing_strength %d", c.swingStrength))
	}
	return nil
}

func (c *CharacterChange) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, c.evaluate)
}

func (c *CharacterChange) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < 2*c.swingStrength+3 {
		return strategy.None()
	}

	confirmed := bars[:n-1]
	highs := indicator.SwingHighs(confirmed, c.swingStrength)
	lows := indicator.SwingLows(confirmed, c.swingStrength)
	trend := indicator.Structure(highs, lows)
	if trend == 0 {
		return strategy.None()
	}

	lastHigh := highs[len(highs)-1]
	lastLow := lows[len(lows)-1]
	curr, prev := bars[n-1], bars[n-2]
	atr := indicator.LastATR(bars, c.atrPeriod)

	meta := map[string]any{
		"swing_high":  lastHigh.Price,
		"swing_low":   lastLow.Price,
		"prior_trend": trend,
	}

	switch {
	case trend < 0 && prev.Close <= lastHigh.Price && curr.Close > lastHigh.Price:
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionBuy,
			Stop:        indicator.Lowest(bars[lastHigh.Index:]),
			Strength:    reversalStrength(curr.Close-lastHigh.Price, atr),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Bullish change of character: downtrend broke swing high %.2f", lastHigh.Price),
			Metadata:    meta,
		}
	case trend > 0 && prev.Close >= lastLow.Price && curr.Close < lastLow.Price:
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionSell,
			Stop:        indicator.Highest(bars[lastLow.Index:]),
			Strength:    reversalStrength(lastLow.Price-curr.Close, atr),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Bearish change of character: uptrend broke swing low %.2f", lastLow.Price),
			Metadata:    meta,
		}
	case trend < 0 && curr.Close > lastLow.Price:
		return strategy.Forming("downtrend holding above last swing low")
	case trend > 0 && curr.Close < lastHigh.Price:
		return strategy.Forming("uptrend holding below last swing high")
	default:
		return strategy.None()
	}
}

// reversalStrength measures the close beyond the level in ATRs
func reversalStrength(distance, atr float64) float64 {
	if atr <= 0 {
		return 0.5
	}
	return indicator.Clamp(distance/atr, 0, 1)
}
