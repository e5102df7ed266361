package structure_break

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// StructureBreak fires on a break of structure: in an uptrend of higher
// highs and higher lows, price closes through the last swing high (and the
// mirror for downtrends). The broken level is the structural stop.
type StructureBreak struct {
	swingStrength int
	atrPeriod     int
	formingATR    float64
}

// New creates a break-of-structure strategy
func New(swingStrength int) *StructureBreak {
	return &StructureBreak{
		swingStrength: swingStrength,
		atrPeriod:     14,
		formingATR:    0.5,
	}
}

func (s *StructureBreak) Name() string {
	return "structure_break"
}

func (s *StructureBreak) Description() string {
	return fmt.Sprintf("Break of Structure (swing strength %d)", s.swingStrength)
}

func (s *StructureBreak) MinCandles() int {
	return 50
}

func (s *StructureBreak) Init(cfg strategy.Config) error {
	s.swingStrength = strategy.IntParam(cfg.Params, "swing_strength", s.swingStrength)
	if s.swingStrength < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("structure_break: swing_strength %d", s.swingStrength))
	}
	return nil
}

func (s *StructureBreak) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, s.evaluate)
}

func (s *StructureBreak) evaluate(bars []core.Candle) strategy.Setup {
	n := len(bars)
	if n < 2*s.swingStrength+3 {
		return strategy.None()
	}

	confirmed := bars[:n-1]
	highs := indicator.SwingHighs(confirmed, s.swingStrength)
	lows := indicator.SwingLows(confirmed, s.swingStrength)
	trend := indicator.Structure(highs, lows)
	if trend == 0 {
		return strategy.None()
	}

	lastHigh := highs[len(highs)-1]
	lastLow := lows[len(lows)-1]
	c, p := bars[n-1], bars[n-2]
	atr := indicator.LastATR(bars, s.atrPeriod)

	meta := map[string]any{
		"swing_high": lastHigh.Price,
		"swing_low":  lastLow.Price,
		"trend":      trend,
	}

	switch {
	case trend > 0 && p.Close <= lastHigh.Price && c.Close > lastHigh.Price:
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionBuy,
			Stop:        lastHigh.Price,
			Strength:    breakStrength(c.Close-lastHigh.Price, atr),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Bullish break of structure through swing high %.2f", lastHigh.Price),
			Metadata:    meta,
		}
	case trend < 0 && p.Close >= lastLow.Price && c.Close < lastLow.Price:
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionSell,
			Stop:        lastLow.Price,
			Strength:    breakStrength(lastLow.Price-c.Close, atr),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Reason:      fmt.Sprintf("Bearish break of structure through swing low %.2f", lastLow.Price),
			Metadata:    meta,
		}
	}

	level := lastHigh.Price
	if trend < 0 {
		level = lastLow.Price
	}
	if atr > 0 && math.Abs(c.Close-level) <= s.formingATR*atr {
		return strategy.Forming(fmt.Sprintf("approaching swing level %.2f", level))
	}
	return strategy.None()
}

// breakStrength measures the close beyond the level in ATRs
func breakStrength(distance, atr float64) float64 {
	if atr <= 0 {
		return 0.5
	}
	return indicator.Clamp(distance/atr, 0, 1)
}

