package indicator

import "github.com/newthinker/signalcore/internal/core"

// Pivot is a confirmed swing point
type Pivot struct {
	Index int
	Price float64
}

// SwingHighs returns confirmed pivot highs: bars whose high is strictly
// greater than the strength bars on either side.
func SwingHighs(bars []core.Candle, strength int) []Pivot {
	return swings(bars, strength, func(a, b core.Candle) bool { return a.High > b.High }, func(c core.Candle) float64 { return c.High })
}

// SwingLows returns confirmed pivot lows: bars whose low is strictly lower
// than the strength bars on either side.
func SwingLows(bars []core.Candle, strength int) []Pivot {
	return swings(bars, strength, func(a, b core.Candle) bool { return a.Low < b.Low }, func(c core.Candle) float64 { return c.Low })
}

func swings(bars []core.Candle, strength int, beats func(a, b core.Candle) bool, price func(core.Candle) float64) []Pivot {
	if strength <= 0 {
		strength = 1
	}

	var out []Pivot
	for i := strength; i+strength < len(bars); i++ {
		pivot := true
		for j := i - strength; j <= i+strength; j++ {
			if j != i && !beats(bars[i], bars[j]) {
				pivot = false
				break
			}
		}
		if pivot {
			out = append(out, Pivot{Index: i, Price: price(bars[i])})
		}
	}
	return out
}

// LastPivotBefore returns the latest pivot with Index < limit
func LastPivotBefore(pivots []Pivot, limit int) (Pivot, bool) {
	for i := len(pivots) - 1; i >= 0; i-- {
		if pivots[i].Index < limit {
			return pivots[i], true
		}
	}
	return Pivot{}, false
}

// Structure classifies swing structure from the last two pivots on each
// side: +1 for higher highs and higher lows, -1 for lower highs and lower
// lows, 0 otherwise or with fewer than two pivots.
func Structure(highs, lows []Pivot) int {
	if len(highs) < 2 || len(lows) < 2 {
		return 0
	}
	h1, h2 := highs[len(highs)-2].Price, highs[len(highs)-1].Price
	l1, l2 := lows[len(lows)-2].Price, lows[len(lows)-1].Price
	switch {
	case h2 > h1 && l2 > l1:
		return 1
	case h2 < h1 && l2 < l1:
		return -1
	default:
		return 0
	}
}

// PivotsBefore returns the pivots with Index < limit
func PivotsBefore(pivots []Pivot, limit int) []Pivot {
	for i := len(pivots) - 1; i >= 0; i-- {
		if pivots[i].Index < limit {
			return pivots[:i+1]
		}
	}
	return nil
}
