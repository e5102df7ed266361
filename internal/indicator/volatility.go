package indicator

import (
	"math"

	"github.com/newthinker/signalcore/internal/core"
)

// TrueRange returns the true range series starting from the second bar.
// Returns slice of length: len(bars) - 1
func TrueRange(bars []core.Candle) []float64 {
	if len(bars) < 2 {
		return []float64{}
	}
	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		h, l := bars[i].High, bars[i].Low
		out[i-1] = math.Max(h-l, math.Max(math.Abs(h-prevClose), math.Abs(l-prevClose)))
	}
	return out
}

// ATR calculates Wilder's Average True Range.
// Returns slice of length: len(bars) - period; value j belongs to bar j+period.
func ATR(bars []core.Candle, period int) []float64 {
	tr := TrueRange(bars)
	if period <= 0 || len(tr) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(tr)-period+1)
	atr := Mean(tr[:period])
	result = append(result, atr)
	for i := period; i < len(tr); i++ {
		atr = (atr*float64(period-1) + tr[i]) / float64(period)
		result = append(result, atr)
	}
	return result
}

// LastATR returns the most recent ATR, or 0 with insufficient bars
func LastATR(bars []core.Candle, period int) float64 {
	return Last(ATR(bars, period))
}

// BollingerResult holds aligned Bollinger band series
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bandwidth returns (upper - lower) / middle at index i
func (b BollingerResult) Bandwidth(i int) float64 {
	if i < 0 || i >= len(b.Middle) || b.Middle[i] == 0 {
		return 0
	}
	return (b.Upper[i] - b.Lower[i]) / b.Middle[i]
}

// Bollinger calculates bands at mult standard deviations around the SMA.
func Bollinger(prices []float64, period int, mult float64) BollingerResult {
	mid := SMA(prices, period)
	if len(mid) == 0 {
		return BollingerResult{}
	}

	upper := make([]float64, len(mid))
	lower := make([]float64, len(mid))
	for i := range mid {
		sd := StdDev(prices[i : i+period])
		upper[i] = mid[i] + mult*sd
		lower[i] = mid[i] - mult*sd
	}
	return BollingerResult{Middle: mid, Upper: upper, Lower: lower}
}

// Supertrend returns the supertrend line and direction (+1 up, -1 down).
// Both slices are aligned to the last bar and have length len(bars) - period.
func Supertrend(bars []core.Candle, period int, mult float64) (line []float64, dir []int) {
	atr := ATR(bars, period)
	if len(atr) == 0 {
		return []float64{}, []int{}
	}

	line = make([]float64, len(atr))
	dir = make([]int, len(atr))

	var finalUpper, finalLower float64
	for j, a := range atr {
		i := j + period
		hl2 := (bars[i].High + bars[i].Low) / 2
		basicUpper := hl2 + mult*a
		basicLower := hl2 - mult*a

		if j == 0 {
			finalUpper, finalLower = basicUpper, basicLower
			if bars[i].Close >= hl2 {
				dir[j] = 1
			} else {
				dir[j] = -1
			}
		} else {
			prevClose := bars[i-1].Close
			if basicUpper < finalUpper || prevClose > finalUpper {
				finalUpper = basicUpper
			}
			if basicLower > finalLower || prevClose < finalLower {
				finalLower = basicLower
			}

			dir[j] = dir[j-1]
			if dir[j-1] == 1 && bars[i].Close < finalLower {
				dir[j] = -1
			} else if dir[j-1] == -1 && bars[i].Close > finalUpper {
				dir[j] = 1
			}
		}

		if dir[j] == 1 {
			line[j] = finalLower
		} else {
			line[j] = finalUpper
		}
	}
	return line, dir
}
