package indicator

import (
	"math"

	"github.com/newthinker/signalcore/internal/core"
)

// Closes extracts closing prices
func Closes(bars []core.Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes
func Volumes(bars []core.Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Typical returns (high + low + close) / 3 for a bar
func Typical(b core.Candle) float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Highest returns the highest high across bars
func Highest(bars []core.Candle) float64 {
	if len(bars) == 0 {
		return 0
	}
	h := bars[0].High
	for _, b := range bars[1:] {
		h = math.Max(h, b.High)
	}
	return h
}

// Lowest returns the lowest low across bars
func Lowest(bars []core.Candle) float64 {
	if len(bars) == 0 {
		return 0
	}
	l := bars[0].Low
	for _, b := range bars[1:] {
		l = math.Min(l, b.Low)
	}
	return l
}

// AvgVolume returns the mean volume across bars
func AvgVolume(bars []core.Candle) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.Volume
	}
	return sum / float64(len(bars))
}

// VolumeRatio compares the last bar's volume with the average of the
// lookback bars preceding it. Returns 1 when there is no reference volume.
func VolumeRatio(bars []core.Candle, lookback int) float64 {
	if len(bars) < 2 {
		return 1
	}
	end := len(bars) - 1
	start := end - lookback
	if start < 0 {
		start = 0
	}
	avg := AvgVolume(bars[start:end])
	if avg <= 0 {
		return 1
	}
	return bars[end].Volume / avg
}

// Mean returns the arithmetic mean
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var variance float64
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// Clamp bounds v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
