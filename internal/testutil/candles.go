// Package testutil builds candle series for tests.
package testutil

import (
	"math"
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

// Start is the timestamp of the first generated bar
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Interval between generated bars
const Interval = time.Hour

// DefaultVolume is the volume of generated bars
const DefaultVolume = 1000.0

// Series builds candles from close prices. Each bar opens at the previous
// close and its wicks extend half a unit beyond the body.
func Series(closes ...float64) []core.Candle {
	bars := make([]core.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		bars[i] = core.Candle{
			Time:   Start.Add(time.Duration(i) * Interval),
			Open:   open,
			High:   math.Max(open, c) + 0.5,
			Low:    math.Min(open, c) - 0.5,
			Close:  c,
			Volume: DefaultVolume,
		}
	}
	return bars
}

// Flat returns n bars closing at price
func Flat(n int, price float64) []core.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return Series(closes...)
}

// Trend returns n bars starting at from and moving by step per bar
func Trend(n int, from, step float64) []core.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = from + float64(i)*step
	}
	return Series(closes...)
}

// Wave returns n bars oscillating around mid with the given amplitude and period
func Wave(n int, mid, amplitude float64, period int) []core.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = mid + amplitude*math.Sin(2*math.Pi*float64(i)/float64(period))
	}
	return Series(closes...)
}

// Append adds bars after existing, continuing the timestamps
func Append(bars []core.Candle, next ...core.Candle) []core.Candle {
	out := make([]core.Candle, 0, len(bars)+len(next))
	out = append(out, bars...)
	for _, c := range next {
		c.Time = Start.Add(time.Duration(len(out)) * Interval)
		out = append(out, c)
	}
	return out
}

// Bar builds a single candle; its timestamp is set by Append.
func Bar(open, high, low, close, volume float64) core.Candle {
	return core.Candle{Open: open, High: high, Low: low, Close: close, Volume: volume}
}

// Closes returns the close of each bar
func Closes(bars []core.Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Points builds doji bars (open = close) with wicks half a unit either side.
// Highs and lows follow closes exactly, which keeps swing pivots strict.
func Points(closes ...float64) []core.Candle {
	bars := make([]core.Candle, len(closes))
	for i, c := range closes {
		bars[i] = core.Candle{
			Time:   Start.Add(time.Duration(i) * Interval),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: DefaultVolume,
		}
	}
	return bars
}

// Legs expands a path of turning points into closes moving one unit per bar.
// Turning points must be whole units apart.
func Legs(from float64, turns ...float64) []float64 {
	closes := []float64{from}
	curr := from
	for _, target := range turns {
		step := 1.0
		if target < curr {
			step = -1
		}
		for curr != target {
			curr += step
			closes = append(closes, curr)
		}
	}
	return closes
}

// Repeat returns n copies of price
func Repeat(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}
