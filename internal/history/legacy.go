package history

import (
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

// FromPrices synthesizes single-price candles from a bare price list.
//
// This is a reduced-fidelity path for callers that only have closing prices:
// every bar has open = high = low = close and zero volume, so wick, range and
// volume based detectors cannot confirm on it. Non-positive prices are skipped.
func FromPrices(prices []float64, start time.Time, interval time.Duration) []core.Candle {
	if interval <= 0 {
		interval = time.Minute
	}

	bars := make([]core.Candle, 0, len(prices))
	for i, p := range prices {
		if p <= 0 {
			continue
		}
		bars = append(bars, core.Candle{
			Time:  start.Add(time.Duration(i) * interval),
			Open:  p,
			High:  p,
			Low:   p,
			Close: p,
		})
	}
	return bars
}
