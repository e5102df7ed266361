package indicator

import "github.com/newthinker/signalcore/internal/core"

// RSI calculates Wilder's Relative Strength Index.
// Returns slice of length: len(prices) - period
func RSI(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) <= period {
		return []float64{}
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	result := make([]float64, 0, len(prices)-period)
	result = append(result, rsiValue(avgGain, avgLoss))

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds aligned MACD line, signal line and histogram
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD calculates the moving average convergence divergence.
// All three series are aligned to the last price.
func MACD(prices []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 || slow <= fast || signal <= 0 || len(prices) < slow+signal-1 {
		return MACDResult{}
	}

	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)
	offset := slow - fast

	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	sig := EMA(line, signal)
	line = line[len(line)-len(sig):]

	hist := make([]float64, len(sig))
	for i := range sig {
		hist[i] = line[i] - sig[i]
	}

	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// Stochastic calculates the slow stochastic oscillator.
// K and D are aligned to the last bar.
func Stochastic(bars []core.Candle, kPeriod, smooth, dPeriod int) (k, d []float64) {
	if kPeriod <= 0 || smooth <= 0 || dPeriod <= 0 || len(bars) < kPeriod+smooth+dPeriod-2 {
		return []float64{}, []float64{}
	}

	raw := make([]float64, 0, len(bars)-kPeriod+1)
	for i := kPeriod - 1; i < len(bars); i++ {
		window := bars[i-kPeriod+1 : i+1]
		hh, ll := Highest(window), Lowest(window)
		if hh == ll {
			raw = append(raw, 50)
			continue
		}
		raw = append(raw, 100*(bars[i].Close-ll)/(hh-ll))
	}

	k = SMA(raw, smooth)
	d = SMA(k, dPeriod)
	k = k[len(k)-len(d):]
	return k, d
}
