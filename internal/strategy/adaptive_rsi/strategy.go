package adaptive_rsi

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
	"github.com/newthinker/signalcore/internal/strategy"
)

// AdaptiveRSI fires when RSI leaves a volatility-scaled extreme and the MACD
// line crosses its signal line in the same direction within a short window.
// A price/RSI divergence raises confidence.
type AdaptiveRSI struct {
	rsiPeriod      int
	baseBand       float64
	atrPeriod      int
	volLookback    int
	confirmBars    int
	divergenceBars int
	stopLookback   int
}

// New creates an adaptive RSI strategy. baseBand is the distance of the
// oversold/overbought thresholds from 50 at average volatility.
func New(rsiPeriod int, baseBand float64) *AdaptiveRSI {
	return &AdaptiveRSI{
		rsiPeriod:      rsiPeriod,
		baseBand:       baseBand,
		atrPeriod:      14,
		volLookback:    30,
		confirmBars:    5,
		divergenceBars: 20,
		stopLookback:   10,
	}
}

func (a *AdaptiveRSI) Name() string {
	return "adaptive_rsi"
}

func (a *AdaptiveRSI) Description() string {
	return fmt.Sprintf("Adaptive RSI%d (50 +/- %.0f scaled by ATR) with MACD confirmation", a.rsiPeriod, a.baseBand)
}

func (a *AdaptiveRSI) MinCandles() int {
	return max(60, a.atrPeriod+a.volLookback+1)
}

func (a *AdaptiveRSI) Init(cfg strategy.Config) error {
	a.rsiPeriod = strategy.IntParam(cfg.Params, "rsi_period", a.rsiPeriod)
	a.baseBand = strategy.FloatParam(cfg.Params, "base_band", a.baseBand)
	a.confirmBars = strategy.IntParam(cfg.Params, "confirm_bars", a.confirmBars)
	if a.rsiPeriod <= 1 || a.baseBand <= 0 || a.baseBand >= 50 || a.confirmBars < 1 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("adaptive_rsi: rsi_period %d, base_band %.1f, confirm_bars %d", a.rsiPeriod, a.baseBand, a.confirmBars))
	}
	return nil
}

func (a *AdaptiveRSI) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, a.evaluate)
}

// thresholds widens the bands when current ATR runs above its recent mean
func (a *AdaptiveRSI) thresholds(bars []core.Candle) (oversold, overbought, scale float64) {
	scale = 1
	atr := indicator.ATR(bars, a.atrPeriod)
	if len(atr) > a.volLookback {
		recent := atr[len(atr)-a.volLookback-1 : len(atr)-1]
		if avg := indicator.Mean(recent); avg > 0 {
			scale = indicator.Clamp(indicator.Last(atr)/avg, 0.5, 2)
		}
	}
	band := indicator.Clamp(a.baseBand*scale, 5, 45)
	return 50 - band, 50 + band, scale
}

func (a *AdaptiveRSI) evaluate(bars []core.Candle) strategy.Setup {
	closes := indicator.Closes(bars)
	rsi := indicator.RSI(closes, a.rsiPeriod)
	macd := indicator.MACD(closes, 12, 26, 9)
	if len(rsi) < a.confirmBars+1 || len(macd.Histogram) < a.confirmBars+1 {
		return strategy.None()
	}

	oversold, overbought, scale := a.thresholds(bars)
	curr := indicator.Last(rsi)

	upRSI := crossedWithin(rsi, a.confirmBars, func(p, c float64) bool { return p <= oversold && c > oversold })
	downRSI := crossedWithin(rsi, a.confirmBars, func(p, c float64) bool { return p >= overbought && c < overbought })
	upMACD := crossedWithin(macd.Histogram, a.confirmBars, func(p, c float64) bool { return p <= 0 && c > 0 })
	downMACD := crossedWithin(macd.Histogram, a.confirmBars, func(p, c float64) bool { return p >= 0 && c < 0 })

	meta := map[string]any{
		"rsi":        curr,
		"oversold":   oversold,
		"overbought": overbought,
		"vol_scale":  scale,
	}

	n := len(bars)
	lookback := bars[max(0, n-a.stopLookback):]

	switch {
	case upRSI && upMACD && curr < 50:
		div := bullishDivergence(bars, rsi, a.divergenceBars)
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionBuy,
			Stop:        indicator.Lowest(lookback),
			Strength:    indicator.Clamp((curr-oversold)/10, 0, 1),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Divergence:  div,
			Reason:      fmt.Sprintf("RSI %.1f recovered above adaptive oversold %.1f with MACD bullish cross", curr, oversold),
			Metadata:    meta,
		}
	case downRSI && downMACD && curr > 50:
		div := bearishDivergence(bars, rsi, a.divergenceBars)
		return strategy.Setup{
			Phase:       strategy.PhaseCompleted,
			Action:      core.ActionSell,
			Stop:        indicator.Highest(lookback),
			Strength:    indicator.Clamp((overbought-curr)/10, 0, 1),
			VolumeRatio: indicator.VolumeRatio(bars, 20),
			Divergence:  div,
			Reason:      fmt.Sprintf("RSI %.1f fell below adaptive overbought %.1f with MACD bearish cross", curr, overbought),
			Metadata:    meta,
		}
	case curr <= oversold || curr >= overbought:
		return strategy.Forming(fmt.Sprintf("RSI %.1f at adaptive extreme", curr))
	default:
		return strategy.None()
	}
}

// crossedWithin reports whether cross held for any adjacent pair in the
// last window values of series.
func crossedWithin(series []float64, window int, cross func(prev, curr float64) bool) bool {
	start := max(1, len(series)-window)
	for i := start; i < len(series); i++ {
		if cross(series[i-1], series[i]) {
			return true
		}
	}
	return false
}

// bullishDivergence compares the lowest low of the older and newer halves of
// the lookback: a lower price low with a higher RSI reading.
func bullishDivergence(bars []core.Candle, rsi []float64, lookback int) bool {
	older, newer, ok := halves(bars, rsi, lookback, func(a, b core.Candle) bool { return a.Low < b.Low })
	return ok && bars[newer].Low < bars[older].Low && rsiAt(bars, rsi, newer) > rsiAt(bars, rsi, older)
}

func bearishDivergence(bars []core.Candle, rsi []float64, lookback int) bool {
	older, newer, ok := halves(bars, rsi, lookback, func(a, b core.Candle) bool { return a.High > b.High })
	return ok && bars[newer].High > bars[older].High && rsiAt(bars, rsi, newer) < rsiAt(bars, rsi, older)
}

func halves(bars []core.Candle, rsi []float64, lookback int, better func(a, b core.Candle) bool) (older, newer int, ok bool) {
	n := len(bars)
	offset := n - len(rsi)
	start := n - lookback
	if lookback < 4 || start < offset {
		return 0, 0, false
	}
	mid := start + lookback/2
	older, newer = start, mid
	for i := start; i < mid; i++ {
		if better(bars[i], bars[older]) {
			older = i
		}
	}
	for i := mid; i < n; i++ {
		if better(bars[i], bars[newer]) {
			newer = i
		}
	}
	return older, newer, true
}

// rsiAt maps a bar index onto the RSI series, which starts period bars later
func rsiAt(bars []core.Candle, rsi []float64, i int) float64 {
	return rsi[i-(len(bars)-len(rsi))]
}
