package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/indicator"
)

// Geometry derives entry, stop and target for a completed pattern.
type Geometry struct {
	TargetRR      float64
	MinRR         float64
	MaxRR         float64
	MaxMovePct    float64
	StopBufferPct float64
	ATRPeriod     int
	ATRMultiplier float64
	ConfidenceCap float64
}

// DefaultGeometry returns the standard signal bounds
func DefaultGeometry() Geometry {
	return Geometry{
		TargetRR:      2.0,
		MinRR:         core.MinRiskReward,
		MaxRR:         core.MaxRiskReward,
		MaxMovePct:    core.MaxTargetMove,
		StopBufferPct: 0.001,
		ATRPeriod:     14,
		ATRMultiplier: 2.0,
		ConfidenceCap: 0.90,
	}
}

// Confidence combines threshold clearance, volume and divergence into a
// bounded score.
func (g Geometry) Confidence(s Setup) float64 {
	c := 0.5 + 0.25*indicator.Clamp(s.Strength, 0, 1)
	if s.VolumeRatio > 0 {
		c += 0.1 * indicator.Clamp((s.VolumeRatio-1)/1.5, 0, 1)
	}
	if s.Divergence {
		c += 0.05
	}
	return indicator.Clamp(c, 0, g.ConfidenceCap)
}

// Build turns a completed setup into a signal. It returns nil with a reason
// when the risk geometry is degenerate or the reachable risk/reward falls
// below MinRR.
func (g Geometry) Build(strategyName, symbol string, action core.Action, bars []core.Candle, s Setup, at time.Time) (*core.Signal, core.Reason) {
	if !action.IsDirectional() || len(bars) == 0 {
		return nil, core.ReasonInvalidGeometry
	}

	entry := bars[len(bars)-1].Close
	if !finitePositive(entry) {
		return nil, core.ReasonInvalidGeometry
	}
	dir := 1.0
	if action == core.ActionSell {
		dir = -1.0
	}

	stop, stopSource := g.structuralStop(entry, dir, s.Stop)
	if stop == 0 {
		atr := indicator.LastATR(bars, g.ATRPeriod)
		if !finitePositive(atr) {
			return nil, core.ReasonInvalidGeometry
		}
		stop = entry - dir*g.ATRMultiplier*atr
		stopSource = "atr"
	}

	risk := (entry - stop) * dir
	if !finitePositive(risk) || stop <= 0 {
		return nil, core.ReasonInvalidGeometry
	}

	reward := g.TargetRR * risk
	if finitePositive(s.Target) && (s.Target-entry)*dir > 0 {
		reward = (s.Target - entry) * dir
	}
	if reward/risk > g.MaxRR {
		reward = g.MaxRR * risk
	}
	if reward/entry > g.MaxMovePct {
		reward = entry * g.MaxMovePct
	}

	rr := math.Min(reward/risk, g.MaxRR)
	if rr < g.MinRR {
		return nil, core.ReasonRiskRewardBelowMin
	}

	if at.IsZero() {
		at = bars[len(bars)-1].Time
	}

	meta := map[string]any{"stop_source": stopSource}
	for k, v := range s.Metadata {
		meta[k] = v
	}

	return &core.Signal{
		Strategy:       strategyName,
		Symbol:         symbol,
		Action:         action,
		Entry:          entry,
		StopLoss:       stop,
		TakeProfit:     entry + dir*reward,
		Confidence:     g.Confidence(s),
		RiskReward:     rr,
		Reason:         fmt.Sprintf("%s (R:R %.2f)", s.Reason, rr),
		RequiresVolume: s.RequiresVolume,
		Metadata:       meta,
		GeneratedAt:    at,
	}, core.ReasonNone
}

// structuralStop buffers a structural reference that sits on the losing
// side of entry. Returns 0 when the reference is unusable.
func (g Geometry) structuralStop(entry, dir, ref float64) (float64, string) {
	if !finitePositive(ref) || (entry-ref)*dir <= 0 {
		return 0, ""
	}
	return ref * (1 - dir*g.StopBufferPct), "structure"
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
