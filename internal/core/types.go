package core

import (
	"fmt"
	"math"
	"time"
)

// Candle represents one OHLCV bar. Candles are immutable once stored.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the bar is internally consistent
func (c Candle) Validate() error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return WrapError(ErrInvalidCandle, fmt.Errorf("non-positive price in bar at %s", c.Time.Format(time.RFC3339)))
	}
	if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) || c.High < c.Low {
		return WrapError(ErrInvalidCandle, fmt.Errorf("high/low do not bracket open/close at %s", c.Time.Format(time.RFC3339)))
	}
	if c.Volume < 0 || math.IsNaN(c.Volume) {
		return WrapError(ErrInvalidCandle, fmt.Errorf("invalid volume %f", c.Volume))
	}
	return nil
}

// Equal reports whether o is the same bar with the same prices and volume
func (c Candle) Equal(o Candle) bool {
	return c.Time.Equal(o.Time) &&
		c.Open == o.Open &&
		c.High == o.High &&
		c.Low == o.Low &&
		c.Close == o.Close &&
		c.Volume == o.Volume
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open/close distance
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// UpperWick returns the distance from the body top to the high
func (c Candle) UpperWick() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerWick returns the distance from the body bottom to the low
func (c Candle) LowerWick() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// IsBullish reports a close above the open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports a close below the open
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// IsDirectional reports whether the action is buy or sell
func (a Action) IsDirectional() bool {
	return a == ActionBuy || a == ActionSell
}

// Opposite returns the opposing direction; hold maps to hold.
func (a Action) Opposite() Action {
	switch a {
	case ActionBuy:
		return ActionSell
	case ActionSell:
		return ActionBuy
	default:
		return ActionHold
	}
}

// Signal bounds shared by every emitted signal.
const (
	MinRiskReward = 1.5
	MaxRiskReward = 4.0
	MaxTargetMove = 0.06
)

// geometryTolerance absorbs float rounding when a bound was clamped exactly.
const geometryTolerance = 1e-9

// Signal represents a risk-bounded trading signal
type Signal struct {
	ID             string
	Strategy       string
	Symbol         string
	Action         Action
	Entry          float64
	StopLoss       float64
	TakeProfit     float64
	Confidence     float64
	RiskReward     float64
	Reason         string
	RequiresVolume bool
	PositionSize   float64
	Metadata       map[string]any
	GeneratedAt    time.Time
}

// Risk returns the entry to stop distance
func (s Signal) Risk() float64 {
	return math.Abs(s.Entry - s.StopLoss)
}

// Reward returns the entry to target distance
func (s Signal) Reward() float64 {
	return math.Abs(s.TakeProfit - s.Entry)
}

// Validate enforces the signal geometry invariants.
func (s Signal) Validate() error {
	if !s.Action.IsDirectional() {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("action %q is not directional", s.Action))
	}
	if s.Entry <= 0 {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("entry must be positive, got %f", s.Entry))
	}
	if s.Action == ActionBuy && !(s.StopLoss < s.Entry && s.TakeProfit > s.Entry) {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("buy requires stop < entry < target"))
	}
	if s.Action == ActionSell && !(s.StopLoss > s.Entry && s.TakeProfit < s.Entry) {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("sell requires target < entry < stop"))
	}
	if s.RiskReward < MinRiskReward-geometryTolerance || s.RiskReward > MaxRiskReward+geometryTolerance {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("risk/reward %.4f outside [%.1f, %.1f]", s.RiskReward, MinRiskReward, MaxRiskReward))
	}
	if s.Reward()/s.Entry > MaxTargetMove+geometryTolerance {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("target move %.4f exceeds %.2f", s.Reward()/s.Entry, MaxTargetMove))
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return WrapError(ErrInvalidGeometry, fmt.Errorf("confidence %.4f outside [0, 1]", s.Confidence))
	}
	return nil
}

// Reason is a machine-readable rejection code
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonNoPattern           Reason = "no_pattern"
	ReasonCooldown            Reason = "cooldown_suppressed"
	ReasonInvalidGeometry     Reason = "invalid_geometry"
	ReasonRiskRewardBelowMin  Reason = "risk_reward_below_min"
	ReasonStrategyFailed      Reason = "strategy_failed"
	ReasonNoConsensus         Reason = "no_consensus"
	ReasonZeroPositionSize    Reason = "zero_position_size"
	ReasonLowAgreement        Reason = "low_agreement"
	ReasonLowConfidence       Reason = "low_confidence"
	ReasonRecentPoor          Reason = "recent_poor_performance"
	ReasonPoorRiskReward      Reason = "poor_risk_reward"
	ReasonDuplicateRelease    Reason = "duplicate_release"
)

// String implements fmt.Stringer
func (r Reason) String() string {
	return string(r)
}
