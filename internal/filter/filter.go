// Package filter is the last approval gate before an ensemble decision is
// released.
package filter

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/ensemble"
	"github.com/newthinker/signalcore/internal/risk"
	"go.uber.org/zap"
)

// neutralSuccessRate is assumed when a symbol and action have no history
const neutralSuccessRate = 0.5

// OutcomeProvider reports how released signals for a symbol and action
// have resolved since a point in time.
type OutcomeProvider interface {
	SuccessRate(ctx context.Context, symbol string, action core.Action, since time.Time) (rate float64, samples int, err error)
}

// Config holds the gate thresholds
type Config struct {
	MinAgree       int
	Conservatism   float64
	MinConfidence  float64
	MinSuccessRate float64
	RecencyWindow  time.Duration
	MinRiskReward  float64
}

// DefaultConfig returns 5 agreeing strategies, a 1.2 conservatism
// multiplier, 0.65 confidence, 50% recent success over 7 days and 2:1 R:R.
func DefaultConfig() Config {
	return Config{
		MinAgree:       5,
		Conservatism:   1.2,
		MinConfidence:  0.65,
		MinSuccessRate: 0.5,
		RecencyWindow:  7 * 24 * time.Hour,
		MinRiskReward:  2.0,
	}
}

// Candidate is an ensemble decision awaiting approval
type Candidate struct {
	Symbol     string
	Action     core.Action
	Agreeing   int
	Total      int
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	At         time.Time
}

// RiskReward returns the candidate's reward over risk, or 0 when the risk
// distance is degenerate.
func (c Candidate) RiskReward() float64 {
	dist := math.Abs(c.Entry - c.StopLoss)
	if dist <= 0 || math.IsNaN(dist) {
		return 0
	}
	return math.Abs(c.TakeProfit-c.Entry) / dist
}

// FromDecision builds a candidate from an ensemble decision. Geometry comes
// from the most confident supporting signal.
func FromDecision(symbol string, d ensemble.Decision, at time.Time) Candidate {
	c := Candidate{
		Symbol:   symbol,
		Action:   d.Action,
		Agreeing: d.Agreeing,
		Total:    d.Total,
		At:       at,
	}

	supporting := d.Supporting()
	if len(supporting) == 0 {
		return c
	}
	sort.SliceStable(supporting, func(i, j int) bool {
		if supporting[i].Confidence != supporting[j].Confidence {
			return supporting[i].Confidence > supporting[j].Confidence
		}
		return supporting[i].Strategy < supporting[j].Strategy
	})
	best := supporting[0]
	c.Entry = best.Entry
	c.StopLoss = best.StopLoss
	c.TakeProfit = best.TakeProfit
	return c
}

// Result is the verdict of the filter
type Result struct {
	Action         core.Action
	Reason         core.Reason
	AgreementRatio float64
	Confidence     float64
	SuccessRate    float64
	RiskReward     float64
	Entry          float64
	StopLoss       float64
	TakeProfit     float64
	Profile        risk.Level
	Message        string
}

// Passed reports whether every gate passed
func (r Result) Passed() bool {
	return r.Reason == core.ReasonNone && r.Action.IsDirectional()
}

// LossAverseFilter applies agreement, confidence, recency and risk/reward
// gates in order. The first failed gate decides the reason.
type LossAverseFilter struct {
	cfg      Config
	outcomes OutcomeProvider
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a filter. Gate thresholds are used as given, so a zero
// threshold disables its gate; start from DefaultConfig for the usual
// values. A non-positive Conservatism or RecencyWindow falls back to the
// default. A nil outcomes provider treats every symbol as having no history.
func New(cfg Config, outcomes OutcomeProvider, logger ...*zap.Logger) *LossAverseFilter {
	def := DefaultConfig()
	if cfg.Conservatism <= 0 {
		cfg.Conservatism = def.Conservatism
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = def.RecencyWindow
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &LossAverseFilter{cfg: cfg, outcomes: outcomes, now: time.Now, logger: l}
}

// SetClock overrides the clock used when a candidate carries no time
func (f *LossAverseFilter) SetClock(now func() time.Time) {
	f.now = now
}

// Config returns the effective thresholds
func (f *LossAverseFilter) Config() Config {
	return f.cfg
}

// Apply runs the gates. On a pass, entry is kept and stop and target are
// recomputed from the profile's percentages.
func (f *LossAverseFilter) Apply(ctx context.Context, c Candidate, profile risk.Profile) Result {
	res := Result{Action: core.ActionHold, Profile: profile.Level}
	if c.Total > 0 {
		res.AgreementRatio = float64(c.Agreeing) / float64(c.Total)
	}
	res.Confidence = math.Min(1, res.AgreementRatio*f.cfg.Conservatism)
	res.RiskReward = c.RiskReward()

	if !c.Action.IsDirectional() {
		return f.reject(c, res, core.ReasonNoConsensus)
	}

	if c.Agreeing < f.cfg.MinAgree {
		return f.reject(c, res, core.ReasonLowAgreement)
	}

	if res.Confidence < f.cfg.MinConfidence {
		return f.reject(c, res, core.ReasonLowConfidence)
	}

	rate, err := f.successRate(ctx, c)
	res.SuccessRate = rate
	if err != nil {
		f.logger.Warn("recent outcomes unavailable, failing closed",
			zap.String("symbol", c.Symbol),
			zap.String("action", string(c.Action)),
			zap.Error(err),
		)
		return f.reject(c, res, core.ReasonRecentPoor)
	}
	if rate < f.cfg.MinSuccessRate {
		return f.reject(c, res, core.ReasonRecentPoor)
	}

	if res.RiskReward < f.cfg.MinRiskReward {
		return f.reject(c, res, core.ReasonPoorRiskReward)
	}

	res.Action = c.Action
	res.Entry = c.Entry
	res.StopLoss, res.TakeProfit = levels(c.Action, c.Entry, profile)
	res.Message = fmt.Sprintf("%s %s: %d of %d strategies agree, confidence %.0f%%, recent success %.0f%%, R:R %.2f. Entry %.4f, stop %.4f, target %.4f (%s risk)",
		c.Action, c.Symbol, c.Agreeing, c.Total, res.Confidence*100, rate*100, res.RiskReward,
		res.Entry, res.StopLoss, res.TakeProfit, profile.Level)
	return res
}

func (f *LossAverseFilter) successRate(ctx context.Context, c Candidate) (float64, error) {
	if f.outcomes == nil {
		return neutralSuccessRate, nil
	}
	at := c.At
	if at.IsZero() {
		at = f.now()
	}
	rate, samples, err := f.outcomes.SuccessRate(ctx, c.Symbol, c.Action, at.Add(-f.cfg.RecencyWindow))
	if err != nil {
		return 0, err
	}
	if samples == 0 {
		return neutralSuccessRate, nil
	}
	return rate, nil
}

func (f *LossAverseFilter) reject(c Candidate, res Result, reason core.Reason) Result {
	res.Action = core.ActionHold
	res.Reason = reason
	res.Message = fmt.Sprintf("hold %s: %s", c.Symbol, reason)
	f.logger.Debug("decision rejected",
		zap.String("symbol", c.Symbol),
		zap.String("action", string(c.Action)),
		zap.String("reason", reason.String()),
		zap.Int("agreeing", c.Agreeing),
		zap.Int("total", c.Total),
		zap.Float64("confidence", res.Confidence),
		zap.Float64("risk_reward", res.RiskReward),
	)
	return res
}

func levels(action core.Action, entry float64, p risk.Profile) (stop, target float64) {
	if action == core.ActionSell {
		return entry * (1 + p.StopLossPct), entry * (1 - p.TakeProfitPct)
	}
	return entry * (1 - p.StopLossPct), entry * (1 + p.TakeProfitPct)
}
