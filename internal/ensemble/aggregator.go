// Package ensemble combines per-strategy votes into one weighted decision.
package ensemble

import (
	"fmt"
	"math"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/strategy"
	"go.uber.org/zap"
)

// DefaultEpsilon is the margin one side must clear to win the vote
const DefaultEpsilon = 1e-6

// Vote is one strategy's opinion
type Vote struct {
	Strategy   string
	Action     core.Action
	Score      float64
	Confidence float64
	Signal     *core.Signal
	Err        error
}

// Decision is the weighted outcome of a vote
type Decision struct {
	Action      core.Action
	BuyTotal    float64
	SellTotal   float64
	Strength    float64
	Agreeing    int // votes that match Action
	Directional int // buy or sell votes
	Total       int // every vote, including holds
	Votes       []Vote
	Reason      core.Reason
}

// AgreementRatio returns Agreeing / Total
func (d Decision) AgreementRatio() float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Agreeing) / float64(d.Total)
}

// Supporting returns the signals of votes that agree with the decision
func (d Decision) Supporting() []*core.Signal {
	var out []*core.Signal
	for _, v := range d.Votes {
		if v.Action == d.Action && v.Signal != nil {
			out = append(out, v.Signal)
		}
	}
	return out
}

// Aggregator runs the weighted vote
type Aggregator struct {
	epsilon float64
	logger  *zap.Logger
}

// New creates an aggregator. A non-positive epsilon uses DefaultEpsilon.
func New(epsilon float64, logger ...*zap.Logger) *Aggregator {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Aggregator{epsilon: epsilon, logger: l}
}

// Sanitize maps a malformed vote to a neutral hold. The second return value
// reports whether the vote was usable as given.
func Sanitize(v Vote) (Vote, bool) {
	neutral := Vote{Strategy: v.Strategy, Action: core.ActionHold, Err: v.Err}
	switch {
	case v.Err != nil:
		return neutral, false
	case v.Action != core.ActionBuy && v.Action != core.ActionSell && v.Action != core.ActionHold:
		return neutral, false
	case !finite(v.Score) || v.Score < 0:
		return neutral, false
	case !finite(v.Confidence) || v.Confidence < 0 || v.Confidence > 1:
		return neutral, false
	case v.Action == core.ActionHold:
		return neutral, true
	}
	return v, true
}

// Aggregate accumulates score x confidence x weight per side. With no
// weights every strategy weighs 1.0; otherwise a strategy missing from
// weights contributes nothing.
func (a *Aggregator) Aggregate(votes []Vote, weights map[string]float64) Decision {
	d := Decision{
		Action: core.ActionHold,
		Total:  len(votes),
		Votes:  make([]Vote, 0, len(votes)),
	}

	for _, raw := range votes {
		v, ok := Sanitize(raw)
		if !ok {
			a.logger.Debug("malformed strategy output treated as hold",
				zap.String("strategy", raw.Strategy),
				zap.String("action", string(raw.Action)),
				zap.Float64("score", raw.Score),
				zap.Float64("confidence", raw.Confidence),
				zap.Error(raw.Err),
			)
		}
		d.Votes = append(d.Votes, v)
		if !v.Action.IsDirectional() {
			continue
		}
		d.Directional++

		w := 1.0
		if len(weights) > 0 {
			w = weights[v.Strategy]
			if !finite(w) || w < 0 {
				w = 0
			}
		}
		contribution := v.Score * v.Confidence * w
		if v.Action == core.ActionBuy {
			d.BuyTotal += contribution
		} else {
			d.SellTotal += contribution
		}
	}

	d.Strength = math.Abs(d.BuyTotal - d.SellTotal)
	switch {
	case d.BuyTotal-d.SellTotal > a.epsilon:
		d.Action = core.ActionBuy
	case d.SellTotal-d.BuyTotal > a.epsilon:
		d.Action = core.ActionSell
	default:
		d.Reason = core.ReasonNoConsensus
	}

	if d.Action.IsDirectional() {
		for _, v := range d.Votes {
			if v.Action == d.Action {
				d.Agreeing++
			}
		}
	}
	return d
}

// FromOutcomes converts engine outcomes into votes. Outcomes without a
// signal vote hold.
func FromOutcomes(outcomes []strategy.Outcome) []Vote {
	votes := make([]Vote, 0, len(outcomes))
	for _, o := range outcomes {
		v := Vote{Strategy: o.Strategy, Action: core.ActionHold, Err: o.Err}
		if o.Voted() {
			v.Action = o.Action
			v.Score = o.Score
			v.Confidence = o.Confidence
			v.Signal = o.Signal
		}
		votes = append(votes, v)
	}
	return votes
}

// String summarizes a decision for logs
func (d Decision) String() string {
	return fmt.Sprintf("%s buy=%.3f sell=%.3f strength=%.3f agree=%d/%d", d.Action, d.BuyTotal, d.SellTotal, d.Strength, d.Agreeing, d.Total)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
