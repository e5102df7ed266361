package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/signalcore/internal/cooldown"
	"github.com/newthinker/signalcore/internal/core"
	"go.uber.org/zap"
)

// Outcome is one strategy's contribution for a single evaluation
type Outcome struct {
	Strategy   string
	Action     core.Action
	Score      float64
	Confidence float64
	Signal     *core.Signal
	Reason     core.Reason
	Err        error
}

// Voted reports whether the outcome carries a directional vote
func (o Outcome) Voted() bool {
	return o.Signal != nil && o.Action.IsDirectional()
}

// Engine manages pattern trackers and runs them against a symbol's history
type Engine struct {
	mu        sync.RWMutex
	trackers  map[string]*Tracker
	geometry  Geometry
	cooldowns *cooldown.Book
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates a new strategy engine
func NewEngine(geometry Geometry, cooldowns *cooldown.Book, logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	if cooldowns == nil {
		cooldowns = cooldown.New(cooldown.DefaultWindow, l)
	}
	return &Engine{
		trackers:  make(map[string]*Tracker),
		geometry:  geometry,
		cooldowns: cooldowns,
		logger:    l,
		now:       time.Now,
	}
}

// SetClock overrides the clock used when a bar has no timestamp
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// Register adds a pattern to the engine, replacing any with the same name
func (e *Engine) Register(p Pattern) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trackers[p.Name()] = NewTracker(p, e.geometry)
}

// Get retrieves a tracker by strategy name
func (e *Engine) Get(name string) (*Tracker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.trackers[name]
	return t, ok
}

// GetAll returns all registered trackers sorted by name
func (e *Engine) GetAll() []*Tracker {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*Tracker, 0, len(e.trackers))
	for _, t := range e.trackers {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Names returns the registered strategy names, sorted
func (e *Engine) Names() []string {
	trackers := e.GetAll()
	names := make([]string, len(trackers))
	for i, t := range trackers {
		names[i] = t.Name()
	}
	return names
}

// MinCandles returns the smallest history any registered pattern can use
func (e *Engine) MinCandles() int {
	min := 0
	for _, t := range e.GetAll() {
		if n := t.MinCandles(); min == 0 || n < min {
			min = n
		}
	}
	return min
}

// Cooldowns returns the candidate cooldown book
func (e *Engine) Cooldowns() *cooldown.Book {
	return e.cooldowns
}

// Evaluate runs every tracker on bars and returns one outcome per strategy.
// Strategies that fail are isolated into a hold outcome.
func (e *Engine) Evaluate(ctx context.Context, symbol string, bars []core.Candle) ([]Outcome, error) {
	return e.EvaluateWithStrategies(ctx, symbol, bars, nil)
}

// EvaluateWithStrategies runs the named strategies only; nil means all.
func (e *Engine) EvaluateWithStrategies(ctx context.Context, symbol string, bars []core.Candle, names []string) ([]Outcome, error) {
	var trackers []*Tracker
	if names == nil {
		trackers = e.GetAll()
	} else {
		for _, name := range names {
			if t, ok := e.Get(name); ok {
				trackers = append(trackers, t)
			}
		}
	}

	outcomes := make([]Outcome, 0, len(trackers))
	for _, t := range trackers {
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}
		outcomes = append(outcomes, e.evaluateOne(t, symbol, bars))
	}
	return outcomes, nil
}

func (e *Engine) evaluateOne(t *Tracker, symbol string, bars []core.Candle) (out Outcome) {
	out = Outcome{Strategy: t.Name(), Action: core.ActionHold}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Strategy: t.Name(),
				Action:   core.ActionHold,
				Reason:   core.ReasonStrategyFailed,
				Err:      core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s panicked: %v", t.Name(), r)),
			}
			e.logger.Warn("strategy analysis failed",
				zap.String("strategy", t.Name()),
				zap.String("symbol", symbol),
				zap.Error(out.Err),
			)
		}
	}()

	if len(bars) < t.MinCandles() {
		out.Reason = core.ReasonInsufficientHistory
		return out
	}

	if _, err := t.Ingest(symbol, bars); err != nil {
		out.Reason = core.ReasonStrategyFailed
		out.Err = err
		e.logger.Warn("strategy analysis failed",
			zap.String("strategy", t.Name()),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return out
	}

	if !t.HasJustCompleted(symbol) {
		out.Reason = core.ReasonNoPattern
		return out
	}

	action := t.InferredAction(symbol)
	sig, reason := t.BuildSignal(symbol, action)
	if sig == nil {
		out.Reason = reason
		e.logger.Debug("candidate rejected",
			zap.String("strategy", t.Name()),
			zap.String("symbol", symbol),
			zap.String("reason", reason.String()),
		)
		return out
	}

	at := sig.GeneratedAt
	if at.IsZero() {
		e.mu.RLock()
		at = e.now()
		e.mu.RUnlock()
		sig.GeneratedAt = at
	}

	key := cooldown.Key{Strategy: t.Name(), Symbol: symbol, Action: action}
	t.MarkEmitted(symbol)
	if !e.cooldowns.TryAcquire(key, at) {
		out.Reason = core.ReasonCooldown
		e.logger.Debug("candidate rejected",
			zap.String("strategy", t.Name()),
			zap.String("symbol", symbol),
			zap.String("reason", out.Reason.String()),
		)
		return out
	}

	setup := t.Setup(symbol)
	out.Action = action
	out.Score = 1 + setup.Strength
	out.Confidence = sig.Confidence
	out.Signal = sig
	return out
}
