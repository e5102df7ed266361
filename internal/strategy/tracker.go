package strategy

import (
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

// State is the lifecycle position of one (pattern, symbol) pair
type State int

const (
	StateNoPattern State = iota
	StateForming
	StateJustCompleted
	StateCooling
)

func (s State) String() string {
	switch s {
	case StateForming:
		return "forming"
	case StateJustCompleted:
		return "just_completed"
	case StateCooling:
		return "cooling"
	default:
		return "no_pattern"
	}
}

type symbolState struct {
	state      State
	setup      Setup
	bars       []core.Candle
	lastBar    core.Candle
	lastPhase  Phase
	lastAction core.Action

	// phase before lastBar was first evaluated, restored when it is revised
	basePhase  Phase
	baseAction core.Action
	// action already emitted on lastBar
	emitted core.Action
}

// Tracker runs a Pattern per symbol and keeps the completion state machine.
type Tracker struct {
	pattern  Pattern
	geometry Geometry

	mu      sync.Mutex
	symbols map[string]*symbolState
}

// NewTracker wraps a pattern with per-symbol state
func NewTracker(p Pattern, g Geometry) *Tracker {
	return &Tracker{
		pattern:  p,
		geometry: g,
		symbols:  make(map[string]*symbolState),
	}
}

// Name returns the pattern name
func (t *Tracker) Name() string {
	return t.pattern.Name()
}

// Pattern returns the wrapped pattern
func (t *Tracker) Pattern() Pattern {
	return t.pattern
}

// MinCandles returns the history the pattern needs
func (t *Tracker) MinCandles() int {
	return t.pattern.MinCandles()
}

// Ingest evaluates the newest bar of bars. An unchanged or older bar is
// ignored. A revised copy of the last evaluated bar (an in-progress update)
// is evaluated again against the state that preceded it, so a completion on
// the final close is still reported once. A panicking pattern is reported as
// an error and leaves the symbol in StateNoPattern.
func (t *Tracker) Ingest(symbol string, bars []core.Candle) (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stateLocked(symbol)
	if len(bars) == 0 {
		return st.state, nil
	}

	latest := bars[len(bars)-1]
	revised := false
	if !st.lastBar.Time.IsZero() {
		switch {
		case latest.Time.Before(st.lastBar.Time):
			return st.state, nil
		case latest.Time.Equal(st.lastBar.Time):
			if latest.Equal(st.lastBar) {
				return st.state, nil
			}
			revised = true
		}
	}
	if revised {
		st.lastPhase, st.lastAction = st.basePhase, st.baseAction
	} else {
		st.basePhase, st.baseAction = st.lastPhase, st.lastAction
		st.emitted = core.ActionHold
	}
	st.lastBar = latest

	if len(bars) < t.pattern.MinCandles() {
		t.resetLocked(st)
		return st.state, nil
	}

	setup, err := t.detect(bars)
	if err != nil {
		t.resetLocked(st)
		return st.state, err
	}

	prevPhase, prevAction := st.lastPhase, st.lastAction
	st.lastPhase, st.lastAction = setup.Phase, setup.Action
	st.setup = setup
	st.bars = bars

	switch setup.Phase {
	case PhaseCompleted:
		switch {
		case !setup.Action.IsDirectional():
			st.state = StateNoPattern
		case prevPhase == PhaseCompleted && prevAction == setup.Action,
			st.emitted == setup.Action:
			st.state = StateCooling
		default:
			st.state = StateJustCompleted
		}
	case PhaseForming:
		st.state = StateForming
	default:
		st.state = StateNoPattern
	}
	return st.state, nil
}

func (t *Tracker) detect(bars []core.Candle) (setup Setup, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s panicked: %v", t.pattern.Name(), r))
		}
	}()
	return t.pattern.Detect(bars), nil
}

// HasJustCompleted reports whether the last ingested bar completed the pattern
func (t *Tracker) HasJustCompleted(symbol string) bool {
	return t.State(symbol) == StateJustCompleted
}

// InferredAction returns the completed pattern's direction, or hold
func (t *Tracker) InferredAction(symbol string) core.Action {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.symbols[symbol]
	if !ok || st.state != StateJustCompleted {
		return core.ActionHold
	}
	return st.setup.Action
}

// BuildSignal derives the signal for a just-completed pattern. It returns nil
// with a reason when nothing completed, the action disagrees with the
// pattern, or the risk geometry is rejected.
func (t *Tracker) BuildSignal(symbol string, action core.Action) (*core.Signal, core.Reason) {
	t.mu.Lock()
	st, ok := t.symbols[symbol]
	if !ok || st.state != StateJustCompleted || st.setup.Action != action {
		t.mu.Unlock()
		return nil, core.ReasonNoPattern
	}
	setup := st.setup
	bars := st.bars
	t.mu.Unlock()

	return t.geometry.Build(t.pattern.Name(), symbol, action, bars, setup, time.Time{})
}

// MarkEmitted moves a just-completed symbol into cooling
func (t *Tracker) MarkEmitted(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.symbols[symbol]; ok && st.state == StateJustCompleted {
		st.state = StateCooling
		st.emitted = st.setup.Action
	}
}

// State returns the current lifecycle state for symbol
func (t *Tracker) State(symbol string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.symbols[symbol]; ok {
		return st.state
	}
	return StateNoPattern
}

// Setup returns the last setup reported for symbol
func (t *Tracker) Setup(symbol string) Setup {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.symbols[symbol]; ok {
		return st.setup
	}
	return None()
}

// Forget drops all state for symbol
func (t *Tracker) Forget(symbol string) {
	t.mu.Lock()
	delete(t.symbols, symbol)
	t.mu.Unlock()
}

func (t *Tracker) stateLocked(symbol string) *symbolState {
	st, ok := t.symbols[symbol]
	if !ok {
		st = &symbolState{
			setup:      None(),
			lastAction: core.ActionHold,
			baseAction: core.ActionHold,
			emitted:    core.ActionHold,
		}
		t.symbols[symbol] = st
	}
	return st
}

func (t *Tracker) resetLocked(st *symbolState) {
	st.state = StateNoPattern
	st.setup = None()
	st.bars = nil
	st.lastPhase = PhaseNone
	st.lastAction = core.ActionHold
}
