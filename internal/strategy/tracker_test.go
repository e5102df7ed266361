package strategy

import (
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPattern replays a fixed sequence of setups, one per Detect call.
type scriptedPattern struct {
	setups []Setup
	calls  int
}

func (s *scriptedPattern) Name() string          { return "scripted" }
func (s *scriptedPattern) Description() string   { return "scripted" }
func (s *scriptedPattern) MinCandles() int       { return 5 }
func (s *scriptedPattern) Init(cfg Config) error { return nil }
func (s *scriptedPattern) Detect(bars []core.Candle) Setup {
	setup := s.setups[s.calls%len(s.setups)]
	s.calls++
	return setup
}

func completedBuy() Setup {
	return Setup{Phase: PhaseCompleted, Action: core.ActionBuy, Stop: 99, Strength: 0.4, Reason: "scripted"}
}

func TestTracker_StateMachine(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{
		None(),
		Forming("coiling"),
		completedBuy(),
		completedBuy(),
		None(),
		completedBuy(),
	}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	want := []State{StateNoPattern, StateForming, StateJustCompleted, StateCooling, StateNoPattern, StateJustCompleted}
	for i, expected := range want {
		window := bars[:5+i]
		state, err := tr.Ingest("BTC", window)
		require.NoError(t, err)
		assert.Equal(t, expected, state, "bar %d", i)
	}
}

func TestTracker_SameBarIsNoop(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	tr.Ingest("BTC", bars)
	tr.Ingest("BTC", bars)

	assert.Equal(t, 1, p.calls)
	assert.True(t, tr.HasJustCompleted("BTC"))
}

func TestTracker_BelowMinCandlesResets(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())

	state, err := tr.Ingest("BTC", testutil.Flat(3, 100))
	require.NoError(t, err)
	assert.Equal(t, StateNoPattern, state)
	assert.Equal(t, 0, p.calls)
	assert.Equal(t, core.ActionHold, tr.InferredAction("BTC"))
}

func TestTracker_BuildSignal(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(20, 100)

	tr.Ingest("BTC", bars)
	require.Equal(t, core.ActionBuy, tr.InferredAction("BTC"))

	sig, reason := tr.BuildSignal("BTC", core.ActionSell)
	assert.Nil(t, sig)
	assert.Equal(t, core.ReasonNoPattern, reason)

	sig, _ = tr.BuildSignal("BTC", core.ActionBuy)
	require.NotNil(t, sig)
	assert.Equal(t, "scripted", sig.Strategy)
	assert.Equal(t, bars[len(bars)-1].Time, sig.GeneratedAt)
	assert.NoError(t, sig.Validate())

	tr.MarkEmitted("BTC")
	assert.Equal(t, StateCooling, tr.State("BTC"))
	sig, _ = tr.BuildSignal("BTC", core.ActionBuy)
	assert.Nil(t, sig)
}

func TestTracker_SymbolsAreIndependent(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	tr.Ingest("BTC", bars)
	tr.Ingest("ETH", bars)

	assert.True(t, tr.HasJustCompleted("BTC"))
	assert.True(t, tr.HasJustCompleted("ETH"))

	tr.Forget("BTC")
	assert.Equal(t, StateNoPattern, tr.State("BTC"))
	assert.True(t, tr.HasJustCompleted("ETH"))
}

func TestTracker_HoldCompletionIgnored(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{{Phase: PhaseCompleted, Action: core.ActionHold}}}
	tr := NewTracker(p, DefaultGeometry())

	state, _ := tr.Ingest("BTC", testutil.Flat(10, 100))
	assert.Equal(t, StateNoPattern, state)
}

func TestParams(t *testing.T) {
	params := map[string]any{"i": 3, "f": 2.5, "fi": 7.0, "b": true}

	assert.Equal(t, 3, IntParam(params, "i", 1))
	assert.Equal(t, 7, IntParam(params, "fi", 1))
	assert.Equal(t, 1, IntParam(params, "missing", 1))
	assert.Equal(t, 2.5, FloatParam(params, "f", 0))
	assert.Equal(t, 3.0, FloatParam(params, "i", 0))
	assert.True(t, BoolParam(params, "b", false))
	assert.False(t, BoolParam(nil, "b", false))
}

func revise(bars []core.Candle, close float64) []core.Candle {
	out := append([]core.Candle(nil), bars...)
	last := out[len(out)-1]
	last.Close = close
	if close > last.High {
		last.High = close
	}
	out[len(out)-1] = last
	return out
}

func TestTracker_RevisedBarIsEvaluatedAgain(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{None(), completedBuy(), completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	state, err := tr.Ingest("BTC", bars[:9])
	require.NoError(t, err)
	assert.Equal(t, StateNoPattern, state)

	state, err = tr.Ingest("BTC", revise(bars[:9], 101))
	require.NoError(t, err)
	assert.Equal(t, StateJustCompleted, state)
	assert.Equal(t, 2, p.calls)

	// the completion carries into the next bar as persisting
	state, err = tr.Ingest("BTC", bars)
	require.NoError(t, err)
	assert.Equal(t, StateCooling, state)
}

func TestTracker_RevisionRestoresPriorPhase(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy(), None(), completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	tr.Ingest("BTC", bars[:9])
	require.True(t, tr.HasJustCompleted("BTC"))

	state, _ := tr.Ingest("BTC", bars)
	assert.Equal(t, StateNoPattern, state)

	// the previous bar had already completed, so the revised bar only persists it
	state, _ = tr.Ingest("BTC", revise(bars, 101))
	assert.Equal(t, StateCooling, state)
}

func TestTracker_RevisionAfterEmitDoesNotRepeat(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	tr.Ingest("BTC", bars)
	require.True(t, tr.HasJustCompleted("BTC"))
	tr.MarkEmitted("BTC")

	state, _ := tr.Ingest("BTC", revise(bars, 100.2))
	assert.Equal(t, StateCooling, state)
	assert.Equal(t, 2, p.calls)
}

func TestTracker_OlderBarIgnored(t *testing.T) {
	p := &scriptedPattern{setups: []Setup{completedBuy()}}
	tr := NewTracker(p, DefaultGeometry())
	bars := testutil.Flat(10, 100)

	tr.Ingest("BTC", bars)
	tr.Ingest("BTC", bars[:9])

	assert.Equal(t, 1, p.calls)
}
