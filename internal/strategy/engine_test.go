package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/signalcore/internal/cooldown"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/testutil"
)

// mockPattern completes whenever the latest close is above trigger and the
// previous close was not.
type mockPattern struct {
	name    string
	min     int
	trigger float64
	stop    float64
	panics  bool
}

func (m *mockPattern) Name() string          { return m.name }
func (m *mockPattern) Description() string   { return "mock pattern" }
func (m *mockPattern) MinCandles() int       { return m.min }
func (m *mockPattern) Init(cfg Config) error { return nil }
func (m *mockPattern) Detect(bars []core.Candle) Setup {
	if m.panics {
		panic("boom")
	}
	n := len(bars)
	prev, curr := bars[n-2].Close, bars[n-1].Close
	if prev <= m.trigger && curr > m.trigger {
		return Setup{
			Phase:    PhaseCompleted,
			Action:   core.ActionBuy,
			Stop:     m.stop,
			Strength: 0.5,
			Reason:   "crossed trigger",
		}
	}
	if curr > m.trigger {
		return Setup{Phase: PhaseCompleted, Action: core.ActionBuy, Stop: m.stop}
	}
	return None()
}

func crossingBars() []core.Candle {
	closes := make([]float64, 0, 30)
	for i := 0; i < 29; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 101)
	return testutil.Series(closes...)
}

func TestEngine_RegisterAndEvaluate(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), nil)
	engine.Register(&mockPattern{name: "mock", min: 20, trigger: 100.5, stop: 99})

	outcomes, err := engine.Evaluate(context.Background(), "BTC", crossingBars())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}

	o := outcomes[0]
	if !o.Voted() || o.Action != core.ActionBuy {
		t.Fatalf("expected buy vote, got %+v", o)
	}
	if o.Score != 1.5 {
		t.Errorf("expected score 1.5, got %f", o.Score)
	}
	if err := o.Signal.Validate(); err != nil {
		t.Errorf("signal should be valid: %v", err)
	}
	if o.Signal.Strategy != "mock" || o.Signal.Symbol != "BTC" {
		t.Errorf("unexpected signal identity: %s/%s", o.Signal.Strategy, o.Signal.Symbol)
	}
}

func TestEngine_InsufficientHistoryHolds(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), nil)
	engine.Register(&mockPattern{name: "mock", min: 60, trigger: 100.5, stop: 99})

	outcomes, _ := engine.Evaluate(context.Background(), "BTC", crossingBars())
	if outcomes[0].Action != core.ActionHold {
		t.Errorf("expected hold, got %s", outcomes[0].Action)
	}
	if outcomes[0].Reason != core.ReasonInsufficientHistory {
		t.Errorf("expected insufficient_history, got %s", outcomes[0].Reason)
	}
}

func TestEngine_PanicIsIsolated(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), nil)
	engine.Register(&mockPattern{name: "bad", min: 2, panics: true})
	engine.Register(&mockPattern{name: "good", min: 2, trigger: 100.5, stop: 99})

	outcomes, err := engine.Evaluate(context.Background(), "BTC", crossingBars())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}

	// sorted by name: bad, good
	if outcomes[0].Reason != core.ReasonStrategyFailed || outcomes[0].Err == nil {
		t.Errorf("expected failed outcome, got %+v", outcomes[0])
	}
	if outcomes[0].Action != core.ActionHold {
		t.Errorf("failed strategy must hold")
	}
	if !outcomes[1].Voted() {
		t.Errorf("healthy strategy should still vote")
	}
}

func TestEngine_CooldownSuppressesRepeat(t *testing.T) {
	book := cooldown.New(6*time.Hour, nil)
	engine := NewEngine(DefaultGeometry(), book)
	engine.Register(&mockPattern{name: "mock", min: 2, trigger: 100.5, stop: 99})

	bars := crossingBars()
	first, _ := engine.Evaluate(context.Background(), "BTC", bars)
	if !first[0].Voted() {
		t.Fatalf("first completion should emit")
	}

	// Drop below and cross again two hours later
	bars = testutil.Append(bars, testutil.Bar(101, 101.5, 99.5, 100, 1000))
	engine.Evaluate(context.Background(), "BTC", bars)
	bars = testutil.Append(bars, testutil.Bar(100, 101.5, 99.5, 101, 1000))
	second, _ := engine.Evaluate(context.Background(), "BTC", bars)

	if second[0].Voted() {
		t.Errorf("completion inside the window must be suppressed")
	}
	if second[0].Reason != core.ReasonCooldown {
		t.Errorf("expected cooldown_suppressed, got %s", second[0].Reason)
	}
}

func TestEngine_CooldownExpires(t *testing.T) {
	book := cooldown.New(time.Hour, nil)
	engine := NewEngine(DefaultGeometry(), book)
	engine.Register(&mockPattern{name: "mock", min: 2, trigger: 100.5, stop: 99})

	bars := crossingBars()
	engine.Evaluate(context.Background(), "BTC", bars)

	bars = testutil.Append(bars, testutil.Bar(101, 101.5, 99.5, 100, 1000))
	engine.Evaluate(context.Background(), "BTC", bars)
	bars = testutil.Append(bars, testutil.Bar(100, 101.5, 99.5, 101, 1000))
	second, _ := engine.Evaluate(context.Background(), "BTC", bars)

	if !second[0].Voted() {
		t.Errorf("completion after the window should emit, got reason %s", second[0].Reason)
	}
}

func TestEngine_PersistingConditionDoesNotRefire(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), cooldown.New(time.Minute, nil))
	engine.Register(&mockPattern{name: "mock", min: 2, trigger: 100.5, stop: 99})

	bars := crossingBars()
	emitted := 0
	for i := 0; i < 5; i++ {
		outcomes, _ := engine.Evaluate(context.Background(), "BTC", bars)
		if outcomes[0].Voted() {
			emitted++
		}
		bars = testutil.Append(bars, testutil.Bar(101, 101.5, 100.5, 101, 1000))
	}

	if emitted != 1 {
		t.Errorf("expected exactly one emission while the level holds, got %d", emitted)
	}
}

func TestEngine_EvaluateWithStrategies(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), nil)
	engine.Register(&mockPattern{name: "s1", min: 2, trigger: 100.5, stop: 99})
	engine.Register(&mockPattern{name: "s2", min: 2, trigger: 100.5, stop: 99})

	outcomes, err := engine.EvaluateWithStrategies(context.Background(), "BTC", crossingBars(), []string{"s1", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Strategy != "s1" {
		t.Errorf("expected only s1, got %+v", outcomes)
	}
}

func TestEngine_ContextCanceled(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), nil)
	engine.Register(&mockPattern{name: "s1", min: 2, trigger: 100.5, stop: 99})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Evaluate(ctx, "BTC", crossingBars())
	if err == nil {
		t.Error("expected context error")
	}
}

func TestEngine_NamesAndMinCandles(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), nil)
	engine.Register(&mockPattern{name: "b", min: 60})
	engine.Register(&mockPattern{name: "a", min: 50})

	names := engine.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected names %v", names)
	}
	if engine.MinCandles() != 50 {
		t.Errorf("expected 50, got %d", engine.MinCandles())
	}
}

// levelPattern completes on the first close above trigger via Edge.
type levelPattern struct {
	trigger float64
}

func (l *levelPattern) Name() string          { return "level" }
func (l *levelPattern) Description() string   { return "close above level" }
func (l *levelPattern) MinCandles() int       { return 2 }
func (l *levelPattern) Init(cfg Config) error { return nil }
func (l *levelPattern) Detect(bars []core.Candle) Setup {
	return Edge(bars, func(b []core.Candle) Setup {
		if b[len(b)-1].Close > l.trigger {
			return Setup{Phase: PhaseCompleted, Action: core.ActionBuy, Stop: 99, Strength: 0.5, Reason: "above level"}
		}
		return None()
	})
}

func TestEngine_InProgressBarUpdateCompletes(t *testing.T) {
	engine := NewEngine(DefaultGeometry(), cooldown.New(time.Minute, nil))
	engine.Register(&levelPattern{trigger: 100.5})

	bars := testutil.Append(testutil.Flat(30, 100), testutil.Bar(100, 100.5, 99.5, 100, 1000))
	partial := bars[len(bars)-1]

	revised := append([]core.Candle(nil), bars...)
	final := partial
	final.Close, final.High = 101, 101.5
	revised[len(revised)-1] = final

	next := testutil.Append(revised, testutil.Bar(101, 101.7, 100.8, 101.2, 1000))

	emitted := 0
	for i, window := range [][]core.Candle{bars, revised, next} {
		outcomes, err := engine.Evaluate(context.Background(), "BTC", window)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if outcomes[0].Voted() {
			emitted++
			if i != 1 {
				t.Errorf("expected the completion on the revised bar, got step %d", i)
			}
			if !outcomes[0].Signal.GeneratedAt.Equal(partial.Time) {
				t.Errorf("signal stamped %s, want %s", outcomes[0].Signal.GeneratedAt, partial.Time)
			}
		}
	}
	if emitted != 1 {
		t.Errorf("expected exactly one completion, got %d", emitted)
	}
}
