package stochastic_cross

import (
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/strategy"
	"github.com/newthinker/signalcore/internal/testutil"
)

// In a steady half-unit decline every raw %K is 6.25, so %K == %D until the
// bounce bar at 101 lifts %K to about 10.8 over %D 7.8.
func oversoldBounce() []core.Candle {
	closes := testutil.Closes(testutil.Trend(40, 120, -0.5))
	return testutil.Series(append(closes, 100, 101)...)
}

func overboughtRollover() []core.Candle {
	closes := testutil.Closes(testutil.Trend(40, 80, 0.5))
	return testutil.Series(append(closes, 100, 99)...)
}

func TestStochasticCross_Interface(t *testing.T) {
	var _ strategy.Pattern = (*StochasticCross)(nil)
}

func TestStochasticCross_Detect(t *testing.T) {
	tests := []struct {
		name   string
		bars   []core.Candle
		phase  strategy.Phase
		action core.Action
		stop   float64
	}{
		{"bullish cross from oversold", oversoldBounce(), strategy.PhaseCompleted, core.ActionBuy, 99.5},
		{"bearish cross from overbought", overboughtRollover(), strategy.PhaseCompleted, core.ActionSell, 100.5},
		{"oversold without cross", oversoldBounce()[:41], strategy.PhaseForming, core.ActionHold, 0},
		{"neutral", testutil.Flat(40, 100), strategy.PhaseNone, core.ActionHold, 0},
	}

	s := New(14, 20, 80)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := s.Detect(tt.bars)
			if setup.Phase != tt.phase {
				t.Fatalf("expected phase %s, got %s", tt.phase, setup.Phase)
			}
			if setup.Action != tt.action {
				t.Errorf("expected action %q, got %q", tt.action, setup.Action)
			}
			if setup.Stop != tt.stop {
				t.Errorf("expected stop %f, got %f", tt.stop, setup.Stop)
			}
		})
	}
}

func TestStochasticCross_FiresOnce(t *testing.T) {
	s := New(14, 20, 80)
	bars := testutil.Series(append(testutil.Closes(oversoldBounce()), 102.5)...)

	if setup := s.Detect(bars); setup.Phase == strategy.PhaseCompleted {
		t.Error("K staying above D must not complete again")
	}
}

func TestStochasticCross_SignalGeometry(t *testing.T) {
	tr := strategy.NewTracker(New(14, 20, 80), strategy.DefaultGeometry())

	if _, err := tr.Ingest("BTC", oversoldBounce()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig, reason := tr.BuildSignal("BTC", core.ActionBuy)
	if sig == nil {
		t.Fatalf("expected signal, got reason %s", reason)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("invalid signal: %v", err)
	}
}

func TestStochasticCross_Init(t *testing.T) {
	s := New(14, 20, 80)
	if err := s.Init(strategy.Config{Params: map[string]any{"oversold": 90}}); err == nil {
		t.Error("expected error when oversold >= overbought")
	}
}
