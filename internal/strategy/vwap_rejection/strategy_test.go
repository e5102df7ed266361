package vwap_rejection

import (
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/strategy"
	"github.com/newthinker/signalcore/internal/testutil"
)

func TestVWAPRejection_Interface(t *testing.T) {
	var _ strategy.Pattern = (*VWAPRejection)(nil)
}

func TestVWAPRejection_Name(t *testing.T) {
	v := New(20, 0.5)
	if v.Name() != "vwap_rejection" {
		t.Errorf("expected name 'vwap_rejection', got '%s'", v.Name())
	}
	if v.MinCandles() != 50 {
		t.Errorf("expected min candles 50, got %d", v.MinCandles())
	}
}

func TestVWAPRejection_BullishWick(t *testing.T) {
	v := New(20, 0.5)
	bars := testutil.Append(testutil.Flat(60, 100), testutil.Bar(100.2, 100.4, 99.0, 100.3, 1500))

	setup := v.Detect(bars)
	if setup.Phase != strategy.PhaseCompleted || setup.Action != core.ActionBuy {
		t.Fatalf("expected completed buy, got %s/%s", setup.Phase, setup.Action)
	}
	if setup.Stop != 99.0 {
		t.Errorf("expected stop at wick low 99, got %f", setup.Stop)
	}
	if setup.VolumeRatio != 1.5 {
		t.Errorf("expected volume ratio 1.5, got %f", setup.VolumeRatio)
	}
}

func TestVWAPRejection_BearishWick(t *testing.T) {
	v := New(20, 0.5)
	bars := testutil.Append(testutil.Flat(60, 100), testutil.Bar(99.8, 101.0, 99.6, 99.7, 1000))

	setup := v.Detect(bars)
	if setup.Phase != strategy.PhaseCompleted || setup.Action != core.ActionSell {
		t.Fatalf("expected completed sell, got %s/%s", setup.Phase, setup.Action)
	}
	if setup.Stop != 101.0 {
		t.Errorf("expected stop at wick high 101, got %f", setup.Stop)
	}
}

func TestVWAPRejection_SmallWickIgnored(t *testing.T) {
	v := New(20, 0.5)
	bars := testutil.Append(testutil.Flat(60, 100), testutil.Bar(100, 100.6, 99.8, 100.5, 1000))

	if setup := v.Detect(bars); setup.Phase == strategy.PhaseCompleted {
		t.Errorf("expected no completion, got %s", setup.Action)
	}
}

func TestVWAPRejection_DoesNotRefire(t *testing.T) {
	v := New(20, 0.5)
	wick := testutil.Bar(100.2, 100.4, 99.0, 100.3, 1500)
	bars := testutil.Append(testutil.Flat(60, 100), wick, wick)

	if setup := v.Detect(bars); setup.Phase == strategy.PhaseCompleted {
		t.Error("a rejection that already completed on the previous bar must not fire again")
	}
}

func TestVWAPRejection_SignalGeometry(t *testing.T) {
	tr := strategy.NewTracker(New(20, 0.5), strategy.DefaultGeometry())
	bars := testutil.Append(testutil.Flat(60, 100), testutil.Bar(100.2, 100.4, 99.0, 100.3, 1500))

	tr.Ingest("BTC", bars)
	sig, reason := tr.BuildSignal("BTC", core.ActionBuy)
	if sig == nil {
		t.Fatalf("expected signal, got reason %s", reason)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("invalid signal: %v", err)
	}
}

func TestVWAPRejection_Init(t *testing.T) {
	v := New(20, 0.5)
	if err := v.Init(strategy.Config{Params: map[string]any{"period": 10, "wick_ratio": 0.6}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.period != 10 || v.wickRatio != 0.6 {
		t.Errorf("params not applied: %d %f", v.period, v.wickRatio)
	}

	if err := v.Init(strategy.Config{Params: map[string]any{"wick_ratio": 1.5}}); err == nil {
		t.Error("expected error for wick ratio >= 1")
	}
}
