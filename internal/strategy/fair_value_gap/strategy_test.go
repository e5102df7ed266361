package fair_value_gap

import (
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/strategy"
	"github.com/newthinker/signalcore/internal/testutil"
)

// bullishFill: candles 45..47 leave a gap between 100.6 and 101.2 which the
// last bar dips into and rejects.
func bullishFill() []core.Candle {
	return testutil.Append(testutil.Flat(45, 100),
		testutil.Bar(100, 100.6, 99.8, 100.5, 1000),
		testutil.Bar(100.5, 102.5, 100.4, 102.4, 1000),
		testutil.Bar(102.4, 103.5, 101.2, 103.4, 1000),
		testutil.Bar(103.4, 103.6, 102.5, 102.6, 1000),
		testutil.Bar(102.6, 102.7, 101.7, 101.8, 1000),
		testutil.Bar(101.8, 101.9, 101.0, 101.6, 1200),
	)
}

func bearishFill() []core.Candle {
	return testutil.Append(testutil.Flat(45, 100),
		testutil.Bar(100, 100.2, 99.4, 99.5, 1000),
		testutil.Bar(99.5, 99.6, 97.5, 97.6, 1000),
		testutil.Bar(97.6, 98.8, 96.5, 96.6, 1000),
		testutil.Bar(96.6, 97.5, 96.4, 97.4, 1000),
		testutil.Bar(97.4, 98.3, 97.3, 98.2, 1000),
		testutil.Bar(98.2, 99.0, 97.9, 98.4, 1000),
	)
}

func TestFairValueGap_Interface(t *testing.T) {
	var _ strategy.Pattern = (*FairValueGap)(nil)
}

func TestFairValueGap_BullishFill(t *testing.T) {
	f := New(30, 0.001)

	setup := f.Detect(bullishFill())
	if setup.Phase != strategy.PhaseCompleted || setup.Action != core.ActionBuy {
		t.Fatalf("expected completed buy, got %s/%s", setup.Phase, setup.Action)
	}
	if setup.Stop != 100.6 {
		t.Errorf("expected stop at gap bottom 100.6, got %f", setup.Stop)
	}
	if setup.Metadata["gap_top"] != 101.2 {
		t.Errorf("unexpected gap top %v", setup.Metadata["gap_top"])
	}
}

func TestFairValueGap_BearishFill(t *testing.T) {
	f := New(30, 0.001)

	setup := f.Detect(bearishFill())
	if setup.Phase != strategy.PhaseCompleted || setup.Action != core.ActionSell {
		t.Fatalf("expected completed sell, got %s/%s", setup.Phase, setup.Action)
	}
	if setup.Stop != 99.4 {
		t.Errorf("expected stop at gap top 99.4, got %f", setup.Stop)
	}
}

func TestFairValueGap_FormingBeforeFill(t *testing.T) {
	f := New(30, 0.001)
	bars := bullishFill()

	if setup := f.Detect(bars[:len(bars)-1]); setup.Phase != strategy.PhaseForming {
		t.Errorf("expected forming while price approaches the gap, got %s", setup.Phase)
	}
}

func TestFairValueGap_FilledGapIsSpent(t *testing.T) {
	f := New(30, 0.001)
	bars := testutil.Append(bullishFill(), testutil.Bar(101.6, 101.9, 101.0, 101.7, 1000))

	if setup := f.Detect(bars); setup.Phase == strategy.PhaseCompleted {
		t.Error("a gap traded into on the previous bar must not fire again")
	}
}

func TestFairValueGap_MinimumGapSize(t *testing.T) {
	f := New(30, 0.05)
	if setup := f.Detect(bullishFill()); setup.Phase == strategy.PhaseCompleted {
		t.Error("gap smaller than the minimum must be ignored")
	}
}

func TestFairValueGap_SignalGeometry(t *testing.T) {
	tr := strategy.NewTracker(New(30, 0.001), strategy.DefaultGeometry())

	tr.Ingest("ETH", bullishFill())
	sig, reason := tr.BuildSignal("ETH", core.ActionBuy)
	if sig == nil {
		t.Fatalf("expected signal, got reason %s", reason)
	}
	if err := sig.Validate(); err != nil {
		t.Errorf("invalid signal: %v", err)
	}
}
