package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

func rising(n int, start float64) []core.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]core.Candle, n)
	for i := 0; i < n; i++ {
		c := start + float64(i)
		bars[i] = core.Candle{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}
	return bars
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRSI_Extremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if got := Last(RSI(up, 5)); got != 100 {
		t.Errorf("expected RSI 100 for rising prices, got %f", got)
	}

	down := []float64{8, 7, 6, 5, 4, 3, 2, 1}
	if got := Last(RSI(down, 5)); got != 0 {
		t.Errorf("expected RSI 0 for falling prices, got %f", got)
	}

	flat := []float64{5, 5, 5, 5, 5, 5}
	if got := Last(RSI(flat, 3)); got != 50 {
		t.Errorf("expected RSI 50 for flat prices, got %f", got)
	}

	if len(RSI(up, 5)) != len(up)-5 {
		t.Errorf("unexpected RSI length %d", len(RSI(up, 5)))
	}
}

func TestRSI_NotEnoughData(t *testing.T) {
	if len(RSI([]float64{1, 2}, 14)) != 0 {
		t.Error("expected empty RSI")
	}
}

func TestMACD_FlatPrices(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 10
	}

	m := MACD(prices, 12, 26, 9)
	if len(m.MACD) != 7 || len(m.Signal) != 7 || len(m.Histogram) != 7 {
		t.Fatalf("unexpected lengths %d/%d/%d", len(m.MACD), len(m.Signal), len(m.Histogram))
	}
	for i := range m.Histogram {
		if !near(m.Histogram[i], 0) {
			t.Errorf("histogram[%d] = %f, want 0", i, m.Histogram[i])
		}
	}
}

func TestMACD_RisingPricesPositive(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	m := MACD(prices, 12, 26, 9)
	if Last(m.MACD) <= 0 {
		t.Errorf("expected positive MACD in uptrend, got %f", Last(m.MACD))
	}
}

func TestATR_ConstantRange(t *testing.T) {
	bars := rising(30, 100)
	atr := ATR(bars, 14)

	if len(atr) != len(bars)-14 {
		t.Fatalf("expected %d ATR values, got %d", len(bars)-14, len(atr))
	}
	for i, v := range atr {
		if !near(v, 2) {
			t.Errorf("atr[%d] = %f, want 2", i, v)
		}
	}
}

func TestVWAP_Weighted(t *testing.T) {
	bars := []core.Candle{
		{Open: 10, High: 10, Low: 10, Close: 10, Volume: 1},
		{Open: 20, High: 20, Low: 20, Close: 20, Volume: 3},
	}
	v := VWAP(bars, 2)
	if len(v) != 1 || !near(v[0], 17.5) {
		t.Errorf("expected VWAP 17.5, got %v", v)
	}
}

func TestVWAP_NoVolumeFallsBackToMean(t *testing.T) {
	bars := []core.Candle{
		{Open: 10, High: 10, Low: 10, Close: 10},
		{Open: 20, High: 20, Low: 20, Close: 20},
	}
	if v := VWAP(bars, 2); !near(v[0], 15) {
		t.Errorf("expected 15, got %f", v[0])
	}
}

func TestStochastic_CloseAtHigh(t *testing.T) {
	bars := make([]core.Candle, 30)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = core.Candle{Open: c - 1, High: c, Low: c - 2, Close: c}
	}
	k, d := Stochastic(bars, 14, 3, 3)
	if len(k) == 0 || len(k) != len(d) {
		t.Fatalf("unexpected lengths %d/%d", len(k), len(d))
	}
	if !near(Last(k), 100) || !near(Last(d), 100) {
		t.Errorf("expected 100/100, got %f/%f", Last(k), Last(d))
	}
}

func TestBollinger_FlatPrices(t *testing.T) {
	prices := []float64{5, 5, 5, 5, 5}
	b := Bollinger(prices, 3, 2)
	if len(b.Middle) != 3 {
		t.Fatalf("expected 3 values, got %d", len(b.Middle))
	}
	if b.Upper[0] != 5 || b.Lower[0] != 5 || b.Bandwidth(0) != 0 {
		t.Errorf("expected collapsed bands, got %f/%f", b.Upper[0], b.Lower[0])
	}
}

func TestSwingHighsAndLows(t *testing.T) {
	highs := []float64{1, 2, 5, 2, 1, 3, 1}
	bars := make([]core.Candle, len(highs))
	for i, h := range highs {
		bars[i] = core.Candle{High: h, Low: h - 0.5, Open: h - 0.2, Close: h - 0.2}
	}

	sh := SwingHighs(bars, 2)
	if len(sh) != 1 || sh[0].Index != 2 || sh[0].Price != 5 {
		t.Errorf("unexpected swing highs %+v", sh)
	}

	sl := SwingLows(bars, 1)
	// lows: 0.5 1.5 4.5 1.5 0.5 2.5 0.5 -> pivot low at index 4
	if len(sl) != 1 || sl[0].Index != 4 {
		t.Errorf("unexpected swing lows %+v", sl)
	}

	p, ok := LastPivotBefore(sh, 3)
	if !ok || p.Index != 2 {
		t.Errorf("expected pivot at 2, got %+v", p)
	}
	if _, ok := LastPivotBefore(sh, 2); ok {
		t.Error("expected no pivot before index 2")
	}
}

func TestStructure(t *testing.T) {
	pv := func(prices ...float64) []Pivot {
		out := make([]Pivot, len(prices))
		for i, p := range prices {
			out[i] = Pivot{Index: i * 5, Price: p}
		}
		return out
	}

	tests := []struct {
		name  string
		highs []Pivot
		lows  []Pivot
		want  int
	}{
		{"higher highs and lows", pv(10, 12), pv(8, 9), 1},
		{"lower highs and lows", pv(12, 10), pv(9, 8), -1},
		{"mixed", pv(10, 12), pv(9, 8), 0},
		{"single pivot", pv(10), pv(8, 9), 0},
	}
	for _, tt := range tests {
		if got := Structure(tt.highs, tt.lows); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}

	if got := PivotsBefore(pv(1, 2, 3), 6); len(got) != 2 {
		t.Errorf("expected 2 pivots before index 6, got %d", len(got))
	}
	if got := PivotsBefore(pv(1, 2), 0); got != nil {
		t.Errorf("expected no pivots, got %+v", got)
	}
}

func TestVolumeProfile_POC(t *testing.T) {
	bars := []core.Candle{
		{Open: 100, High: 100, Low: 100, Close: 100, Volume: 10},
		{Open: 105, High: 105, Low: 105, Close: 105, Volume: 50},
		{Open: 110, High: 110, Low: 110, Close: 110, Volume: 10},
	}
	p := VolumeProfile(bars, 10)
	poc, ok := p.POC()
	if !ok {
		t.Fatal("expected a POC")
	}
	if poc.Volume != 50 || poc.Low > 105 || poc.High < 105 {
		t.Errorf("unexpected POC %+v", poc)
	}

	nodes := p.HighVolumeNodes(0.5)
	if len(nodes) != 1 {
		t.Errorf("expected one high-volume node, got %d", len(nodes))
	}
}

func TestSupertrend_FlipsOnBreakdown(t *testing.T) {
	bars := rising(20, 100)
	last := bars[len(bars)-1]
	bars = append(bars, core.Candle{
		Time:   last.Time.Add(time.Hour),
		Open:   last.Close,
		High:   last.Close + 0.5,
		Low:    last.Close - 21,
		Close:  last.Close - 20,
		Volume: 100,
	})

	line, dir := Supertrend(bars, 10, 3)
	if len(line) != len(bars)-10 || len(dir) != len(line) {
		t.Fatalf("unexpected lengths %d/%d", len(line), len(dir))
	}
	if dir[len(dir)-2] != 1 {
		t.Errorf("expected uptrend before breakdown, got %d", dir[len(dir)-2])
	}
	if dir[len(dir)-1] != -1 {
		t.Errorf("expected downtrend after breakdown, got %d", dir[len(dir)-1])
	}
}

func TestVolumeRatio(t *testing.T) {
	bars := rising(5, 10)
	bars[4].Volume = 300
	if r := VolumeRatio(bars, 4); !near(r, 3) {
		t.Errorf("expected ratio 3, got %f", r)
	}
}

func TestHighestLowest(t *testing.T) {
	bars := rising(5, 10)
	if Highest(bars) != 15 {
		t.Errorf("expected 15, got %f", Highest(bars))
	}
	if Lowest(bars) != 9 {
		t.Errorf("expected 9, got %f", Lowest(bars))
	}
}

func TestClamp(t *testing.T) {
	if Clamp(2, 0, 1) != 1 || Clamp(-1, 0, 1) != 0 || Clamp(math.NaN(), 0, 1) != 0 {
		t.Error("clamp misbehaves")
	}
}
