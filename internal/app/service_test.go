package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/signalcore/internal/config"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/metrics"
	"github.com/newthinker/signalcore/internal/notifier"
	"github.com/newthinker/signalcore/internal/performance"
	"github.com/newthinker/signalcore/internal/risk"
	"github.com/newthinker/signalcore/internal/storage/signal"
	"github.com/newthinker/signalcore/internal/strategy"
	"github.com/newthinker/signalcore/internal/strategy/families"
	"github.com/newthinker/signalcore/internal/testutil"
)

// scripted completes on the bar counts listed in fireAt with a 2% stop and
// a 5% target.
type scripted struct {
	name   string
	action core.Action
	fireAt map[int]bool
}

func (p *scripted) Name() string                   { return p.name }
func (p *scripted) Description() string            { return "scripted " + p.name }
func (p *scripted) MinCandles() int                { return 5 }
func (p *scripted) Init(cfg strategy.Config) error { return nil }

func (p *scripted) Detect(bars []core.Candle) strategy.Setup {
	if !p.fireAt[len(bars)] {
		return strategy.None()
	}
	c := bars[len(bars)-1].Close
	dir := 1.0
	if p.action == core.ActionSell {
		dir = -1
	}
	return strategy.Setup{
		Phase:    strategy.PhaseCompleted,
		Action:   p.action,
		Stop:     c * (1 - dir*0.02),
		Target:   c * (1 + dir*0.05),
		Strength: 1,
		Reason:   "scripted completion",
	}
}

// patterns returns agree patterns that fire on the given bar counts plus
// enough silent ones to make eight.
func patterns(agree int, action core.Action, fireAt ...int) []strategy.Pattern {
	at := make(map[int]bool, len(fireAt))
	for _, n := range fireAt {
		at[n] = true
	}
	out := make([]strategy.Pattern, 0, 8)
	for i := 0; i < 8; i++ {
		p := &scripted{name: fmt.Sprintf("p%d", i), action: action, fireAt: map[int]bool{}}
		if i < agree {
			p.fireAt = at
		}
		out = append(out, p)
	}
	return out
}

func newTestService(t *testing.T, deps Dependencies, mutate ...func(*config.Config)) *Service {
	t.Helper()
	cfg := config.Defaults()
	for _, m := range mutate {
		m(cfg)
	}
	svc, err := New(cfg, deps, nil)
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return testutil.Start.Add(48 * time.Hour) })
	return svc
}

func push(t *testing.T, svc *Service, symbol string, bars []core.Candle) {
	t.Helper()
	for _, c := range bars {
		require.NoError(t, svc.Push(symbol, c))
	}
}

func TestService_ReleasesConsensus(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	push(t, svc, "BTC", testutil.Flat(30, 100))

	report, err := svc.EvaluateFor(context.Background(), "default", "BTC")
	require.NoError(t, err)
	require.True(t, report.Released(), "reason %s", report.Reason)

	sig := report.Signal
	assert.Equal(t, EnsembleStrategy, sig.Strategy)
	assert.Equal(t, core.ActionBuy, sig.Action)
	assert.NotEmpty(t, sig.ID)
	assert.InDelta(t, 100, sig.Entry, 1e-9)
	assert.InDelta(t, 98, sig.StopLoss, 1e-9)
	assert.InDelta(t, 104, sig.TakeProfit, 1e-9)
	assert.InDelta(t, 0.9, sig.Confidence, 1e-9)
	assert.InDelta(t, 2.0, sig.RiskReward, 1e-9)
	assert.InDelta(t, 1000, sig.PositionSize, 1e-9)
	assert.Equal(t, testutil.Start.Add(29*testutil.Interval), sig.GeneratedAt)
	assert.NoError(t, sig.Validate())
	assert.Equal(t, []string{"p0", "p1", "p2", "p3", "p4", "p5"}, sig.Metadata["strategies"])

	assert.Equal(t, 6, report.Decision.Agreeing)
	assert.Equal(t, 8, report.Decision.Total)

	count, err := svc.Signals().Count(context.Background(), signal.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_RejectionReasons(t *testing.T) {
	tests := []struct {
		name   string
		agree  int
		bars   int
		reason core.Reason
	}{
		{name: "no history", agree: 6, bars: 0, reason: core.ReasonInsufficientHistory},
		{name: "no pattern", agree: 6, bars: 29, reason: core.ReasonNoConsensus},
		{name: "low agreement", agree: 4, bars: 30, reason: core.ReasonLowAgreement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, Dependencies{Patterns: patterns(tt.agree, core.ActionBuy, 30)})
			push(t, svc, "BTC", testutil.Flat(tt.bars, 100))

			report, err := svc.EvaluateFor(context.Background(), "default", "BTC")
			require.NoError(t, err)
			assert.False(t, report.Released())
			assert.Equal(t, tt.reason, report.Reason)
		})
	}
}

func TestService_DuplicateRelease(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionSell, 30, 32)},
		func(c *config.Config) { c.Signal.Cooldown = time.Minute })
	bars := testutil.Flat(32, 100)
	ctx := context.Background()

	push(t, svc, "ETH", bars[:30])
	first, err := svc.EvaluateFor(ctx, "default", "ETH")
	require.NoError(t, err)
	require.True(t, first.Released(), "reason %s", first.Reason)

	push(t, svc, "ETH", bars[30:31])
	_, err = svc.EvaluateFor(ctx, "default", "ETH")
	require.NoError(t, err)

	push(t, svc, "ETH", bars[31:])
	second, err := svc.EvaluateFor(ctx, "default", "ETH")
	require.NoError(t, err)
	assert.False(t, second.Released())
	assert.Equal(t, core.ReasonDuplicateRelease, second.Reason)
}

func TestService_StrategyCooldown(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30, 32)})
	bars := testutil.Flat(32, 100)
	ctx := context.Background()

	push(t, svc, "BTC", bars[:30])
	_, err := svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	push(t, svc, "BTC", bars[30:31])
	_, err = svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	push(t, svc, "BTC", bars[31:])

	report, err := svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	assert.Equal(t, core.ReasonNoConsensus, report.Reason)
	for _, o := range report.Outcomes[:6] {
		assert.Equal(t, core.ReasonCooldown, o.Reason, o.Strategy)
	}
}

func TestService_KillSwitchHalvesSize(t *testing.T) {
	balances := risk.NewStaticBalances(map[string]float64{"default": 10000})
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30), Balances: balances})
	ctx := context.Background()

	status, err := svc.CheckKillSwitch(ctx, "default")
	require.NoError(t, err)
	assert.False(t, status.Active)

	balances.Set("default", 8200)
	status, err = svc.CheckKillSwitch(ctx, "default")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.InDelta(t, 0.18, status.Drawdown, 1e-9)

	push(t, svc, "BTC", testutil.Flat(30, 100))
	report, err := svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	require.True(t, report.Released(), "reason %s", report.Reason)
	assert.InDelta(t, 410, report.Signal.PositionSize, 1e-9)
	assert.Equal(t, true, report.Signal.Metadata["kill_switch"])

	svc.ResetKillSwitch("default")
	status, err = svc.CheckKillSwitch(ctx, "default")
	require.NoError(t, err)
	assert.False(t, status.Active)
}

func TestService_BalanceFailureFailsClosed(t *testing.T) {
	balances := risk.NewStaticBalances(map[string]float64{"default": 10000})
	balances.Fail("default", errors.New("broker offline"))
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30), Balances: balances})
	push(t, svc, "BTC", testutil.Flat(30, 100))

	report, err := svc.EvaluateFor(context.Background(), "default", "BTC")
	assert.ErrorIs(t, err, core.ErrBalanceUnavailable)
	assert.False(t, report.Released())
	assert.Equal(t, core.ReasonZeroPositionSize, report.Reason)
}

func TestService_UserProfile(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	require.NoError(t, svc.SetUserProfile("default", risk.LevelLow))
	assert.Error(t, svc.SetUserProfile("default", risk.Level("reckless")))
	push(t, svc, "BTC", testutil.Flat(30, 100))

	report, err := svc.EvaluateFor(context.Background(), "default", "BTC")
	require.NoError(t, err)
	require.True(t, report.Released(), "reason %s", report.Reason)
	assert.InDelta(t, 98.5, report.Signal.StopLoss, 1e-9)
	assert.InDelta(t, 103, report.Signal.TakeProfit, 1e-9)
	assert.InDelta(t, 500, report.Signal.PositionSize, 1e-9)
}

func TestService_Evaluate(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	push(t, svc, "BTC", testutil.Flat(30, 100))

	sig, err := svc.Evaluate(context.Background(), "BTC")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "BTC", sig.Symbol)
}

func TestService_EvaluateAll(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	push(t, svc, "BTC", testutil.Flat(30, 100))
	push(t, svc, "ETH", testutil.Flat(10, 50))

	reports, err := svc.EvaluateAll(context.Background(), []string{"BTC", "ETH", "SOL"})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.True(t, reports[0].Released())
	assert.Equal(t, core.ReasonNoConsensus, reports[1].Reason)
	assert.Equal(t, core.ReasonInsufficientHistory, reports[2].Reason)
}

func TestService_EvaluatePrices(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100
	}

	report, err := svc.EvaluatePrices(context.Background(), "BTC", prices, time.Hour)
	require.NoError(t, err)
	assert.True(t, report.Released(), "reason %s", report.Reason)
	assert.Equal(t, 30, svc.History().Len("BTC"))
}

func TestService_PushRejectsBadCandles(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(0, core.ActionBuy)})
	bars := testutil.Flat(2, 100)

	require.NoError(t, svc.Push("BTC", bars[1]))
	assert.ErrorIs(t, svc.Push("BTC", bars[0]), core.ErrInvalidCandle)

	bad := bars[1]
	bad.High = bad.Low - 1
	assert.Error(t, svc.Push("BTC", bad))
	assert.Equal(t, 1, svc.History().Len("BTC"))
}

func TestService_RefreshWeights(t *testing.T) {
	trades := performance.NewInMemoryTradeHistory()
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30), Trades: trades})
	closed := testutil.Start.Add(24 * time.Hour)
	for i := 0; i < 6; i++ {
		trades.Record(performance.Trade{Strategy: "p0", Symbol: "BTC", PnL: 0.02, OpenedAt: closed.Add(-time.Hour), ClosedAt: closed})
	}

	weights, err := svc.RefreshWeights(context.Background())
	require.NoError(t, err)
	assert.Len(t, weights, 8)
	assert.InDelta(t, 1.0, weights["p0"], 1e-9)
	assert.InDelta(t, 0.0, weights["p1"], 1e-9)
	assert.Equal(t, weights, svc.StrategyWeights())
}

func TestService_WorkersEvaluateIngestedCandles(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30), Metrics: metrics.NewRegistry()})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, svc.Start(ctx))
	assert.Error(t, svc.Start(ctx))
	defer svc.Stop()

	for _, c := range testutil.Flat(30, 100) {
		_, err := svc.Ingest("BTC", c)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Drain(ctx))

	count, err := svc.Signals().Count(ctx, signal.ListFilter{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_IngestCoalescesAndDrops(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(0, core.ActionBuy)},
		func(c *config.Config) { c.Workers.QueueSize = 1 })
	bars := testutil.Flat(2, 100)

	queued, err := svc.Ingest("BTC", bars[0])
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = svc.Ingest("BTC", bars[1])
	require.NoError(t, err)
	assert.True(t, queued, "a pending evaluation absorbs the candle")

	queued, err = svc.Ingest("ETH", bars[0])
	require.NoError(t, err)
	assert.False(t, queued, "full queue drops the evaluation")
	assert.Equal(t, 1, svc.History().Len("ETH"))
}

func TestService_WorkerEvaluatesEveryQueuedBar(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// both candles land before any worker runs, so one queued evaluation covers them
	for _, c := range testutil.Flat(31, 100) {
		_, err := svc.Ingest("BTC", c)
		require.NoError(t, err)
	}

	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()
	require.NoError(t, svc.Drain(ctx))

	assert.Equal(t, 6, svc.Engine().Cooldowns().Len(), "every agreeing completion on bar 30 is recorded")

	released, err := svc.Signals().List(ctx, signal.ListFilter{Symbol: "BTC"})
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, testutil.Start.Add(29*testutil.Interval), released[0].GeneratedAt)
}

func TestService_EvaluatePending(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)})
	ctx := context.Background()
	bars := testutil.Flat(32, 100)
	push(t, svc, "BTC", bars[:31])

	reports, err := svc.EvaluatePending(ctx, "default", "BTC")
	require.NoError(t, err)
	require.Len(t, reports, 31)
	for i, r := range reports {
		assert.Equal(t, i == 29, r.Released(), "bar %d", i)
	}

	reports, err = svc.EvaluatePending(ctx, "default", "BTC")
	require.NoError(t, err)
	assert.Empty(t, reports)

	require.NoError(t, svc.Push("BTC", bars[31]))
	reports, err = svc.EvaluatePending(ctx, "default", "BTC")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, bars[31].Time, reports[0].At)

	revised := bars[31]
	revised.Close, revised.High = 100.2, 100.7
	require.NoError(t, svc.Push("BTC", revised))
	reports, err = svc.EvaluatePending(ctx, "default", "BTC")
	require.NoError(t, err)
	require.Len(t, reports, 1, "a revised bar is evaluated again")
	assert.Equal(t, revised.Time, reports[0].At)
}

// levelCross completes a buy on the first close above level.
type levelCross struct {
	name  string
	level float64
}

func (p *levelCross) Name() string                   { return p.name }
func (p *levelCross) Description() string            { return "close above level" }
func (p *levelCross) MinCandles() int                { return 5 }
func (p *levelCross) Init(cfg strategy.Config) error { return nil }

func (p *levelCross) Detect(bars []core.Candle) strategy.Setup {
	return strategy.Edge(bars, func(b []core.Candle) strategy.Setup {
		c := b[len(b)-1].Close
		if c <= p.level {
			return strategy.None()
		}
		return strategy.Setup{
			Phase:    strategy.PhaseCompleted,
			Action:   core.ActionBuy,
			Stop:     c * 0.98,
			Target:   c * 1.05,
			Strength: 1,
			Reason:   "level crossed",
		}
	})
}

func TestService_InProgressBarUpdateReleasesOnce(t *testing.T) {
	pats := patterns(0, core.ActionBuy)
	for i := 0; i < 6; i++ {
		pats[i] = &levelCross{name: fmt.Sprintf("p%d", i), level: 100.5}
	}
	svc := newTestService(t, Dependencies{Patterns: pats})
	ctx := context.Background()

	bars := testutil.Flat(31, 100)
	push(t, svc, "BTC", bars)
	report, err := svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	assert.False(t, report.Released())

	final := bars[30]
	final.Close, final.High = 101, 101.5
	require.NoError(t, svc.Push("BTC", final))
	report, err = svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	require.True(t, report.Released(), "reason %s", report.Reason)
	assert.Equal(t, final.Time, report.Signal.GeneratedAt)

	next := testutil.Append(bars, testutil.Bar(101, 101.7, 100.8, 101.2, 1000))[31]
	require.NoError(t, svc.Push("BTC", next))
	report, err = svc.EvaluateFor(ctx, "default", "BTC")
	require.NoError(t, err)
	assert.False(t, report.Released())
	assert.Equal(t, core.ReasonNoConsensus, report.Reason)

	count, err := svc.Signals().Count(ctx, signal.ListFilter{Symbol: "BTC"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestService_StopIsIdempotent(t *testing.T) {
	svc := newTestService(t, Dependencies{Patterns: patterns(0, core.ActionBuy)})
	svc.Stop()
	require.NoError(t, svc.Start(context.Background()))
	assert.True(t, svc.Running())
	svc.Stop()
	svc.Stop()
	assert.False(t, svc.Running())
}

func TestNew_UnknownStrategy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Strategies = map[string]config.StrategyConfig{"astrology": {Enabled: true}}
	_, err := New(cfg, Dependencies{}, nil)
	assert.ErrorIs(t, err, core.ErrStrategyNotFound)
}

func TestNew_UnknownNotifier(t *testing.T) {
	cfg := config.Defaults()
	cfg.Notifiers = []notifier.Config{{Type: "carrier_pigeon"}}
	_, err := New(cfg, Dependencies{}, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestService_WebhookReceivesRelease(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := newTestService(t, Dependencies{Patterns: patterns(6, core.ActionBuy, 30)}, func(c *config.Config) {
		c.Notifiers = []notifier.Config{{Type: "webhook", Params: map[string]any{"url": server.URL}}}
	})
	push(t, svc, "BTC", testutil.Flat(30, 100))

	report, err := svc.EvaluateFor(context.Background(), "default", "BTC")
	require.NoError(t, err)
	require.True(t, report.Released())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "BTC", received[0]["symbol"])
	assert.Equal(t, report.Signal.ID, received[0]["id"])
}

func TestNew_DefaultFamilies(t *testing.T) {
	svc, err := New(nil, Dependencies{}, nil)
	require.NoError(t, err)
	assert.Equal(t, families.DefaultEnabled(), svc.Engine().Names())
}
