package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/signalcore/internal/config"
	"github.com/newthinker/signalcore/internal/cooldown"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/ensemble"
	"github.com/newthinker/signalcore/internal/filter"
	"github.com/newthinker/signalcore/internal/history"
	"github.com/newthinker/signalcore/internal/metrics"
	"github.com/newthinker/signalcore/internal/notifier/factory"
	"github.com/newthinker/signalcore/internal/performance"
	"github.com/newthinker/signalcore/internal/risk"
	"github.com/newthinker/signalcore/internal/router"
	"github.com/newthinker/signalcore/internal/storage/archive"
	"github.com/newthinker/signalcore/internal/storage/signal"
	"github.com/newthinker/signalcore/internal/strategy"
	"github.com/newthinker/signalcore/internal/strategy/families"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EnsembleStrategy is the strategy name carried by released signals
const EnsembleStrategy = "ensemble"

// Dependencies are the collaborators a Service consumes. Nil fields fall
// back to in-memory implementations.
type Dependencies struct {
	Trades   performance.TradeHistoryProvider
	Balances risk.AccountBalanceProvider
	Signals  signal.Store
	Metrics  *metrics.Registry
	Sinks    []router.Sink
	// Patterns replaces the configured families when non-nil.
	Patterns []strategy.Pattern
}

// Report explains one evaluation of one symbol for one user
type Report struct {
	Symbol     string
	User       string
	At         time.Time
	Outcomes   []strategy.Outcome
	Decision   ensemble.Decision
	Assessment risk.Assessment
	Filter     filter.Result
	Signal     *core.Signal
	Reason     core.Reason
}

// Released reports whether the evaluation produced a signal
func (r Report) Released() bool {
	return r.Signal != nil
}

// Service is the evaluation context: it owns every piece of mutable state
// the pipeline touches and serializes work per symbol.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger

	history     *history.Store
	engine      *strategy.Engine
	aggregator  *ensemble.Aggregator
	calculator  *performance.Calculator
	trades      performance.TradeHistoryProvider
	riskManager *risk.Manager
	filter      *filter.LossAverseFilter
	router      *router.Router
	signals     signal.Store
	metrics     *metrics.Registry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	evaluatedMu sync.Mutex
	evaluated   map[string]core.Candle

	profilesMu sync.RWMutex
	profiles   map[string]risk.Profile

	queue     chan string
	pendingMu sync.Mutex
	pending   map[string]bool
	active    int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// New wires a Service from configuration
func New(cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	patterns := deps.Patterns
	if patterns == nil {
		built, err := families.Build(strategyConfigs(cfg.Strategies))
		if err != nil {
			return nil, err
		}
		patterns = built
	}

	engine := strategy.NewEngine(geometry(cfg.Signal), cooldown.New(cfg.Signal.Cooldown, logger), logger)
	families.RegisterAll(engine, patterns)

	trades := deps.Trades
	if trades == nil {
		trades = performance.NewInMemoryTradeHistory()
	}
	balances := deps.Balances
	if balances == nil {
		balances = risk.NewStaticBalances(cfg.Account.Balances)
	}
	signals := deps.Signals
	if signals == nil {
		signals = signal.NewMemoryStore(cfg.Router.StoreSize)
	}

	profile, err := risk.ProfileFor(cfg.Risk.Profile)
	if err != nil {
		return nil, err
	}

	r := router.New(router.Config{
		CooldownDuration: cfg.Router.Cooldown,
		SinkTimeout:      cfg.Router.SinkTimeout,
	}, logger)
	r.SetSignalStore(signals)
	r.SetMetrics(deps.Metrics)
	for _, sink := range deps.Sinks {
		r.AddSink(sink)
	}

	storage, err := archive.Open(archive.Config{
		Backend:   cfg.Archive.Backend,
		LocalPath: cfg.Archive.Path,
		S3: archive.S3Config{
			Bucket:    cfg.Archive.S3.Bucket,
			Endpoint:  cfg.Archive.S3.Endpoint,
			Region:    cfg.Archive.S3.Region,
			AccessKey: cfg.Archive.S3.AccessKey,
			SecretKey: cfg.Archive.S3.SecretKey,
			Prefix:    cfg.Archive.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if storage != nil {
		r.AddSink(archive.NewSink(storage, logger))
	}

	notifiers, err := factory.Build(cfg.Notifiers)
	if err != nil {
		return nil, fmt.Errorf("building notifiers: %w", err)
	}
	for _, n := range notifiers.GetAll() {
		r.AddSink(n)
	}

	perf := performance.DefaultConfig()
	perf.LookbackDays = cfg.Performance.LookbackDays
	perf.RecentDays = cfg.Performance.RecentDays
	perf.MinTrades = cfg.Performance.MinTrades
	perf.Temperature = cfg.Performance.Temperature
	perf.MinWeight = cfg.Performance.MinWeight

	queueSize := cfg.Workers.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	return &Service{
		cfg:        cfg,
		logger:     logger,
		history:    history.NewStore(cfg.History.Capacity),
		engine:     engine,
		aggregator: ensemble.New(cfg.Ensemble.Epsilon, logger),
		calculator: performance.New(perf, trades, logger),
		trades:     trades,
		riskManager: risk.NewManager(risk.Config{
			RiskPct:          cfg.Risk.RiskPct,
			MaxDrawdown:      cfg.Risk.MaxDrawdown,
			DrawdownLookback: cfg.Risk.DrawdownLookback,
			VolatilityScale:  cfg.Risk.VolatilityScale,
			Profile:          profile.Level,
		}, balances, logger),
		filter: filter.New(filter.Config{
			MinAgree:       cfg.Filter.MinAgree,
			Conservatism:   cfg.Filter.Conservatism,
			MinConfidence:  cfg.Filter.MinConfidence,
			MinSuccessRate: cfg.Filter.MinSuccessRate,
			RecencyWindow:  cfg.Filter.RecencyWindow,
			MinRiskReward:  cfg.Filter.MinRiskReward,
		}, signals, logger),
		router:    r,
		signals:   signals,
		metrics:   deps.Metrics,
		locks:     make(map[string]*sync.Mutex),
		evaluated: make(map[string]core.Candle),
		profiles:  make(map[string]risk.Profile),
		queue:     make(chan string, queueSize),
		pending:   make(map[string]bool),
		now:       time.Now,
	}, nil
}

func geometry(s config.SignalConfig) strategy.Geometry {
	g := strategy.DefaultGeometry()
	if s.TargetRR > 0 {
		g.TargetRR = s.TargetRR
	}
	if s.MinRR > 0 {
		g.MinRR = s.MinRR
	}
	if s.MaxRR > 0 {
		g.MaxRR = s.MaxRR
	}
	if s.MaxMovePct > 0 {
		g.MaxMovePct = s.MaxMovePct
	}
	if s.StopBufferPct > 0 {
		g.StopBufferPct = s.StopBufferPct
	}
	if s.ATRPeriod > 0 {
		g.ATRPeriod = s.ATRPeriod
	}
	if s.ATRMultiplier > 0 {
		g.ATRMultiplier = s.ATRMultiplier
	}
	if s.ConfidenceCap > 0 {
		g.ConfidenceCap = s.ConfidenceCap
	}
	return g
}

func strategyConfigs(cfgs map[string]config.StrategyConfig) map[string]strategy.Config {
	out := make(map[string]strategy.Config, len(cfgs))
	for name, c := range cfgs {
		out[name] = strategy.Config{Enabled: c.Enabled, Params: c.Params}
	}
	return out
}

// SetClock overrides the clock of every time-dependent component
func (s *Service) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	s.engine.SetClock(now)
	s.calculator.SetClock(now)
	s.riskManager.Drawdown().SetClock(now)
	s.filter.SetClock(now)
	s.router.SetClock(now)
	if h, ok := s.trades.(*performance.InMemoryTradeHistory); ok {
		h.SetClock(now)
	}
}

func (s *Service) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

// History exposes the price history store
func (s *Service) History() *history.Store { return s.history }

// Engine exposes the strategy engine
func (s *Service) Engine() *strategy.Engine { return s.engine }

// Router exposes the release stage
func (s *Service) Router() *router.Router { return s.router }

// Signals exposes the released-signal store
func (s *Service) Signals() signal.Store { return s.signals }

// Trades exposes the closed-trade history behind the weights
func (s *Service) Trades() performance.TradeHistoryProvider { return s.trades }

// Risk exposes the risk manager
func (s *Service) Risk() *risk.Manager { return s.riskManager }

// SetUserProfile assigns a risk profile to user
func (s *Service) SetUserProfile(user string, level risk.Level) error {
	p, err := risk.ProfileFor(string(level))
	if err != nil {
		return err
	}
	s.profilesMu.Lock()
	s.profiles[user] = p
	s.profilesMu.Unlock()
	return nil
}

func (s *Service) profileFor(user string) risk.Profile {
	s.profilesMu.RLock()
	p, ok := s.profiles[user]
	s.profilesMu.RUnlock()
	if ok {
		return p
	}
	return s.riskManager.DefaultProfile()
}

func (s *Service) symbolLock(symbol string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		s.locks[symbol] = l
	}
	return l
}

// Push validates and stores a candle without scheduling an evaluation
func (s *Service) Push(symbol string, c core.Candle) error {
	if err := c.Validate(); err != nil {
		s.metrics.RecordCandleDropped("invalid")
		return err
	}
	if latest, ok := s.history.Latest(symbol); ok && c.Time.Before(latest.Time) {
		s.metrics.RecordCandleDropped("out_of_order")
		return core.WrapError(core.ErrInvalidCandle, fmt.Errorf("%s candle at %s precedes %s", symbol, c.Time, latest.Time))
	}

	s.history.Push(symbol, c)
	s.metrics.RecordCandle(symbol)
	return nil
}

// Ingest stores a candle and schedules an evaluation of its symbol on the
// worker pool. A symbol is queued at most once; the worker evaluates every
// bar that arrived since its last evaluation. It returns false when the
// queue was full and the evaluation was dropped.
func (s *Service) Ingest(symbol string, c core.Candle) (bool, error) {
	if err := s.Push(symbol, c); err != nil {
		return false, err
	}
	return s.schedule(symbol), nil
}

func (s *Service) schedule(symbol string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pending[symbol] {
		return true
	}
	select {
	case s.queue <- symbol:
		s.pending[symbol] = true
		return true
	default:
		s.metrics.RecordQueueDrop()
		s.logger.Warn("evaluation queue full, dropping", zap.String("symbol", symbol))
		return false
	}
}

// Evaluate runs the pipeline for the configured account and returns the
// released signal, or nil.
func (s *Service) Evaluate(ctx context.Context, symbol string) (*core.Signal, error) {
	report, err := s.EvaluateFor(ctx, s.cfg.Account.User, symbol)
	return report.Signal, err
}

// EvaluateFor runs the full pipeline for symbol on behalf of user: strategy
// engine, weighted ensemble, risk sizing, loss-averse filter and release.
// Only the newest bar is evaluated; see EvaluatePending for catching up.
func (s *Service) EvaluateFor(ctx context.Context, user, symbol string) (Report, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	return s.evaluateLocked(ctx, user, symbol, s.history.History(symbol))
}

// EvaluatePending evaluates, oldest first, every bar of symbol that arrived
// or was revised since the symbol was last evaluated, and returns one report
// per bar. A symbol that was never evaluated is walked from its first bar.
func (s *Service) EvaluatePending(ctx context.Context, user, symbol string) ([]Report, error) {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	bars := s.history.History(symbol)
	from := s.pendingFrom(symbol, bars)
	reports := make([]Report, 0, len(bars)-from)
	for i := from; i < len(bars); i++ {
		report, err := s.evaluateLocked(ctx, user, symbol, bars[:i+1])
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// pendingFrom returns the index of the first bar not yet evaluated
func (s *Service) pendingFrom(symbol string, bars []core.Candle) int {
	s.evaluatedMu.Lock()
	last, ok := s.evaluated[symbol]
	s.evaluatedMu.Unlock()
	if !ok {
		return 0
	}
	for i := len(bars) - 1; i >= 0; i-- {
		switch {
		case bars[i].Time.Before(last.Time):
			return i + 1
		case bars[i].Time.Equal(last.Time):
			if bars[i].Equal(last) {
				return i + 1
			}
			return i
		}
	}
	return 0
}

func (s *Service) evaluateLocked(ctx context.Context, user, symbol string, bars []core.Candle) (Report, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveEvaluation(time.Since(start).Seconds()) }()

	report := Report{Symbol: symbol, User: user, Reason: core.ReasonInsufficientHistory}
	if len(bars) == 0 {
		return report, nil
	}
	latest := bars[len(bars)-1]
	report.At = latest.Time

	s.evaluatedMu.Lock()
	s.evaluated[symbol] = latest
	s.evaluatedMu.Unlock()

	outcomes, err := s.engine.Evaluate(ctx, symbol, bars)
	if err != nil {
		return report, err
	}
	report.Outcomes = outcomes
	s.recordOutcomes(outcomes)

	report.Decision = s.aggregator.Aggregate(ensemble.FromOutcomes(outcomes), s.calculator.StrategyWeights())
	s.metrics.RecordDecision(string(report.Decision.Action))
	if !report.Decision.Action.IsDirectional() {
		return s.reject(report, core.ReasonNoConsensus), nil
	}

	candidate := filter.FromDecision(symbol, report.Decision, report.At)
	lead := &core.Signal{
		Strategy:   EnsembleStrategy,
		Symbol:     symbol,
		Action:     candidate.Action,
		Entry:      candidate.Entry,
		StopLoss:   candidate.StopLoss,
		TakeProfit: candidate.TakeProfit,
	}
	supporting := report.Decision.Supporting()
	winRate, winLoss := s.edge(supporting)

	assessment, err := s.riskManager.Assess(ctx, risk.Request{
		User:         user,
		Signal:       lead,
		Profile:      s.profileFor(user),
		Supporting:   supporting,
		WinRate:      winRate,
		WinLossRatio: winLoss,
	})
	report.Assessment = assessment
	s.metrics.SetKillSwitch(user, assessment.KillSwitch.Active, assessment.KillSwitch.Drawdown)
	if err != nil {
		s.logger.Warn("risk assessment failed",
			zap.String("user", user),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return s.reject(report, assessment.Reason), err
	}
	if !assessment.Approved() {
		return s.reject(report, assessment.Reason), nil
	}

	profile := s.profileFor(user)
	report.Filter = s.filter.Apply(ctx, candidate, profile)
	if !report.Filter.Passed() {
		return s.reject(report, report.Filter.Reason), nil
	}

	final := s.finalSignal(report, supporting, profile)
	released, reason := s.router.Release(ctx, final)
	if reason != core.ReasonNone {
		return s.reject(report, reason), nil
	}

	report.Signal = &released
	report.Reason = core.ReasonNone
	return report, nil
}

func (s *Service) recordOutcomes(outcomes []strategy.Outcome) {
	for _, o := range outcomes {
		switch {
		case o.Voted():
			s.metrics.RecordCompletion(o.Strategy, string(o.Action))
		case o.Reason == core.ReasonStrategyFailed:
			s.metrics.RecordStrategyFailure(o.Strategy)
		case o.Reason == core.ReasonCooldown || o.Reason == core.ReasonInvalidGeometry || o.Reason == core.ReasonRiskRewardBelowMin:
			s.metrics.RecordSuppressed(o.Strategy, o.Reason.String())
		}
	}
}

func (s *Service) reject(report Report, reason core.Reason) Report {
	report.Reason = reason
	s.metrics.RecordRejection(reason.String())
	s.logger.Debug("evaluation rejected",
		zap.String("symbol", report.Symbol),
		zap.String("user", report.User),
		zap.String("action", string(report.Decision.Action)),
		zap.String("reason", reason.String()),
	)
	return report
}

// edge averages the win rate and win/loss ratio of supporting strategies
// that have enough closed trades to be scored.
func (s *Service) edge(supporting []*core.Signal) (winRate, winLoss float64) {
	var n int
	for _, sig := range supporting {
		m, ok := s.calculator.Metrics(sig.Strategy)
		if !ok || m.TotalTrades < s.cfg.Performance.MinTrades || m.TotalTrades == 0 {
			continue
		}
		winRate += m.WinRate
		winLoss += m.WinLossRatio
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return winRate / float64(n), winLoss / float64(n)
}

func (s *Service) finalSignal(report Report, supporting []*core.Signal, profile risk.Profile) core.Signal {
	res := report.Filter
	names := make([]string, 0, len(supporting))
	requiresVolume := false
	for _, sig := range supporting {
		names = append(names, sig.Strategy)
		requiresVolume = requiresVolume || sig.RequiresVolume
	}
	sort.Strings(names)

	sig := core.Signal{
		Strategy:       EnsembleStrategy,
		Symbol:         report.Symbol,
		Action:         res.Action,
		Entry:          res.Entry,
		StopLoss:       res.StopLoss,
		TakeProfit:     res.TakeProfit,
		Confidence:     res.Confidence,
		Reason:         res.Message,
		RequiresVolume: requiresVolume,
		PositionSize:   report.Assessment.PositionSize,
		GeneratedAt:    report.At,
		Metadata: map[string]any{
			"strategies":   names,
			"agreement":    res.AgreementRatio,
			"strength":     report.Decision.Strength,
			"buy_total":    report.Decision.BuyTotal,
			"sell_total":   report.Decision.SellTotal,
			"success_rate": res.SuccessRate,
			"profile":      string(profile.Level),
			"allocations":  report.Assessment.Allocations,
			"kill_switch":  report.Assessment.KillSwitch.Active,
			"user":         report.User,
		},
	}
	if r := sig.Risk(); r > 0 {
		sig.RiskReward = sig.Reward() / r
	}
	return sig
}

// EvaluateAll evaluates symbols concurrently for the configured account,
// bounded by the configured limit, and returns reports in symbol order.
func (s *Service) EvaluateAll(ctx context.Context, symbols []string) ([]Report, error) {
	reports := make([]Report, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	if limit := s.cfg.Workers.EvaluateLimit; limit > 0 {
		g.SetLimit(limit)
	}
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			report, err := s.EvaluateFor(gctx, s.cfg.Account.User, symbol)
			reports[i] = report
			if err != nil {
				return fmt.Errorf("evaluating %s: %w", symbol, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

// EvaluatePrices replaces the symbol's history with single-price candles
// synthesized from prices and evaluates it. Detectors that need wicks,
// ranges or volume cannot confirm on this input.
func (s *Service) EvaluatePrices(ctx context.Context, symbol string, prices []float64, interval time.Duration) (Report, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	start := s.clock().Add(-time.Duration(len(prices)) * interval)
	bars := history.FromPrices(prices, start, interval)

	l := s.symbolLock(symbol)
	l.Lock()
	s.history.Replace(symbol, bars)
	l.Unlock()

	return s.EvaluateFor(ctx, s.cfg.Account.User, symbol)
}

// StrategyWeights returns the cached ensemble weights
func (s *Service) StrategyWeights() map[string]float64 {
	return s.calculator.StrategyWeights()
}

// RefreshWeights recomputes weights for every registered strategy
func (s *Service) RefreshWeights(ctx context.Context) (map[string]float64, error) {
	weights, err := s.calculator.Refresh(ctx, s.engine.Names())
	if err != nil {
		return nil, err
	}
	s.metrics.SetStrategyWeights(weights)
	return weights, nil
}

// CheckKillSwitch refreshes the user's drawdown guard from the balance provider
func (s *Service) CheckKillSwitch(ctx context.Context, user string) (risk.KillSwitchStatus, error) {
	status, err := s.riskManager.CheckKillSwitch(ctx, user)
	s.metrics.SetKillSwitch(user, status.Active, status.Drawdown)
	return status, err
}

// ResetKillSwitch clears the user's kill switch
func (s *Service) ResetKillSwitch(user string) {
	s.riskManager.ResetKillSwitch(user)
	s.metrics.SetKillSwitch(user, false, 0)
	s.logger.Info("kill switch reset", zap.String("user", user))
}

// Start launches the evaluation workers and housekeeping routines
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("service already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	workers := s.cfg.Workers.Count
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	if interval := s.cfg.Performance.RefreshInterval; interval > 0 {
		s.calculator.StartRefreshRoutine(ctx, interval, s.engine.Names)
	}
	s.engine.Cooldowns().StartCleanupRoutine(ctx, time.Hour, s.clock)
	s.router.StartCleanupRoutine(ctx, time.Hour, s.clock)

	s.logger.Info("signalcore service started",
		zap.Int("workers", workers),
		zap.Int("strategies", len(s.engine.Names())),
		zap.Int("queue", cap(s.queue)),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight evaluations
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("signalcore service stopped")
}

// Running reports whether the workers are active
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Drain blocks until every queued evaluation has been picked up and
// finished, or ctx is done.
func (s *Service) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		s.pendingMu.Lock()
		idle := len(s.pending) == 0 && len(s.queue) == 0 && s.active == 0
		s.pendingMu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case symbol := <-s.queue:
			s.pendingMu.Lock()
			delete(s.pending, symbol)
			s.active++
			s.pendingMu.Unlock()

			reports, err := s.EvaluatePending(ctx, s.cfg.Account.User, symbol)

			s.pendingMu.Lock()
			s.active--
			s.pendingMu.Unlock()

			for _, report := range reports {
				if report.Released() {
					s.logger.Debug("evaluation released signal",
						zap.String("symbol", symbol),
						zap.String("id", report.Signal.ID),
					)
				}
			}
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("evaluation failed", zap.String("symbol", symbol), zap.Error(err))
			}
		}
	}
}

// GetStats returns service statistics
func (s *Service) GetStats() map[string]any {
	s.pendingMu.Lock()
	queued := len(s.queue)
	s.pendingMu.Unlock()

	return map[string]any{
		"running":         s.Running(),
		"symbols":         len(s.history.Symbols()),
		"strategies":      len(s.engine.Names()),
		"queued":          queued,
		"dropped_candles": s.history.Dropped(),
		"router":          s.router.GetStats(),
	}
}
