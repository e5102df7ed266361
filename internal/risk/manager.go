package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"go.uber.org/zap"
)

// AccountBalanceProvider reports the current account balance of a user
type AccountBalanceProvider interface {
	Balance(ctx context.Context, user string) (float64, error)
}

// StaticBalances is an in-memory AccountBalanceProvider
type StaticBalances struct {
	mu       sync.RWMutex
	balances map[string]float64
	failures map[string]error
}

// NewStaticBalances creates a provider seeded with the given balances
func NewStaticBalances(seed map[string]float64) *StaticBalances {
	s := &StaticBalances{
		balances: make(map[string]float64, len(seed)),
		failures: make(map[string]error),
	}
	for user, bal := range seed {
		s.balances[user] = bal
	}
	return s
}

// Set stores a balance and clears any injected failure
func (s *StaticBalances) Set(user string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[user] = balance
	delete(s.failures, user)
}

// Fail makes subsequent reads for user return err
func (s *StaticBalances) Fail(user string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[user] = err
}

func (s *StaticBalances) Balance(ctx context.Context, user string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.failures[user]; ok {
		return 0, err
	}
	bal, ok := s.balances[user]
	if !ok {
		return 0, fmt.Errorf("no balance for user %q", user)
	}
	return bal, nil
}

// Config holds risk manager settings
type Config struct {
	RiskPct          float64
	MaxDrawdown      float64
	DrawdownLookback time.Duration
	VolatilityScale  float64
	Profile          Level
}

// DefaultConfig returns 1% risk per trade with a 15% drawdown ceiling
func DefaultConfig() Config {
	return Config{
		RiskPct:          0.01,
		MaxDrawdown:      DefaultMaxDrawdown,
		DrawdownLookback: DefaultDrawdownLookback,
		VolatilityScale:  1,
		Profile:          LevelMedium,
	}
}

// Request describes a candidate trade to size
type Request struct {
	User    string
	Signal  *core.Signal
	Profile Profile
	// Supporting signals feed the risk-parity allocation
	Supporting []*core.Signal
	// WinRate and WinLossRatio cap the fraction at the Kelly bet when both
	// are positive.
	WinRate      float64
	WinLossRatio float64
}

// Assessment is the outcome of sizing a candidate trade
type Assessment struct {
	Balance      float64
	Fraction     float64
	PositionSize float64
	Allocations  map[string]float64
	KillSwitch   KillSwitchStatus
	Reason       core.Reason
}

// Approved reports whether the trade received a non-zero size
func (a Assessment) Approved() bool {
	return a.Reason == core.ReasonNone && a.PositionSize > 0
}

// Manager sizes trades against live balances and the drawdown guard
type Manager struct {
	cfg      Config
	balances AccountBalanceProvider
	drawdown *DrawdownProtection
	logger   *zap.Logger
}

// NewManager creates a risk manager
func NewManager(cfg Config, balances AccountBalanceProvider, logger ...*zap.Logger) *Manager {
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	def := DefaultConfig()
	if !positive(cfg.RiskPct) {
		cfg.RiskPct = def.RiskPct
	}
	if !positive(cfg.VolatilityScale) {
		cfg.VolatilityScale = def.VolatilityScale
	}
	if cfg.Profile == "" {
		cfg.Profile = def.Profile
	}
	return &Manager{
		cfg:      cfg,
		balances: balances,
		drawdown: NewDrawdownProtection(cfg.MaxDrawdown, cfg.DrawdownLookback, l),
		logger:   l,
	}
}

// Drawdown exposes the drawdown guard
func (m *Manager) Drawdown() *DrawdownProtection {
	return m.drawdown
}

// DefaultProfile returns the configured profile, falling back to medium
func (m *Manager) DefaultProfile() Profile {
	if p, err := ProfileFor(string(m.cfg.Profile)); err == nil {
		return p
	}
	return Profiles[LevelMedium]
}

// Assess reads the user's balance, updates the drawdown guard and sizes the
// request. A balance failure leaves the kill switch unchanged and returns
// ErrBalanceUnavailable.
func (m *Manager) Assess(ctx context.Context, req Request) (Assessment, error) {
	if req.Signal == nil {
		return Assessment{Reason: core.ReasonZeroPositionSize}, nil
	}

	balance, err := m.balances.Balance(ctx, req.User)
	if err != nil {
		status := m.drawdown.ObserveError(req.User, err)
		return Assessment{KillSwitch: status, Reason: core.ReasonZeroPositionSize},
			core.WrapError(core.ErrBalanceUnavailable, err)
	}
	status := m.drawdown.Observe(req.User, balance)

	a := Assessment{
		Balance:     balance,
		KillSwitch:  status,
		Allocations: m.drawdown.ApplyToAllocations(req.User, RiskParityAllocate(req.Supporting)),
	}

	var stopFrac float64
	if req.Signal.Entry > 0 {
		stopFrac = req.Signal.Risk() / req.Signal.Entry
	}
	size := PositionSize(balance, m.cfg.RiskPct, stopFrac, m.cfg.VolatilityScale)
	if positive(balance) {
		a.Fraction = size / balance
	}
	if positive(req.WinRate) && positive(req.WinLossRatio) {
		a.Fraction = math.Min(a.Fraction, KellyFraction(req.WinRate, req.WinLossRatio))
	}

	profile := req.Profile
	if profile.Level == "" {
		profile = m.DefaultProfile()
	}
	a.PositionSize = ApplyRiskProfile(a.Fraction, balance, profile)
	if status.Active {
		a.PositionSize /= 2
	}

	if a.PositionSize <= 0 {
		a.Reason = core.ReasonZeroPositionSize
		m.logger.Debug("position size is zero",
			zap.String("user", req.User),
			zap.String("symbol", req.Signal.Symbol),
			zap.Float64("balance", balance),
			zap.Float64("stop_fraction", stopFrac),
		)
	}
	return a, nil
}

// CheckKillSwitch refreshes and returns the user's kill switch. On a
// balance failure the last known status is returned alongside the error.
func (m *Manager) CheckKillSwitch(ctx context.Context, user string) (KillSwitchStatus, error) {
	balance, err := m.balances.Balance(ctx, user)
	if err != nil {
		return m.drawdown.ObserveError(user, err), core.WrapError(core.ErrBalanceUnavailable, err)
	}
	return m.drawdown.Observe(user, balance), nil
}

// ResetKillSwitch explicitly clears the user's kill switch
func (m *Manager) ResetKillSwitch(user string) {
	m.drawdown.Reset(user)
}
