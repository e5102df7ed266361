package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxDrawdown is the drawdown ceiling that trips the kill switch
const DefaultMaxDrawdown = 0.15

// DefaultDrawdownLookback bounds how far back the balance peak is tracked
const DefaultDrawdownLookback = 30 * 24 * time.Hour

// KillSwitchStatus reports the drawdown guard for one user
type KillSwitchStatus struct {
	Active      bool
	Drawdown    float64
	Peak        float64
	Current     float64
	ActivatedAt time.Time
}

type balanceSample struct {
	at      time.Time
	balance float64
}

type userGuard struct {
	samples []balanceSample
	status  KillSwitchStatus
}

// DrawdownProtection tracks peak against current balance per user. Once
// the drawdown exceeds the ceiling the kill switch stays active until Reset.
type DrawdownProtection struct {
	mu          sync.Mutex
	maxDrawdown float64
	lookback    time.Duration
	users       map[string]*userGuard
	now         func() time.Time
	logger      *zap.Logger
}

// NewDrawdownProtection creates a drawdown guard
func NewDrawdownProtection(maxDrawdown float64, lookback time.Duration, logger ...*zap.Logger) *DrawdownProtection {
	if maxDrawdown <= 0 || maxDrawdown >= 1 {
		maxDrawdown = DefaultMaxDrawdown
	}
	if lookback <= 0 {
		lookback = DefaultDrawdownLookback
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &DrawdownProtection{
		maxDrawdown: maxDrawdown,
		lookback:    lookback,
		users:       make(map[string]*userGuard),
		now:         time.Now,
		logger:      l,
	}
}

// SetClock overrides the clock used to age balance samples
func (d *DrawdownProtection) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

// MaxDrawdown returns the configured ceiling
func (d *DrawdownProtection) MaxDrawdown() float64 {
	return d.maxDrawdown
}

// Observe records a balance reading and re-evaluates the kill switch.
// Non-positive readings are treated as measurement errors.
func (d *DrawdownProtection) Observe(user string, balance float64) KillSwitchStatus {
	if !positive(balance) {
		return d.ObserveError(user, nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	g := d.guardLocked(user)
	now := d.now()
	g.samples = append(g.samples, balanceSample{at: now, balance: balance})

	cutoff := now.Add(-d.lookback)
	kept := g.samples[:0]
	for _, s := range g.samples {
		if !s.at.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	g.samples = kept

	peak := balance
	for _, s := range g.samples {
		if s.balance > peak {
			peak = s.balance
		}
	}

	g.status.Peak = peak
	g.status.Current = balance
	g.status.Drawdown = (peak - balance) / peak

	if !g.status.Active && g.status.Drawdown > d.maxDrawdown {
		g.status.Active = true
		g.status.ActivatedAt = now
		d.logger.Warn("drawdown kill switch activated",
			zap.String("user", user),
			zap.Float64("drawdown", g.status.Drawdown),
			zap.Float64("peak", peak),
			zap.Float64("current", balance),
		)
	}
	return g.status
}

// ObserveError records a failed balance measurement. The switch state is
// left unchanged: an active switch stays active, an inactive one is not
// tripped.
func (d *DrawdownProtection) ObserveError(user string, err error) KillSwitchStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	g := d.guardLocked(user)
	d.logger.Warn("balance measurement failed, kill switch unchanged",
		zap.String("user", user),
		zap.Bool("active", g.status.Active),
		zap.Error(err),
	)
	return g.status
}

// Check returns the current status without a new reading
func (d *DrawdownProtection) Check(user string) KillSwitchStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g, ok := d.users[user]; ok {
		return g.status
	}
	return KillSwitchStatus{}
}

// Reset clears the kill switch and forgets the balance history, so the
// next reading becomes the new peak.
func (d *DrawdownProtection) Reset(user string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, user)
	d.logger.Info("drawdown kill switch reset", zap.String("user", user))
}

// ApplyToAllocations halves every allocation while the user's kill switch
// is active. The input map is not modified.
func (d *DrawdownProtection) ApplyToAllocations(user string, alloc map[string]float64) map[string]float64 {
	factor := 1.0
	if d.Check(user).Active {
		factor = 0.5
	}
	out := make(map[string]float64, len(alloc))
	for k, v := range alloc {
		out[k] = v * factor
	}
	return out
}

// Users returns the users with tracked state
func (d *DrawdownProtection) Users() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	users := make([]string, 0, len(d.users))
	for u := range d.users {
		users = append(users, u)
	}
	return users
}

func (d *DrawdownProtection) guardLocked(user string) *userGuard {
	g, ok := d.users[user]
	if !ok {
		g = &userGuard{}
		d.users[user] = g
	}
	return g
}
