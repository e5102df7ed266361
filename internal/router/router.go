// Package router is the release stage: it deduplicates approved signals,
// persists them and fans them out to sinks.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/signalcore/internal/cooldown"
	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/metrics"
	"github.com/newthinker/signalcore/internal/storage/signal"
	"go.uber.org/zap"
)

// Sink receives released signals
type Sink interface {
	Name() string
	Publish(ctx context.Context, sig core.Signal) error
}

// Config holds router configuration
type Config struct {
	CooldownDuration time.Duration `mapstructure:"cooldown_duration"`
	SinkTimeout      time.Duration `mapstructure:"sink_timeout"`
}

// DefaultConfig returns default router configuration
func DefaultConfig() Config {
	return Config{
		CooldownDuration: cooldown.DefaultWindow,
		SinkTimeout:      10 * time.Second,
	}
}

// Router releases final signals
type Router struct {
	cfg         Config
	cooldowns   *cooldown.Book
	logger      *zap.Logger
	metrics     *metrics.Registry
	signalStore signal.Store
	sinks       []Sink
	now         func() time.Time
	mu          sync.RWMutex
}

// New creates a new signal router
func New(cfg Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultConfig().SinkTimeout
	}
	return &Router{
		cfg:       cfg,
		cooldowns: cooldown.New(cfg.CooldownDuration, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// SetSignalStore sets the signal persistence store
func (r *Router) SetSignalStore(store signal.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signalStore = store
}

// SetMetrics attaches a metrics registry
func (r *Router) SetMetrics(m *metrics.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// AddSink registers a release sink
func (r *Router) AddSink(s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// SetClock overrides the clock used for signals without a timestamp
func (r *Router) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Release validates, deduplicates and delivers sig. A held-back signal
// returns its reason; store and sink failures are logged, never returned.
func (r *Router) Release(ctx context.Context, sig core.Signal) (core.Signal, core.Reason) {
	r.mu.RLock()
	store, sinks, m, now := r.signalStore, r.sinks, r.metrics, r.now
	r.mu.RUnlock()

	if err := sig.Validate(); err != nil {
		r.logger.Warn("refusing to release invalid signal",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.Error(err),
		)
		return sig, core.ReasonInvalidGeometry
	}

	if sig.GeneratedAt.IsZero() {
		sig.GeneratedAt = now()
	}

	key := cooldown.Key{Strategy: sig.Strategy, Symbol: sig.Symbol, Action: sig.Action}
	if !r.cooldowns.TryAcquire(key, sig.GeneratedAt) {
		r.logger.Debug("signal filtered out",
			zap.String("symbol", sig.Symbol),
			zap.String("action", string(sig.Action)),
			zap.String("reason", core.ReasonDuplicateRelease.String()),
		)
		return sig, core.ReasonDuplicateRelease
	}

	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}

	// Persist signal if store is configured
	if store != nil {
		if _, err := store.Save(ctx, sig); err != nil {
			r.logger.Error("failed to persist signal", zap.String("id", sig.ID), zap.Error(err))
		}
	}

	failed := 0
	for _, s := range sinks {
		sctx, cancel := context.WithTimeout(ctx, r.cfg.SinkTimeout)
		err := s.Publish(sctx, sig)
		cancel()
		if err != nil {
			failed++
			m.RecordSinkError(s.Name())
			r.logger.Error("sink failed",
				zap.String("sink", s.Name()),
				zap.String("id", sig.ID),
				zap.Error(err),
			)
		}
	}

	m.RecordRelease(sig.Symbol, string(sig.Action))
	r.logger.Info("signal released",
		zap.String("id", sig.ID),
		zap.String("symbol", sig.Symbol),
		zap.String("action", string(sig.Action)),
		zap.Float64("entry", sig.Entry),
		zap.Float64("stop_loss", sig.StopLoss),
		zap.Float64("take_profit", sig.TakeProfit),
		zap.Float64("confidence", sig.Confidence),
		zap.Int("sinks", len(sinks)),
		zap.Int("errors", failed),
	)

	return sig, core.ReasonNone
}

// ClearCooldown removes the dedupe entry for one release key
func (r *Router) ClearCooldown(strategy, symbol string, action core.Action) {
	r.cooldowns.Clear(cooldown.Key{Strategy: strategy, Symbol: symbol, Action: action})
}

// StartCleanupRoutine starts a background goroutine that periodically cleans
// up expired cooldowns, measuring age with now.
func (r *Router) StartCleanupRoutine(ctx context.Context, interval time.Duration, now func() time.Time) {
	r.cooldowns.StartCleanupRoutine(ctx, interval, now)
}

// GetStats returns router statistics
func (r *Router) GetStats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		names[i] = s.Name()
	}
	return map[string]any{
		"cooldowns_active": r.cooldowns.Len(),
		"cooldown_seconds": r.cooldowns.Window().Seconds(),
		"sinks":            names,
		"store":            r.signalStore != nil,
	}
}
