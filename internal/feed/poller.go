package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler receives every new or updated candle
type Handler func(symbol string, c core.Candle)

// PollerConfig holds polling, pacing and circuit settings
type PollerConfig struct {
	Interval        time.Duration
	RatePerSecond   float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultPollerConfig polls every minute at up to 10 requests per second
// and opens a symbol's circuit after 5 consecutive failures.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:        time.Minute,
		RatePerSecond:   10,
		Burst:           10,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Poller pulls candles from a CandleFeed and forwards only bars it has not
// seen. Each symbol has its own circuit breaker; requests share one rate
// limiter.
type Poller struct {
	cfg     PollerConfig
	feed    CandleFeed
	handler Handler
	limiter *rate.Limiter
	metrics *metrics.Registry
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	last     map[string]core.Candle
}

// NewPoller creates a poller that hands candles to handler
func NewPoller(cfg PollerConfig, feed CandleFeed, handler Handler, logger ...*zap.Logger) *Poller {
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = def.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	l := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &Poller{
		cfg:      cfg,
		feed:     feed,
		handler:  handler,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:   l,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		last:     make(map[string]core.Candle),
	}
}

// SetMetrics attaches a metrics registry
func (p *Poller) SetMetrics(m *metrics.Registry) {
	p.metrics = m
}

func (p *Poller) breaker(symbol string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[symbol]; ok {
		return cb
	}
	failures := p.cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "feed:" + symbol,
		MaxRequests: 1,
		Timeout:     p.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEndOfFeed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("feed circuit state changed",
				zap.String("circuit", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	p.breakers[symbol] = cb
	return cb
}

// BreakerState returns the circuit state for symbol
func (p *Poller) BreakerState(symbol string) gobreaker.State {
	return p.breaker(symbol).State()
}

// PollOnce fetches one candle for symbol. It reports whether the candle was
// new or an update of the last bar and was forwarded to the handler.
func (p *Poller) PollOnce(ctx context.Context, symbol string) (bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return false, err
	}

	res, err := p.breaker(symbol).Execute(func() (interface{}, error) {
		return p.feed.Next(ctx, symbol)
	})
	switch {
	case errors.Is(err, ErrEndOfFeed):
		return false, ErrEndOfFeed
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return false, core.WrapError(core.ErrFeedUnavailable, fmt.Errorf("%s: %w", symbol, err))
	case err != nil:
		p.metrics.RecordFeedError(symbol)
		return false, core.WrapError(core.ErrFeedFailed, fmt.Errorf("%s: %w", symbol, err))
	}

	c := res.(core.Candle)
	p.mu.Lock()
	last, seen := p.last[symbol]
	fresh := !seen || c.Time.After(last.Time) || (c.Time.Equal(last.Time) && c != last)
	if fresh {
		p.last[symbol] = c
	}
	p.mu.Unlock()

	if fresh && p.handler != nil {
		p.handler(symbol, c)
	}
	return fresh, nil
}

// Drain polls every symbol back to back until each feed is exhausted or
// ctx is done. Use it for finite replay feeds.
func (p *Poller) Drain(ctx context.Context, symbols []string) error {
	active := append([]string(nil), symbols...)
	for len(active) > 0 {
		next := active[:0]
		for _, symbol := range active {
			_, err := p.PollOnce(ctx, symbol)
			switch {
			case errors.Is(err, ErrEndOfFeed):
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, core.ErrFeedUnavailable):
				p.logger.Warn("giving up on symbol, circuit open", zap.String("symbol", symbol), zap.Error(err))
				continue
			case err != nil:
				p.logger.Warn("poll failed", zap.String("symbol", symbol), zap.Error(err))
			}
			next = append(next, symbol)
		}
		active = next
	}
	return nil
}

// Run polls every symbol once per interval until ctx is done. Symbols whose
// feed ends are dropped; Run returns nil when none are left.
func (p *Poller) Run(ctx context.Context, symbols []string) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	active := append([]string(nil), symbols...)
	for {
		next := active[:0]
		for _, symbol := range active {
			_, err := p.PollOnce(ctx, symbol)
			switch {
			case errors.Is(err, ErrEndOfFeed):
				p.logger.Info("feed ended", zap.String("symbol", symbol))
				continue
			case ctx.Err() != nil:
				return nil
			case err != nil:
				p.logger.Warn("poll failed", zap.String("symbol", symbol), zap.Error(err))
			}
			next = append(next, symbol)
		}
		active = next
		if len(active) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
