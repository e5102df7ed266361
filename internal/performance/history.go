package performance

import (
	"context"
	"sync"
	"time"
)

// TradeHistoryProvider supplies closed trades for a strategy
type TradeHistoryProvider interface {
	ClosedTrades(ctx context.Context, strategy string, lookbackDays int) ([]Trade, error)
}

// InMemoryTradeHistory implements TradeHistoryProvider with in-memory storage.
type InMemoryTradeHistory struct {
	mu     sync.RWMutex
	trades map[string][]Trade
	now    func() time.Time
}

// NewInMemoryTradeHistory creates a new in-memory trade history.
func NewInMemoryTradeHistory() *InMemoryTradeHistory {
	return &InMemoryTradeHistory{
		trades: make(map[string][]Trade),
		now:    time.Now,
	}
}

// SetClock overrides the clock used for the lookback cut-off
func (h *InMemoryTradeHistory) SetClock(now func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
}

// Record stores a closed trade under its strategy.
func (h *InMemoryTradeHistory) Record(t Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades[t.Strategy] = append(h.trades[t.Strategy], t)
}

// ClosedTrades returns trades closed within the last lookbackDays.
func (h *InMemoryTradeHistory) ClosedTrades(ctx context.Context, strategy string, lookbackDays int) ([]Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	since := h.now().AddDate(0, 0, -lookbackDays)
	var result []Trade
	for _, t := range h.trades[strategy] {
		if !t.ClosedAt.Before(since) {
			result = append(result, t)
		}
	}
	return result, nil
}

// Count returns the number of stored trades across all strategies
func (h *InMemoryTradeHistory) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int
	for _, trades := range h.trades {
		n += len(trades)
	}
	return n
}
