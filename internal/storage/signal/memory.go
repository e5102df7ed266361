package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/signalcore/internal/core"
)

// MemoryStore is an in-memory signal store.
type MemoryStore struct {
	signals  []core.Signal
	outcomes map[string]Outcome
	maxSize  int
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with max capacity.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryStore{
		signals:  make([]core.Signal, 0, maxSize),
		outcomes: make(map[string]Outcome),
		maxSize:  maxSize,
	}
}

// Save adds a signal to the store.
func (m *MemoryStore) Save(ctx context.Context, signal core.Signal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if signal.ID == "" {
		signal.ID = uuid.NewString()
	}
	m.signals = append(m.signals, signal)

	// Trim if over capacity (remove oldest)
	if len(m.signals) > m.maxSize {
		for _, old := range m.signals[:len(m.signals)-m.maxSize] {
			delete(m.outcomes, old.ID)
		}
		m.signals = m.signals[len(m.signals)-m.maxSize:]
	}

	return signal.ID, nil
}

// GetByID retrieves a signal by ID.
func (m *MemoryStore) GetByID(ctx context.Context, id string) (*core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i := m.indexLocked(id); i >= 0 {
		sig := m.signals[i]
		return &sig, nil
	}
	return nil, core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", id))
}

// List returns signals matching the filter.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]core.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []core.Signal
	for _, sig := range m.signals {
		if m.matches(sig, filter) {
			result = append(result, sig)
		}
	}

	// Apply offset and limit
	if filter.Offset > 0 && filter.Offset < len(result) {
		result = result[filter.Offset:]
	} else if filter.Offset > 0 && filter.Offset >= len(result) {
		return []core.Signal{}, nil
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Count returns the count of matching signals.
func (m *MemoryStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, sig := range m.signals {
		if m.matches(sig, filter) {
			count++
		}
	}
	return count, nil
}

// RecordOutcome stores how a signal resolved. A second outcome for the
// same signal replaces the first.
func (m *MemoryStore) RecordOutcome(ctx context.Context, id string, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(id) < 0 {
		return core.WrapError(core.ErrSignalNotFound, fmt.Errorf("id %s", id))
	}
	m.outcomes[id] = outcome
	return nil
}

// Outcome returns the recorded outcome of a signal
func (m *MemoryStore) Outcome(id string) (Outcome, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.outcomes[id]
	return o, ok
}

// SuccessRate implements the recency lookup used by the release filter.
// Signals without an outcome are not counted.
func (m *MemoryStore) SuccessRate(ctx context.Context, symbol string, action core.Action, since time.Time) (float64, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var wins, resolved int
	for _, sig := range m.signals {
		if sig.Symbol != symbol || sig.Action != action || sig.GeneratedAt.Before(since) {
			continue
		}
		o, ok := m.outcomes[sig.ID]
		if !ok {
			continue
		}
		resolved++
		if o.Won {
			wins++
		}
	}
	if resolved == 0 {
		return 0, 0, nil
	}
	return float64(wins) / float64(resolved), resolved, nil
}

func (m *MemoryStore) indexLocked(id string) int {
	for i := range m.signals {
		if m.signals[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) matches(sig core.Signal, filter ListFilter) bool {
	if filter.Symbol != "" && sig.Symbol != filter.Symbol {
		return false
	}
	if filter.Strategy != "" && sig.Strategy != filter.Strategy {
		return false
	}
	if filter.Action != "" && sig.Action != filter.Action {
		return false
	}
	if !filter.From.IsZero() && sig.GeneratedAt.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && sig.GeneratedAt.After(filter.To) {
		return false
	}
	if filter.Unresolved {
		if _, ok := m.outcomes[sig.ID]; ok {
			return false
		}
	}
	return true
}
