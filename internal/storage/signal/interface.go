package signal

import (
	"context"
	"time"

	"github.com/newthinker/signalcore/internal/core"
)

// Store defines the interface for released-signal persistence.
type Store interface {
	// Save persists a signal, assigning an ID when it has none.
	Save(ctx context.Context, signal core.Signal) (string, error)

	// GetByID retrieves a signal by its ID.
	GetByID(ctx context.Context, id string) (*core.Signal, error)

	// List retrieves signals matching the filter, oldest first.
	List(ctx context.Context, filter ListFilter) ([]core.Signal, error)

	// Count returns the number of signals matching the filter.
	Count(ctx context.Context, filter ListFilter) (int, error)

	// RecordOutcome marks a released signal as won or lost.
	RecordOutcome(ctx context.Context, id string, outcome Outcome) error

	// SuccessRate returns the share of resolved signals for symbol and
	// action generated since the given time that won.
	SuccessRate(ctx context.Context, symbol string, action core.Action, since time.Time) (float64, int, error)
}

// Outcome is how a released signal resolved
type Outcome struct {
	Won        bool
	Return     float64
	ResolvedAt time.Time
}

// ListFilter defines criteria for listing signals.
type ListFilter struct {
	Symbol     string
	Strategy   string
	Action     core.Action
	From       time.Time
	To         time.Time
	Unresolved bool
	Limit      int
	Offset     int
}
