package notifier

import (
	"context"

	"github.com/newthinker/signalcore/internal/core"
)

// Config holds notifier configuration
type Config struct {
	Type   string         `mapstructure:"type"`
	Params map[string]any `mapstructure:"params"`
}

// Notifier delivers released signals to an external channel. Every
// notifier is also a router sink.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Init initializes the notifier with configuration
	Init(cfg Config) error

	// Publish delivers a single released signal
	Publish(ctx context.Context, signal core.Signal) error
}
