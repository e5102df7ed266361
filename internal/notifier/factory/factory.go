package factory

import (
	"fmt"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/notifier"
	"github.com/newthinker/signalcore/internal/notifier/telegram"
	"github.com/newthinker/signalcore/internal/notifier/webhook"
)

// New creates a notifier based on configuration.
func New(cfg notifier.Config) (notifier.Notifier, error) {
	var n notifier.Notifier
	switch cfg.Type {
	case "webhook":
		n = webhook.New("", nil)
	case "telegram":
		n = telegram.New("", "")
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown notifier type: %s", cfg.Type))
	}
	if err := n.Init(cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, err)
	}
	return n, nil
}

// Build creates and registers every configured notifier.
func Build(cfgs []notifier.Config) (*notifier.Registry, error) {
	registry := notifier.NewRegistry()
	for _, cfg := range cfgs {
		n, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(n); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return registry, nil
}
