package factory

import (
	"errors"
	"testing"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/notifier"
)

func TestNew_Webhook(t *testing.T) {
	n, err := New(notifier.Config{Type: "webhook", Params: map[string]any{"url": "http://localhost/hook"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "webhook" {
		t.Errorf("expected webhook, got %s", n.Name())
	}
}

func TestNew_Telegram(t *testing.T) {
	n, err := New(notifier.Config{Type: "telegram", Params: map[string]any{"bot_token": "t", "chat_id": "c"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "telegram" {
		t.Errorf("expected telegram, got %s", n.Name())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  notifier.Config
	}{
		{"unknown type", notifier.Config{Type: "pager"}},
		{"webhook without url", notifier.Config{Type: "webhook"}},
		{"telegram without chat", notifier.Config{Type: "telegram", Params: map[string]any{"bot_token": "t"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	registry, err := Build([]notifier.Config{
		{Type: "webhook", Params: map[string]any{"url": "http://localhost/hook"}},
		{Type: "telegram", Params: map[string]any{"bot_token": "t", "chat_id": "c"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if registry.Len() != 2 {
		t.Errorf("expected 2 notifiers, got %d", registry.Len())
	}

	_, err = Build([]notifier.Config{
		{Type: "webhook", Params: map[string]any{"url": "http://a"}},
		{Type: "webhook", Params: map[string]any{"url": "http://b"}},
	})
	if !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected duplicate notifier to be rejected, got %v", err)
	}
}
