package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/signalcore/internal/core"
	"github.com/newthinker/signalcore/internal/notifier"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram sends released signals through the Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiURL:   defaultAPIURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}
	if apiURL, ok := cfg.Params["api_url"].(string); ok && apiURL != "" {
		t.apiURL = apiURL
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.apiURL == "" {
		t.apiURL = defaultAPIURL
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

func (t *Telegram) Publish(ctx context.Context, signal core.Signal) error {
	return t.sendMessage(ctx, t.formatSignal(signal))
}

func (t *Telegram) formatSignal(signal core.Signal) string {
	var sb strings.Builder

	actionEmoji := "📈"
	if signal.Action == core.ActionSell {
		actionEmoji = "📉"
	}

	sb.WriteString(fmt.Sprintf("%s *%s* - %s\n", actionEmoji, signal.Symbol, signal.Action))
	sb.WriteString(fmt.Sprintf("💰 Entry: %.4f\n", signal.Entry))
	sb.WriteString(fmt.Sprintf("🛑 Stop: %.4f\n", signal.StopLoss))
	sb.WriteString(fmt.Sprintf("🎯 Target: %.4f (R:R %.2f)\n", signal.TakeProfit, signal.RiskReward))
	sb.WriteString(fmt.Sprintf("📊 Confidence: %.1f%%\n", signal.Confidence*100))

	if signal.PositionSize > 0 {
		sb.WriteString(fmt.Sprintf("📦 Size: %.2f\n", signal.PositionSize))
	}
	if signal.Reason != "" {
		sb.WriteString(fmt.Sprintf("💡 Reason: %s\n", signal.Reason))
	}

	sb.WriteString(fmt.Sprintf("⏰ Time: %s", signal.GeneratedAt.Format("2006-01-02 15:04:05")))

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.botToken)

	payload := map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}
