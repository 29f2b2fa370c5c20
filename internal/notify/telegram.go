package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"context"
)

// TelegramConfig holds bot credentials and the destination chat.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	config TelegramConfig
	client *http.Client
	apiURL string
}

// telegramMessage is the sendMessage payload.
type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// telegramResponse is the API response envelope.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewTelegram creates a Telegram notifier. baseURL overrides the API host
// for tests; empty selects api.telegram.org.
func NewTelegram(config TelegramConfig, baseURL string) (*TelegramNotifier, error) {
	if config.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if config.ChatID == "" {
		return nil, fmt.Errorf("telegram chat ID is required")
	}
	parts := strings.Split(config.BotToken, ":")
	if len(parts) != 2 || len(parts[0]) < 8 {
		return nil, fmt.Errorf("invalid telegram bot token format")
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		config: config,
		client: &http.Client{Timeout: 8 * time.Second},
		apiURL: fmt.Sprintf("%s/bot%s", baseURL, config.BotToken),
	}, nil
}

// Send posts the message as plain text with link previews disabled.
func (tn *TelegramNotifier) Send(ctx context.Context, text string) error {
	payload := telegramMessage{
		ChatID:                tn.config.ChatID,
		Text:                  text,
		DisableWebPagePreview: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tn.apiURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tn.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !tr.OK {
		desc := tr.Description
		if desc == "" {
			desc = "unknown error"
		}
		return fmt.Errorf("telegram API error: %s", desc)
	}
	return nil
}
