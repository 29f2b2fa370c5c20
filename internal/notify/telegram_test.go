package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTelegramValidation(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{ChatID: "1"}, "")
	assert.Error(t, err, "missing token")

	_, err = NewTelegram(TelegramConfig{BotToken: "12345678:abc"}, "")
	assert.Error(t, err, "missing chat id")

	_, err = NewTelegram(TelegramConfig{BotToken: "bad-token", ChatID: "1"}, "")
	assert.Error(t, err, "malformed token")

	_, err = NewTelegram(TelegramConfig{BotToken: "12345678:abc", ChatID: "1"}, "")
	assert.NoError(t, err)
}

func TestTelegramSend(t *testing.T) {
	var got telegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot12345678:abc/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	tn, err := NewTelegram(TelegramConfig{BotToken: "12345678:abc", ChatID: "-100"}, srv.URL)
	require.NoError(t, err)

	require.NoError(t, tn.Send(context.Background(), "hello"))
	assert.Equal(t, "-100", got.ChatID)
	assert.Equal(t, "hello", got.Text)
	assert.True(t, got.DisableWebPagePreview)
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests"}`)
	}))
	defer srv.Close()

	tn, err := NewTelegram(TelegramConfig{BotToken: "12345678:abc", ChatID: "-100"}, srv.URL)
	require.NoError(t, err)

	err = tn.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too Many Requests")
}
