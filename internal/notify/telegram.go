package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramChannel posts one message per event to a fixed chat through the Bot API.
type TelegramChannel struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

func NewTelegramChannel(token, chatID, baseURL string, client *http.Client) *TelegramChannel {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramChannel{token: token, chatID: chatID, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (t *TelegramChannel) Name() string { return "telegram" }

// Enabled reports whether both the bot token and the chat id are configured.
func (t *TelegramChannel) Enabled() bool { return t.token != "" && t.chatID != "" }

type sendMessageReq struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramChannel) Deliver(ctx context.Context, ev Event) error {
	if !t.Enabled() {
		return nil
	}
	return t.Send(ctx, MessageText(ev))
}

// Send posts text once; there is no retry.
func (t *TelegramChannel) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageReq{ChatID: t.chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
