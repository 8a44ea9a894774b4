package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const telegramAPIBaseURL = "https://api.telegram.org"

// TelegramSender delivers notifications through the Telegram Bot API.
// The recipient is a chat ID.
type TelegramSender struct {
	botToken string
	baseURL  string
	client   *http.Client
}

// TelegramOption configures a TelegramSender.
type TelegramOption func(*TelegramSender)

// WithTelegramBaseURL overrides the API base URL, for tests.
func WithTelegramBaseURL(u string) TelegramOption {
	return func(s *TelegramSender) { s.baseURL = u }
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(s *TelegramSender) { s.client = c }
}

// NewTelegramSender creates a Telegram sender for the given bot token.
func NewTelegramSender(botToken string, opts ...TelegramOption) *TelegramSender {
	s := &TelegramSender{
		botToken: botToken,
		baseURL:  telegramAPIBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers one message to a chat.
func (s *TelegramSender) Send(ctx context.Context, recipient, subject, body string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	payload := map[string]any{
		"chat_id": recipient,
		"text":    subject + "\n\n" + body,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
