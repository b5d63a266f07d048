package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultAPIBase = "https://api.telegram.org"

// ErrNonRetryable marks delivery failures that will not resolve on
// retry, such as a revoked bot token or an unknown chat.
var ErrNonRetryable = errors.New("non-retryable delivery failure")

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
	log     zerolog.Logger
}

// TelegramOption customizes a Telegram client.
type TelegramOption func(*Telegram)

// WithAPIBase overrides the API endpoint, used in tests.
func WithAPIBase(base string) TelegramOption {
	return func(t *Telegram) {
		t.apiBase = base
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = c
	}
}

// NewTelegram builds a Telegram messenger for the given bot token and
// chat. The per-attempt timeout is enforced by the caller's context.
func NewTelegram(token, chatID string, log zerolog.Logger, opts ...TelegramOption) *Telegram {
	t := &Telegram{
		apiBase: defaultAPIBase,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("component", "telegram").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// Send posts a single message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("%w: encoding request: %v", ErrNonRetryable, err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrNonRetryable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	return t.checkResponse(resp)
}

// Ping verifies the bot token by calling getMe. Used once at startup
// so a bad credential surfaces immediately rather than on the first
// alert.
func (t *Telegram) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/bot%s/getMe", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("checking bot credentials: %w", err)
	}
	defer resp.Body.Close()

	return t.checkResponse(resp)
}

func (t *Telegram) checkResponse(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.OK {
		return nil
	}

	desc := parsed.Description
	if desc == "" {
		desc = http.StatusText(resp.StatusCode)
	}

	// Client errors other than rate limiting indicate a broken token,
	// chat, or payload; retrying the same request cannot help
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: api status %d: %s", ErrNonRetryable, resp.StatusCode, desc)
	}
	return fmt.Errorf("api status %d: %s", resp.StatusCode, desc)
}
