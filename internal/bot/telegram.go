// Package bot implements the Telegram chat frontend: a long-polling Bot API
// client and the command handlers that drive the ledger engine.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Update is one getUpdates entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// User identifies the Telegram account behind a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Chat identifies where to send the reply.
type Chat struct {
	ID int64 `json:"id"`
}

// apiResponse is the Bot API envelope around every result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// APIClient is a minimal Telegram Bot API client covering getUpdates long
// polling and sendMessage.
type APIClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewAPIClient creates a client for the given bot token.
func NewAPIClient(token string) *APIClient {
	return &APIClient{
		token:   token,
		baseURL: defaultAPIBase,
		// The HTTP timeout must exceed the long-poll window.
		client: &http.Client{Timeout: 50 * time.Second},
	}
}

// WithBaseURL overrides the API host, for tests.
func (c *APIClient) WithBaseURL(base string) *APIClient {
	c.baseURL = base
	return c
}

// GetUpdates long-polls for updates after offset, holding the request open
// up to timeoutSec.
func (c *APIClient) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeoutSec))
	params.Set("allowed_updates", `["message"]`)

	body, err := c.call(ctx, "getUpdates", params)
	if err != nil {
		return nil, fmt.Errorf("bot: get updates: %w", err)
	}

	var updates []Update
	if err := json.Unmarshal(body, &updates); err != nil {
		return nil, fmt.Errorf("bot: decode updates: %w", err)
	}
	return updates, nil
}

// SendMessage posts a Markdown-formatted reply to a chat.
func (c *APIClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("bot: marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("bot: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("bot: send message: %w", err)
	}
	defer resp.Body.Close()

	if err := checkAPIResponse(resp); err != nil {
		return fmt.Errorf("bot: send message: %w", err)
	}
	return nil
}

// call issues a GET method call and unwraps the API envelope.
func (c *APIClient) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s?%s", c.baseURL, c.token, method, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("api error: %s", envelope.Description)
	}
	return envelope.Result, nil
}

func checkAPIResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("api error: %s", envelope.Description)
	}
	return nil
}
