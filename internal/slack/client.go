// Package slack is the chat platform adapter: a minimal Web API client
// for outbound calls and a Socket Mode listener for inbound events.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dailysync/standup-bot/internal/standup"
)

const defaultAPIBase = "https://slack.com/api"

// Client calls the Slack Web API. It implements bot.Transport.
type Client struct {
	botToken string
	appToken string
	apiBase  string
	httpc    *http.Client
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpc = h
		}
	}
}

// WithAPIBase overrides the API base URL. Used by tests.
func WithAPIBase(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.apiBase = base
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient builds a Web API client. botToken (xoxb-) authorizes Web API
// calls; appToken (xapp-) opens Socket Mode connections and may be empty
// when Socket Mode is not used.
func NewClient(botToken, appToken string, opts ...ClientOption) (*Client, error) {
	if botToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	c := &Client{
		botToken: botToken,
		appToken: appToken,
		apiBase:  defaultAPIBase,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// apiError is a Slack API-level failure (ok=false in the envelope).
type apiError struct {
	Method string
	Code   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("slack: %s failed: %s", e.Method, e.Code)
}

// callJSON POSTs a JSON body to a Web API method and decodes the reply
// envelope into out. token selects which credential authorizes the call.
func (c *Client) callJSON(ctx context.Context, method, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("slack: encode %s request: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/"+method, &buf)
	if err != nil {
		return fmt.Errorf("slack: build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("slack: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack: %s: unexpected status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack: decode %s response: %w", method, err)
	}
	return nil
}

// PostMessage sends text to a channel via chat.postMessage.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	body := map[string]string{"channel": channel, "text": text}
	if err := c.callJSON(ctx, "chat.postMessage", c.botToken, body, &out); err != nil {
		return err
	}
	if !out.OK {
		return &apiError{Method: "chat.postMessage", Code: out.Error}
	}
	return nil
}

// GetUserInfo resolves display metadata for a user via users.info.
func (c *Client) GetUserInfo(ctx context.Context, userID string) (standup.UserInfo, error) {
	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		User  struct {
			ID       string `json:"id"`
			RealName string `json:"real_name"`
			Profile  struct {
				DisplayName string `json:"display_name"`
				Title       string `json:"title"`
			} `json:"profile"`
		} `json:"user"`
	}
	body := map[string]string{"user": userID}
	if err := c.callJSON(ctx, "users.info", c.botToken, body, &out); err != nil {
		return standup.UserInfo{}, err
	}
	if !out.OK {
		return standup.UserInfo{}, &apiError{Method: "users.info", Code: out.Error}
	}

	name := out.User.Profile.DisplayName
	if name == "" {
		name = out.User.RealName
	}
	return standup.UserInfo{
		ID:             userID,
		DisplayName:    name,
		ExternalHandle: out.User.Profile.Title,
	}, nil
}

// openConnection requests a Socket Mode WebSocket URL via
// apps.connections.open. Authorized by the app-level token.
func (c *Client) openConnection(ctx context.Context) (string, error) {
	if c.appToken == "" {
		return "", fmt.Errorf("slack: app token is required for socket mode")
	}
	var out struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		URL   string `json:"url"`
	}
	if err := c.callJSON(ctx, "apps.connections.open", c.appToken, struct{}{}, &out); err != nil {
		return "", err
	}
	if !out.OK {
		return "", &apiError{Method: "apps.connections.open", Code: out.Error}
	}
	return out.URL, nil
}
