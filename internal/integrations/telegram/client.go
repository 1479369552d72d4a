// Package telegram is a minimal Telegram Bot API client covering the two
// calls this service makes: getMe and sendMessage.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Getter resolves the bot token from the parameter store.
type Getter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// apiResponse is the generic Telegram API response wrapper.
type apiResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

type sendMessageRequest struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type getMeResult struct {
	Username string `json:"username"`
}

// Client calls the Telegram Bot API. The bot token is fetched from SSM on
// first use and reused for the lifetime of the process; the bot's own
// username is cached after the first successful getMe.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error

	nameMu   sync.RWMutex
	username string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore Getter for bot
// token retrieval.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 7 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveToken fetches the bot token from SSM on the first call and returns
// the cached result on every subsequent call.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		c.token, c.tokenErr = c.getter.GetToken(ctx, c.paramPrefix+"/telegram-token")
	})
	return c.token, c.tokenErr
}

func (c *Client) methodURL(token, method string) string {
	return c.baseURL + "/bot" + token + "/" + method
}

// BotUsername returns the bot's own username, resolving it via getMe on the
// first call. Only a successful resolution is cached; a failed lookup is
// retried on the next call. Callers treat an error as "identity unknown".
func (c *Client) BotUsername(ctx context.Context) (string, error) {
	c.nameMu.RLock()
	if c.username != "" {
		name := c.username
		c.nameMu.RUnlock()
		return name, nil
	}
	c.nameMu.RUnlock()

	token, err := c.resolveToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL(token, "getMe"), nil)
	if err != nil {
		return "", fmt.Errorf("telegram: create getMe request: %w", err)
	}
	raw, err := c.doAPIRequest(req)
	if err != nil {
		return "", fmt.Errorf("telegram: getMe: %w", err)
	}

	var me getMeResult
	if err := json.Unmarshal(raw, &me); err != nil {
		return "", fmt.Errorf("telegram: decode getMe result: %w", err)
	}
	if me.Username == "" {
		return "", errors.New("telegram: getMe returned no username")
	}

	c.nameMu.Lock()
	c.username = me.Username
	c.nameMu.Unlock()
	return me.Username, nil
}

// SendMessage delivers text to a chat. A non-zero replyToMessageID threads
// the reply to that message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, replyToMessageID int64) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:           chatID,
		Text:             text,
		ReplyToMessageID: replyToMessageID,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal sendMessage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(token, "sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.doAPIRequest(req); err != nil {
		return fmt.Errorf("telegram: sendMessage: %w", err)
	}
	return nil
}

// doAPIRequest executes req and unwraps the {ok, result} envelope, returning
// the raw result payload.
func (c *Client) doAPIRequest(req *http.Request) (json.RawMessage, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", res.StatusCode, string(buf))
	}

	var payload apiResponse
	if err := json.Unmarshal(buf, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("api responded ok=false: %s", string(buf))
	}
	return payload.Result, nil
}
