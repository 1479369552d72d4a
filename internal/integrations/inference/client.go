// Package inference calls the OpenAI chat-completion backend with the
// conversation window assembled by the orchestrator.
package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"groupchat-agent/internal/domain"
)

const (
	// maxTemperature caps sampling regardless of configuration.
	maxTemperature = 0.5

	maxReplyTokens = 512
	requestTimeout = 15 * time.Second
)

// Getter resolves the API key from the parameter store.
type Getter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// Client is a focused chat-completion client. The API key is fetched from SSM
// on the first call to Complete and reused for the lifetime of the process.
type Client struct {
	getter      Getter
	paramPrefix string
	model       string
	temperature float32
	baseURL     string
	httpClient  *http.Client

	apiOnce sync.Once
	api     *openai.Client
	apiErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTemperature sets the sampling temperature, capped at maxTemperature.
func WithTemperature(temperature float32) Option {
	return func(c *Client) {
		if temperature < 0 {
			temperature = 0
		}
		if temperature > maxTemperature {
			temperature = maxTemperature
		}
		c.temperature = temperature
	}
}

// NewClient creates a Client backed by the given paramstore Getter for API
// key retrieval.
func NewClient(ps Getter, paramPrefix, model string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("inference: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("inference: parameter prefix must not be empty")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("inference: model must not be empty")
	}
	c := &Client{
		getter:      ps,
		paramPrefix: paramPrefix,
		model:       model,
		temperature: maxTemperature,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPI builds the underlying OpenAI client once, after fetching the API
// key from the parameter store.
func (c *Client) resolveAPI(ctx context.Context) (*openai.Client, error) {
	c.apiOnce.Do(func() {
		key, err := c.getter.GetToken(ctx, c.paramPrefix+"/open-ai-token")
		if err != nil {
			c.apiErr = fmt.Errorf("inference: fetch API key: %w", err)
			return
		}
		cfg := openai.DefaultConfig(key)
		if c.baseURL != "" {
			cfg.BaseURL = c.baseURL
		}
		cfg.HTTPClient = c.httpClient
		c.api = openai.NewClientWithConfig(cfg)
	})
	return c.api, c.apiErr
}

// Complete sends the system prompt plus the conversation window to the
// completion backend and returns the reply text. An empty completion is an
// error; the caller substitutes its fallback reply.
func (c *Client) Complete(ctx context.Context, systemPrompt string, window []domain.ContextEntry) (string, error) {
	api, err := c.resolveAPI(ctx)
	if err != nil {
		return "", err
	}

	resp, err := api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(systemPrompt, window),
		Temperature: c.temperature,
		MaxTokens:   maxReplyTokens,
	})
	if err != nil {
		return "", fmt.Errorf("inference: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("inference: no choices in response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("inference: empty completion text")
	}
	return text, nil
}

// buildMessages filters the window to user/assistant entries with non-empty
// content; anything else never reaches the backend.
func buildMessages(systemPrompt string, window []domain.ContextEntry) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, entry := range window {
		if entry.Role != domain.RoleUser && entry.Role != domain.RoleAssistant {
			continue
		}
		if entry.Content == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    entry.Role,
			Content: entry.Content,
		})
	}
	return messages
}
