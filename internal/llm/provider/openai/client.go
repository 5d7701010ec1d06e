package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kubilitics/maintenance-agent/internal/llm/types"
)

// Package openai provides the chat completion client used by the invoker.
//
// Responsibilities:
//   - Send system + history + user messages to a chat completions endpoint
//   - Target api.openai.com, any OpenAI-compatible base URL, or an Azure
//     OpenAI deployment
//   - Report token usage returned by the API
//   - Translate API errors into wrapped Go errors (status code preserved)

const (
	DefaultModel      = "gpt-4o"
	DefaultMaxTokens  = 2048
	DefaultTimeout    = 120 * time.Second
	DefaultAPIVersion = "2024-08-01-preview"
)

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string // deployment name when Azure is set

	// Azure switches to Azure OpenAI request routing and api-key auth.
	Azure      bool
	APIVersion string

	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client wraps the go-openai client for single-shot completions.
type Client struct {
	api         *goopenai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewClient creates a new client with configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var apiCfg goopenai.ClientConfig
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("Azure OpenAI endpoint is required")
		}
		apiCfg = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion == "" {
			cfg.APIVersion = DefaultAPIVersion
		}
		apiCfg.APIVersion = cfg.APIVersion
		deployment := cfg.Model
		apiCfg.AzureModelMapperFunc = func(string) string { return deployment }
	} else {
		apiCfg = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:         goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Model returns the configured model (or Azure deployment) name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends messages and returns the first choice.
func (c *Client) Complete(ctx context.Context, messages []types.Message) (*types.Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("OpenAI API error (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	return &types.Response{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
