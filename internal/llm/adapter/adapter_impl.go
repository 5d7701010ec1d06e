package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/kubilitics/maintenance-agent/internal/llm/provider/openai"
	"github.com/kubilitics/maintenance-agent/internal/llm/types"
	"github.com/kubilitics/maintenance-agent/internal/metrics"
)

// ProviderType identifies which LLM provider is configured
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderAzure  ProviderType = "azure"
	ProviderNone   ProviderType = "none" // No LLM configured
)

// ErrProviderNotConfigured is returned when an LLM operation is attempted without a configured provider
var ErrProviderNotConfigured = fmt.Errorf("LLM provider not configured")

// Config holds LLM provider configuration
type Config struct {
	Provider    ProviderType  `json:"provider"`
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url"` // OpenAI-compatible URL or Azure endpoint
	Model       string        `json:"model"`    // model name or Azure deployment
	APIVersion  string        `json:"api_version"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Timeout     time.Duration `json:"timeout"`
}

// completer is the provider-side call the invoker delegates to.
type completer interface {
	Complete(ctx context.Context, messages []types.Message) (*types.Response, error)
}

// invokerImpl is the unified invoker implementation
type invokerImpl struct {
	provider ProviderType
	model    string // Model name for metrics
	client   completer
}

// NewInvoker creates an invoker based on configuration.
//
// A missing provider or missing credentials yield an unconfigured invoker
// rather than an error: the CLI still starts, and every run fails at the
// invocation stage with ErrProviderNotConfigured.
func NewInvoker(cfg *Config) (Invoker, error) {
	if cfg == nil || cfg.Provider == "" || cfg.Provider == ProviderNone {
		return &invokerImpl{provider: ProviderNone}, nil
	}

	switch cfg.Provider {
	case ProviderOpenAI, ProviderAzure:
		if cfg.APIKey == "" {
			return &invokerImpl{provider: ProviderNone, model: cfg.Model}, nil
		}
		client, err := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Azure:       cfg.Provider == ProviderAzure,
			APIVersion:  cfg.APIVersion,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
		}
		return &invokerImpl{provider: cfg.Provider, model: client.Model(), client: client}, nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// Invoke delegates to the provider client
func (a *invokerImpl) Invoke(ctx context.Context, req types.Request) (*types.Response, error) {
	if a.provider == ProviderNone || a.client == nil {
		return nil, ErrProviderNotConfigured
	}

	start := time.Now()
	defer func() {
		metrics.LLMRequestDuration.WithLabelValues(string(a.provider), a.model).Observe(time.Since(start).Seconds())
	}()

	resp, err := a.client.Complete(ctx, req.Messages())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(string(a.provider), a.model, status).Inc()
	if err != nil {
		return nil, err
	}

	metrics.LLMTokensUsed.WithLabelValues(string(a.provider), a.model, "input").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(string(a.provider), a.model, "output").Add(float64(resp.Usage.CompletionTokens))
	return resp, nil
}

// Provider returns the configured provider name
func (a *invokerImpl) Provider() string {
	return string(a.provider)
}

// Model returns the configured model name
func (a *invokerImpl) Model() string {
	return a.model
}
