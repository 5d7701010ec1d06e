package adapter

import (
	"context"

	"github.com/kubilitics/maintenance-agent/internal/llm/types"
)

// Package adapter provides the reasoning invoker used by the pipeline.
//
// An Invoker sends the agent's fixed instructions, the restored
// conversation turns and the run's briefing to the configured provider and
// returns the raw text reply. It does not retry, does not parse the reply
// and does not persist anything beyond usage accounting.
//
// Supported Providers:
//   1. openai: api.openai.com or any OpenAI-compatible endpoint (base_url)
//   2. azure:  Azure OpenAI deployment (base_url = resource endpoint,
//              model = deployment name)
//   3. none:   no provider; every call fails with ErrProviderNotConfigured

// Invoker defines the reasoning call.
type Invoker interface {
	// Invoke performs one chat completion. A transport or API failure is
	// returned as an error; there is no partial response.
	Invoke(ctx context.Context, req types.Request) (*types.Response, error)

	// Provider and Model identify the backend for metrics and accounting.
	Provider() string
	Model() string
}
