package adapter

// usageRecorder wraps an Invoker with post-call token accounting. This is
// the production wrapper:
//
//	inv, _ := NewInvoker(cfg)
//	recorded := NewUsageRecorder(inv, store, logger)
//
// It satisfies the same Invoker interface so callers do not need to change.

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/maintenance-agent/internal/audit"
	"github.com/kubilitics/maintenance-agent/internal/db"
	"github.com/kubilitics/maintenance-agent/internal/llm/types"
)

type usageRecorder struct {
	inner  Invoker
	store  db.UsageStore
	logger *zap.Logger
}

// NewUsageRecorder creates an Invoker that appends one usage record per
// successful call. Recording failures are logged and never fail the call.
func NewUsageRecorder(inner Invoker, store db.UsageStore, logger *zap.Logger) Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &usageRecorder{inner: inner, store: store, logger: logger}
}

// Invoke executes the call, then records usage (estimated from text length
// when the provider reported none).
func (u *usageRecorder) Invoke(ctx context.Context, req types.Request) (*types.Response, error) {
	resp, err := u.inner.Invoke(ctx, req)
	if err != nil {
		return resp, err
	}

	prompt, completion := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if prompt == 0 && completion == 0 {
		prompt, completion = estimateTokens(req.Messages(), resp.Text)
	}

	rec := &db.UsageRecord{
		RunID:            audit.GetCorrelationID(ctx),
		Workflow:         req.Purpose,
		EntityID:         req.EntityID,
		Provider:         u.inner.Provider(),
		Model:            u.inner.Model(),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		RecordedAt:       time.Now().UTC(),
	}
	if err := u.store.AppendUsageRecord(ctx, rec); err != nil {
		u.logger.Warn("failed to record token usage",
			zap.String("run_id", rec.RunID),
			zap.String("workflow", rec.Workflow),
			zap.Error(err),
		)
	}

	return resp, nil
}

// Provider delegates to the inner invoker.
func (u *usageRecorder) Provider() string {
	return u.inner.Provider()
}

// Model delegates to the inner invoker.
func (u *usageRecorder) Model() string {
	return u.inner.Model()
}

// estimateTokens provides a rough token count estimate (4 chars per token).
func estimateTokens(messages []types.Message, response string) (int, int) {
	inputChars := 0
	for _, m := range messages {
		inputChars += len(m.Content)
	}
	return inputChars / 4, len(response) / 4
}
