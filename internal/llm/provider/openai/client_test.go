package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kubilitics/maintenance-agent/internal/llm/types"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
	}{
		{
			name: "Valid configuration",
			cfg:  Config{APIKey: "sk-test123", Model: "gpt-4o"},
		},
		{
			name:      "Empty API key",
			cfg:       Config{Model: "gpt-4o"},
			wantError: true,
		},
		{
			name: "Default model",
			cfg:  Config{APIKey: "sk-test123"},
		},
		{
			name:      "Azure without endpoint",
			cfg:       Config{APIKey: "key", Model: "deploy", Azure: true},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)

			if tt.wantError && err == nil {
				t.Errorf("NewClient() expected error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("NewClient() unexpected error: %v", err)
			}
			if !tt.wantError && tt.cfg.Model == "" && client.Model() != DefaultModel {
				t.Errorf("Expected default model %s, got %s", DefaultModel, client.Model())
			}
		})
	}
}

type capturedRequest struct {
	path    string
	query   string
	auth    string
	apiKey  string
	payload map[string]interface{}
}

func fakeCompletionServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.auth = r.Header.Get("Authorization")
		captured.apiKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&captured.payload)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1767225600,
  "model": "gpt-4o",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"riskScore\": 80}"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
}`

func TestComplete_OpenAICompatible(t *testing.T) {
	srv, captured := fakeCompletionServer(t, http.StatusOK, completionBody)

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/", Model: "gpt-4o", Temperature: 0.2})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	resp, err := client.Complete(context.Background(), []types.Message{
		{Role: types.RoleSystem, Content: "You are a maintenance planner."},
		{Role: types.RoleUser, Content: "Schedule wo-1"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Text != `{"riskScore": 80}` {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("unexpected finish reason: %q", resp.FinishReason)
	}
	if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 30 || resp.Usage.TotalTokens != 150 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}

	if captured.path != "/v1/chat/completions" {
		t.Errorf("unexpected path: %s", captured.path)
	}
	if captured.auth != "Bearer sk-test" {
		t.Errorf("unexpected auth header: %q", captured.auth)
	}
	msgs, ok := captured.payload["messages"].([]interface{})
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected 2 messages in payload, got %v", captured.payload["messages"])
	}
	first := msgs[0].(map[string]interface{})
	if first["role"] != "system" {
		t.Errorf("first message should be system, got %v", first["role"])
	}
}

func TestComplete_Azure(t *testing.T) {
	srv, captured := fakeCompletionServer(t, http.StatusOK, completionBody)

	client, err := NewClient(Config{
		APIKey:     "azure-key",
		BaseURL:    srv.URL,
		Model:      "maint-deploy",
		Azure:      true,
		APIVersion: "2024-08-01-preview",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Complete(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if !strings.Contains(captured.path, "/openai/deployments/maint-deploy/chat/completions") {
		t.Errorf("unexpected azure path: %s", captured.path)
	}
	if !strings.Contains(captured.query, "api-version=2024-08-01-preview") {
		t.Errorf("api-version missing from query: %s", captured.query)
	}
	if captured.apiKey != "azure-key" {
		t.Errorf("api-key header not set: %q", captured.apiKey)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv, _ := fakeCompletionServer(t, http.StatusUnauthorized,
		`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`)

	client, err := NewClient(Config{APIKey: "sk-bad", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Complete(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "status 401") {
		t.Errorf("status code missing from error: %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv, _ := fakeCompletionServer(t, http.StatusOK, `{"id": "x", "choices": [], "usage": {}}`)

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.Complete(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error when response has no choices")
	}
}

func TestComplete_NoMessages(t *testing.T) {
	client, err := NewClient(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty message list")
	}
}
