package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newFileLogger(t *testing.T) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(&Config{AuditLogPath: path, MaxSize: 10, MaxBackups: 3, LogLevel: "info"}, nil)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger, path
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("audit line is not JSON: %q", sc.Text())
		}
		out = append(out, line)
	}
	return out
}

func TestNewLogger_RequiresPath(t *testing.T) {
	_, err := NewLogger(&Config{LogLevel: "info"}, nil)
	if err == nil {
		t.Fatal("Expected error for empty audit path")
	}
}

func TestNewAppLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, level, err := NewAppLogger(&Config{AppLogPath: path, LogLevel: "warn", Format: "json", MaxSize: 1})
	if err != nil {
		t.Fatalf("NewAppLogger failed: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept", zap.String("work_order_id", "wo-1"))
	level.SetLevel(zapcore.DebugLevel)
	logger.Debug("now visible")
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read app log: %v", err)
	}
	text := string(content)
	if strings.Contains(text, "dropped") {
		t.Error("info line written below warn level")
	}
	if !strings.Contains(text, `"work_order_id":"wo-1"`) {
		t.Error("structured field missing")
	}
	if !strings.Contains(text, "now visible") {
		t.Error("level change not applied")
	}
}

func TestNewAppLogger_InvalidLevel(t *testing.T) {
	_, _, err := NewAppLogger(&Config{LogLevel: "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected 'invalid log level' error, got: %v", err)
	}
}

func TestLogRunLifecycle(t *testing.T) {
	logger, path := newFileLogger(t)
	ctx := context.Background()
	runID := "run-123"

	if err := logger.LogRunStarted(ctx, runID, "schedule", "wo-test-001"); err != nil {
		t.Fatalf("LogRunStarted failed: %v", err)
	}
	if err := logger.LogStageReached(ctx, runID, "schedule", "ContextBuilt"); err != nil {
		t.Fatalf("LogStageReached failed: %v", err)
	}
	if err := logger.LogRunCompleted(ctx, runID, "schedule", "sched-1", 2*time.Second); err != nil {
		t.Fatalf("LogRunCompleted failed: %v", err)
	}
	if err := logger.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 3 {
		t.Fatalf("expected 3 audit lines, got %d", len(lines))
	}
	for _, l := range lines {
		if l["correlation_id"] != runID {
			t.Errorf("line missing correlation id: %v", l)
		}
	}
	if lines[0]["event_type"] != string(EventRunStarted) || lines[2]["event_type"] != string(EventRunCompleted) {
		t.Errorf("unexpected event order: %v, %v", lines[0]["event_type"], lines[2]["event_type"])
	}

	var completed Event
	if err := json.Unmarshal([]byte(lines[2]["message"].(string)), &completed); err != nil {
		t.Fatalf("message is not an event: %v", err)
	}
	if completed.DurationMs != 2000 || completed.Resource != "sched-1" {
		t.Errorf("unexpected completed event: %+v", completed)
	}
}

func TestLogRunFailed(t *testing.T) {
	logger, path := newFileLogger(t)

	err := logger.LogRunFailed(context.Background(), "run-9", "parts_order", "Validated", errors.New("riskScore out of range"))
	if err != nil {
		t.Fatalf("LogRunFailed failed: %v", err)
	}
	_ = logger.Sync()

	lines := readLines(t, path)
	if len(lines) != 1 || lines[0]["result"] != string(ResultFailure) {
		t.Fatalf("expected one failure line, got %v", lines)
	}
	if !strings.Contains(lines[0]["message"].(string), "riskScore out of range") {
		t.Error("error text missing from event")
	}
}

func TestZapLogger_DegradationEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core))
	defer logger.Close()

	ctx := context.Background()
	_ = logger.LogFallbackUsed(ctx, "run-1", "maintenance_windows", "no live windows")
	_ = logger.LogTranscriptDegraded(ctx, "run-1", "MACHINE-001", errors.New("disk full"))
	_ = logger.LogStatusChanged(ctx, "run-1", "wo-1", "Created", "Scheduled")
	_ = logger.Sync()

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["result"] != string(ResultDegraded) {
		t.Errorf("fallback should be degraded: %v", entries[0].ContextMap())
	}
	if entries[2].ContextMap()["event_type"] != string(EventWorkOrderStatusChanged) {
		t.Errorf("unexpected event type: %v", entries[2].ContextMap())
	}
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "run-42")
	if got := GetCorrelationID(ctx); got != "run-42" {
		t.Errorf("expected run-42, got %q", got)
	}
	if got := GetCorrelationID(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	if GenerateCorrelationID() == GenerateCorrelationID() {
		t.Error("generated ids should differ")
	}
}

func TestEventBuilder(t *testing.T) {
	e := NewEvent(EventRunStage).
		WithWorkflow("schedule").
		WithStage("Invoked").
		WithError(nil, "ignored")
	if e.Result != ResultPending || e.Error != "" {
		t.Errorf("nil error must not mark failure: %+v", e)
	}
	e.WithError(errors.New("boom"), "x")
	if e.Result != ResultFailure || e.ErrorCode != "x" {
		t.Errorf("error not recorded: %+v", e)
	}
}
