package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for audit logging of pipeline runs
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// Run lifecycle
	LogRunStarted(ctx context.Context, runID, workflow, workOrderID string) error
	LogStageReached(ctx context.Context, runID, workflow, stage string) error
	LogRunCompleted(ctx context.Context, runID, workflow, artifactID string, duration time.Duration) error
	LogRunFailed(ctx context.Context, runID, workflow, stage string, err error) error

	// Degradation
	LogFallbackUsed(ctx context.Context, runID, source, reason string) error
	LogTranscriptDegraded(ctx context.Context, runID, entityID string, err error) error

	// Records
	LogStatusChanged(ctx context.Context, runID, workOrderID, from, to string) error

	// Sync flushes buffered log entries
	Sync() error

	// Close closes the audit logger
	Close() error
}

// Config represents logger configuration
type Config struct {
	// AuditLogPath is the path to the audit log file
	AuditLogPath string

	// AppLogPath is the path to the application log file; empty means stderr
	AppLogPath string

	// MaxSize is the maximum size in megabytes before rotation
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files
	MaxAge int

	// Compress determines if rotated files should be compressed
	Compress bool

	// LogLevel is the minimum log level (debug, info, warn, error)
	LogLevel string

	// Format is "json" or "console" (application log only)
	Format string
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	return &Config{
		AuditLogPath: "logs/audit.log",
		AppLogPath:   "",
		MaxSize:      100, // megabytes
		MaxBackups:   5,
		MaxAge:       30, // days
		Compress:     true,
		LogLevel:     "info",
		Format:       "json",
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func (c *Config) rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// NewAppLogger builds the application logger. The returned AtomicLevel can
// be changed at runtime (the serve command does so on config reload).
func NewAppLogger(config *Config) (*zap.Logger, zap.AtomicLevel, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zapcore.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level %s: %w", config.LogLevel, err)
	}
	atom := zap.NewAtomicLevelAt(level)

	var encoder zapcore.Encoder
	switch config.Format {
	case "console":
		ec := encoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	}

	var sink zapcore.WriteSyncer
	if config.AppLogPath == "" {
		sink = zapcore.Lock(os.Stderr)
	} else {
		sink = zapcore.AddSync(config.rotator(config.AppLogPath))
	}

	core := zapcore.NewCore(encoder, sink, atom)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), atom, nil
}

// auditLogger implements the Logger interface
type auditLogger struct {
	appLogger   *zap.Logger
	auditLogger *zap.Logger
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closeOnce   sync.Once
}

// NewLogger creates a new audit logger writing JSON lines to
// config.AuditLogPath. appLogger receives marshalling failures; it may be nil.
func NewLogger(config *Config, appLogger *zap.Logger) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.AuditLogPath == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if appLogger == nil {
		appLogger = zap.NewNop()
	}

	// Audit logs are always INFO level, append-only
	auditCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(config.rotator(config.AuditLogPath)),
		zapcore.InfoLevel,
	)

	return newBufferedLogger(zap.New(auditCore), appLogger), nil
}

// NewZapLogger creates an audit logger that writes to an existing zap logger.
func NewZapLogger(z *zap.Logger) Logger {
	return newBufferedLogger(z, z)
}

// NewNopLogger returns a logger that discards every event.
func NewNopLogger() Logger {
	return newBufferedLogger(zap.NewNop(), zap.NewNop())
}

func newBufferedLogger(audit, app *zap.Logger) *auditLogger {
	logger := &auditLogger{
		appLogger:   app,
		auditLogger: audit,
		buffer:      make([]*Event, 0, 100),
		flushTicker: time.NewTicker(1 * time.Second),
		stopCh:      make(chan struct{}),
	}
	go logger.autoFlush()
	return logger
}

// Log logs an audit event
func (l *auditLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)

	if len(l.buffer) >= 100 {
		return l.flushLocked()
	}

	return nil
}

// flushLocked flushes the buffer (caller must hold lock)
func (l *auditLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}

	for _, event := range l.buffer {
		eventJSON, err := json.Marshal(event)
		if err != nil {
			l.appLogger.Error("failed to marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)),
			)
			continue
		}

		l.auditLogger.Info(string(eventJSON),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)),
		)
	}

	l.buffer = l.buffer[:0]

	return nil
}

// autoFlush periodically flushes the buffer
func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// LogRunStarted logs when a pipeline run starts
func (l *auditLogger) LogRunStarted(ctx context.Context, runID, workflow, workOrderID string) error {
	event := NewEvent(EventRunStarted).
		WithCorrelationID(runID).
		WithWorkflow(workflow).
		WithResource(workOrderID, "work_order").
		WithResult(ResultPending).
		WithDescription(fmt.Sprintf("Run %s started for work order %s", runID, workOrderID))

	return l.Log(ctx, event)
}

// LogStageReached logs each state the run enters
func (l *auditLogger) LogStageReached(ctx context.Context, runID, workflow, stage string) error {
	event := NewEvent(EventRunStage).
		WithCorrelationID(runID).
		WithWorkflow(workflow).
		WithStage(stage).
		WithResult(ResultSuccess)

	return l.Log(ctx, event)
}

// LogRunCompleted logs when a run persists its artifact
func (l *auditLogger) LogRunCompleted(ctx context.Context, runID, workflow, artifactID string, duration time.Duration) error {
	event := NewEvent(EventRunCompleted).
		WithCorrelationID(runID).
		WithWorkflow(workflow).
		WithResource(artifactID, "artifact").
		WithResult(ResultSuccess).
		WithDuration(duration).
		WithDescription(fmt.Sprintf("Run %s completed", runID))

	return l.Log(ctx, event)
}

// LogRunFailed logs when a run terminates in Failed
func (l *auditLogger) LogRunFailed(ctx context.Context, runID, workflow, stage string, err error) error {
	event := NewEvent(EventRunFailed).
		WithCorrelationID(runID).
		WithWorkflow(workflow).
		WithStage(stage).
		WithError(err, "run_error").
		WithDescription(fmt.Sprintf("Run %s failed at %s", runID, stage))

	return l.Log(ctx, event)
}

// LogFallbackUsed logs when synthetic data replaced a store read
func (l *auditLogger) LogFallbackUsed(ctx context.Context, runID, source, reason string) error {
	event := NewEvent(EventFallbackUsed).
		WithCorrelationID(runID).
		WithResource(source, "record_source").
		WithResult(ResultDegraded).
		WithMetadata("reason", reason).
		WithDescription(fmt.Sprintf("Fallback data used for %s", source))

	return l.Log(ctx, event)
}

// LogTranscriptDegraded logs when transcript continuity was lost
func (l *auditLogger) LogTranscriptDegraded(ctx context.Context, runID, entityID string, err error) error {
	event := NewEvent(EventTranscriptDegraded).
		WithCorrelationID(runID).
		WithResource(entityID, "transcript").
		WithResult(ResultDegraded).
		WithDescription(fmt.Sprintf("Transcript for %s unavailable", entityID))
	if err != nil {
		event.Error = err.Error()
		event.ErrorCode = "transcript_error"
	}

	return l.Log(ctx, event)
}

// LogStatusChanged logs a work order status transition
func (l *auditLogger) LogStatusChanged(ctx context.Context, runID, workOrderID, from, to string) error {
	event := NewEvent(EventWorkOrderStatusChanged).
		WithCorrelationID(runID).
		WithResource(workOrderID, "work_order").
		WithResult(ResultSuccess).
		WithMetadata("from", from).
		WithMetadata("to", to).
		WithDescription(fmt.Sprintf("Work order %s moved from %s to %s", workOrderID, from, to))

	return l.Log(ctx, event)
}

// Sync flushes buffered log entries
func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.flushLocked(); err != nil {
		return err
	}

	// Syncing stderr returns EINVAL on some platforms; audit files are
	// what matters here.
	_ = l.appLogger.Sync()
	return l.auditLogger.Sync()
}

// Close closes the audit logger
func (l *auditLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.flushTicker.Stop()
	})
	return l.Sync()
}

type correlationKey struct{}

// GetCorrelationID extracts correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID adds correlation ID to context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GenerateCorrelationID generates a new correlation ID
func GenerateCorrelationID() string {
	return uuid.NewString()
}
