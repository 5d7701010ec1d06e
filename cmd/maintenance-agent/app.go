package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/maintenance-agent/internal/audit"
	"github.com/kubilitics/maintenance-agent/internal/config"
	"github.com/kubilitics/maintenance-agent/internal/db"
	"github.com/kubilitics/maintenance-agent/internal/llm/adapter"
	"github.com/kubilitics/maintenance-agent/internal/memory/conversation"
	"github.com/kubilitics/maintenance-agent/internal/observability"
	reasoningContext "github.com/kubilitics/maintenance-agent/internal/reasoning/context"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/engine"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/prompt"
	"github.com/kubilitics/maintenance-agent/internal/reasoning/run"
	"github.com/kubilitics/maintenance-agent/internal/records"
)

// app holds the wired components for one command invocation.
type app struct {
	cfgMgr   config.ConfigManager
	cfg      *config.Config
	logger   *zap.Logger
	level    zap.AtomicLevel
	auditLog audit.Logger
	store    db.Store
	tracker  run.Tracker
	engine   engine.Engine

	shutdownTracing func(context.Context) error
}

// loadConfig loads and validates configuration, applying --db.
func loadConfig(ctx context.Context) (config.ConfigManager, *config.Config, error) {
	mgr, err := config.NewConfigManager(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := mgr.Load(ctx); err != nil {
		return nil, nil, err
	}
	cfg := mgr.Get(ctx)
	if opts.dbPath != "" {
		cfg.Database.SQLitePath = opts.dbPath
	}
	if err := mgr.Validate(ctx); err != nil {
		return nil, nil, err
	}
	return mgr, cfg, nil
}

func loggingConfig(cfg *config.Config) *audit.Config {
	return &audit.Config{
		AuditLogPath: cfg.Logging.AuditFile,
		AppLogPath:   cfg.Logging.File,
		MaxSize:      cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAge:       cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		LogLevel:     cfg.Logging.Level,
		Format:       cfg.Logging.Format,
	}
}

// newApp wires the store, logging, tracing and the engine.
func newApp(ctx context.Context) (*app, error) {
	mgr, cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	logCfg := loggingConfig(cfg)
	logger, level, err := audit.NewAppLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var auditLog audit.Logger
	if cfg.Logging.AuditFile != "" {
		auditLog, err = audit.NewLogger(logCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit log: %w", err)
		}
	} else {
		auditLog = audit.NewZapLogger(logger.Named("audit"))
	}

	shutdownTracing, err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		ServiceName: "maintenance-agent",
	})
	if err != nil {
		_ = auditLog.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	store, err := db.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		_ = shutdownTracing(ctx)
		_ = auditLog.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{
		cfgMgr:          mgr,
		cfg:             cfg,
		logger:          logger,
		level:           level,
		auditLog:        auditLog,
		store:           store,
		shutdownTracing: shutdownTracing,
	}

	invoker, err := adapter.NewInvoker(&adapter.Config{
		Provider:    adapter.ProviderType(cfg.LLM.Provider),
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIVersion:  cfg.LLM.APIVersion,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize reasoning invoker: %w", err)
	}
	invoker = adapter.NewUsageRecorder(invoker, store, logger)

	recordStore := records.New(store, logger)
	prompts := prompt.NewManager()
	a.tracker = run.NewTracker(auditLog, 0)
	a.engine, err = engine.NewEngine(engine.Deps{
		Records:     recordStore,
		Invoker:     invoker,
		Transcripts: conversation.NewManager(recordStore, logger, cfg.Pipeline.TranscriptTurns),
		Builder: reasoningContext.NewBuilder(prompts, reasoningContext.Options{
			HistoryLimit: cfg.Pipeline.HistoryLimit,
			WindowLimit:  cfg.Pipeline.WindowLimit,
		}),
		Prompts:  prompts,
		Tracker:  a.tracker,
		AuditLog: auditLog,
		Logger:   logger,
	}, engine.Options{WindowDaysAhead: cfg.Pipeline.WindowDaysAhead})
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// close releases everything newApp acquired.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.shutdownTracing != nil {
		_ = a.shutdownTracing(ctx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.auditLog != nil {
		_ = a.auditLog.Close()
	}
	_ = a.logger.Sync()
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// withStore runs fn with just the database, for commands that never reason.
func withStore(ctx context.Context, fn func(ctx context.Context, s db.Store) error) error {
	_, cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	store, err := db.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}

// explain adds a hint for the unconfigured provider case.
func explain(err error) error {
	if errors.Is(err, adapter.ErrProviderNotConfigured) {
		return fmt.Errorf("%w (set llm.api_key, OPENAI_API_KEY or AZURE_OPENAI_API_KEY)", err)
	}
	return err
}
