package config

import "context"

// Package config provides configuration management for the maintenance agent.
//
// Configuration Sources (priority order, high to low):
//   1. CLI flags (highest priority)
//   2. Environment variables (MAINTENANCE_* prefix)
//   3. YAML config file (default: ./maintenance-agent.yaml)
//   4. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//   1. LLM
//      - provider: "openai" | "azure" | "none"
//      - api_key: API key (prefer OPENAI_API_KEY / AZURE_OPENAI_API_KEY)
//      - base_url: OpenAI-compatible endpoint or Azure resource endpoint
//      - model: Model name (deployment name for azure)
//      - api_version: Azure API version
//      - temperature, max_tokens, timeout_seconds
//
//   2. Database
//      - sqlite_path: Path to SQLite file
//
//   3. Pipeline
//      - window_days_ahead: Horizon for maintenance windows
//      - transcript_turns: Turns kept per transcript
//      - history_limit: Recent history records in the briefing
//      - window_limit: Windows listed in the briefing
//
//   4. Logging
//      - level: "debug" | "info" | "warn" | "error"
//      - format: "json" | "console"
//      - file: optional rotated log file
//      - audit_file: pipeline audit log
//
//   5. Tracing
//      - enabled, exporter: "stdout" | "none"
//
//   6. Server
//      - address: listen address for the HTTP API and /metrics
//
// Config struct contains all configuration fields
type Config struct {
	// LLM provider configuration
	LLM struct {
		Provider       string
		APIKey         string
		BaseURL        string
		Model          string
		APIVersion     string
		Temperature    float64
		MaxTokens      int
		TimeoutSeconds int
	}

	// Database configuration
	Database struct {
		SQLitePath string
	}

	// Pipeline tuning
	Pipeline struct {
		WindowDaysAhead int
		TranscriptTurns int
		HistoryLimit    int
		WindowLimit     int
	}

	// Logging configuration
	Logging struct {
		Level      string
		Format     string
		File       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
		AuditFile  string
	}

	// Tracing configuration
	Tracing struct {
		Enabled  bool
		Exporter string
	}

	// Server configuration
	Server struct {
		Address string
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches the config file and emits the reloaded configuration.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with default config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager(DefaultConfigPath)
}
