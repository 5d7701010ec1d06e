package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error

	// Validate LLM configuration
	validProviders := map[string]bool{
		"openai": true,
		"azure":  true,
		"none":   true,
	}
	if !validProviders[c.LLM.Provider] {
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: openai, azure, none", c.LLM.Provider),
		})
	}

	// Missing credentials are not fatal: the adapter reports
	// ErrProviderNotConfigured on first use.
	if c.LLM.Provider == "azure" && c.LLM.APIKey != "" && c.LLM.BaseURL == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.base_url",
			Message: "base_url (Azure endpoint) is required for the azure provider",
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, &ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", c.LLM.BaseURL),
			})
		}
	}

	if c.LLM.Provider != "none" && c.LLM.Model == "" {
		errs = append(errs, &ValidationError{
			Field:   "llm.model",
			Message: "model is required",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, &ValidationError{
			Field:   "llm.temperature",
			Message: fmt.Sprintf("temperature must be between 0 and 2, got %g", c.LLM.Temperature),
		})
	}

	if c.LLM.MaxTokens < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.max_tokens",
			Message: fmt.Sprintf("max_tokens must be positive, got %d", c.LLM.MaxTokens),
		})
	}

	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.timeout_seconds",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.LLM.TimeoutSeconds),
		})
	}

	// Validate database configuration
	if strings.TrimSpace(c.Database.SQLitePath) == "" {
		errs = append(errs, &ValidationError{
			Field:   "database.sqlite_path",
			Message: "sqlite_path is required",
		})
	}

	// Validate pipeline configuration
	if c.Pipeline.WindowDaysAhead < 1 || c.Pipeline.WindowDaysAhead > 90 {
		errs = append(errs, &ValidationError{
			Field:   "pipeline.window_days_ahead",
			Message: fmt.Sprintf("window_days_ahead must be between 1 and 90, got %d", c.Pipeline.WindowDaysAhead),
		})
	}
	if c.Pipeline.TranscriptTurns < 2 {
		errs = append(errs, &ValidationError{
			Field:   "pipeline.transcript_turns",
			Message: fmt.Sprintf("transcript_turns must hold at least one exchange, got %d", c.Pipeline.TranscriptTurns),
		})
	}
	if c.Pipeline.HistoryLimit < 1 {
		errs = append(errs, &ValidationError{
			Field:   "pipeline.history_limit",
			Message: fmt.Sprintf("history_limit must be positive, got %d", c.Pipeline.HistoryLimit),
		})
	}
	if c.Pipeline.WindowLimit < 1 {
		errs = append(errs, &ValidationError{
			Field:   "pipeline.window_limit",
			Message: fmt.Sprintf("window_limit must be positive, got %d", c.Pipeline.WindowLimit),
		})
	}

	// Validate logging configuration
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, &ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format '%s', must be json or console", c.Logging.Format),
		})
	}
	if c.Logging.File != "" && c.Logging.MaxSizeMB < 1 {
		errs = append(errs, &ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max_size_mb must be positive when a log file is set",
		})
	}

	// Validate tracing configuration
	if c.Tracing.Enabled && c.Tracing.Exporter != "stdout" && c.Tracing.Exporter != "none" {
		errs = append(errs, &ValidationError{
			Field:   "tracing.exporter",
			Message: fmt.Sprintf("invalid exporter '%s', must be stdout or none", c.Tracing.Exporter),
		})
	}

	// Validate server configuration
	if _, _, err := net.SplitHostPort(c.Server.Address); err != nil {
		errs = append(errs, &ValidationError{
			Field:   "server.address",
			Message: fmt.Sprintf("invalid address format (expected host:port): %v", err),
		})
	}

	return errs
}
