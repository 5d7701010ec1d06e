package config

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "maintenance-agent.yaml"

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// LLM defaults
	cfg.LLM.Provider = "openai"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.APIVersion = "2024-08-01-preview"
	cfg.LLM.Temperature = 0.2
	cfg.LLM.MaxTokens = 2048
	cfg.LLM.TimeoutSeconds = 120

	// Database defaults
	cfg.Database.SQLitePath = "maintenance.db"

	// Pipeline defaults
	cfg.Pipeline.WindowDaysAhead = 14
	cfg.Pipeline.TranscriptTurns = 10
	cfg.Pipeline.HistoryLimit = 5
	cfg.Pipeline.WindowLimit = 10

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 5
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	// Tracing defaults
	cfg.Tracing.Enabled = false
	cfg.Tracing.Exporter = "stdout"

	// Server defaults
	cfg.Server.Address = ":8090"

	return cfg
}
