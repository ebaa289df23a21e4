// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMConfig holds the language-model backend configuration.
type LLMConfig struct {
	APIKey      string        // API key for the model backend
	BaseURL     string        // override for OpenAI-compatible endpoints (optional)
	Model       string        // model name (default "gpt-4o-mini")
	Temperature float32       // sampling temperature (default 0)
	Timeout     time.Duration // per-call timeout (default 30s)
}

// Config holds the configuration for the query safety engine and its HTTP API.
type Config struct {
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	DataDBPath        string // path to the DuckDB analytics database file
	AuditDBPath       string // path to the SQLite audit database file
	SchemaContextPath string // path to the YAML schema context served to the generator

	// Audit settings. The encryption key has no default: audit logging
	// cannot start without an externally supplied key.
	AuditEncryptionKey string // 64-char hex string (32-byte AES key)
	AuditRetentionDays int    // entries older than this are purged (default 30)
	RotationSchedule   string // cron spec for the retention sweep (default "0 3 * * *")

	// Execution limits.
	QueryTimeout    time.Duration // base statement timeout (default 15s)
	MaxResponseSize int           // serialized result ceiling in bytes (default 1MiB)

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second per client (default 10)
	RateLimitBurst int     // burst capacity (default 20)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// LLM holds generator backend configuration.
	LLM LLMConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:         os.Getenv("LISTEN_ADDR"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		Env:                os.Getenv("ENV"),
		DataDBPath:         os.Getenv("DATA_DB_PATH"),
		AuditDBPath:        os.Getenv("AUDIT_DB_PATH"),
		SchemaContextPath:  os.Getenv("SCHEMA_CONTEXT_PATH"),
		AuditEncryptionKey: os.Getenv("AUDIT_ENCRYPTION_KEY"),
		RotationSchedule:   os.Getenv("AUDIT_ROTATION_SCHEDULE"),
	}

	if v := os.Getenv("AUDIT_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("AUDIT_RETENTION_DAYS must be a positive integer, got %q", v)
		}
		cfg.AuditRetentionDays = n
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("QUERY_TIMEOUT must be a positive duration, got %q", v)
		}
		cfg.QueryTimeout = d
	}
	if v := os.Getenv("MAX_RESPONSE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxResponseSize = n
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	// LLM config
	cfg.LLM = LLMConfig{
		APIKey:  os.Getenv("LLM_API_KEY"),
		BaseURL: os.Getenv("LLM_BASE_URL"),
		Model:   os.Getenv("LLM_MODEL"),
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(f)
		}
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LLM.Timeout = d
		}
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DataDBPath == "" {
		cfg.DataDBPath = "analytics.duckdb"
	}
	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = "audit.sqlite"
	}
	if cfg.SchemaContextPath == "" {
		cfg.SchemaContextPath = "schema_context.yaml"
	}
	if cfg.AuditRetentionDays == 0 {
		cfg.AuditRetentionDays = 30
	}
	if cfg.RotationSchedule == "" {
		cfg.RotationSchedule = "0 3 * * *"
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 15 * time.Second
	}
	if cfg.MaxResponseSize == 0 {
		cfg.MaxResponseSize = 1 << 20
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 20
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}

	// The audit encryption key is never defaulted. A missing or malformed
	// key is fatal in every environment: audit logs must not be written
	// with the sensitive fields in the clear.
	if cfg.AuditEncryptionKey == "" {
		return nil, fmt.Errorf("AUDIT_ENCRYPTION_KEY must be set (64-char hex, 32-byte AES key)")
	}
	if len(cfg.AuditEncryptionKey) != 64 {
		return nil, fmt.Errorf("AUDIT_ENCRYPTION_KEY must be 64 hex characters, got %d", len(cfg.AuditEncryptionKey))
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("LLM_API_KEY must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	} else if cfg.LLM.APIKey == "" {
		cfg.Warnings = append(cfg.Warnings, "LLM_API_KEY not set; SQL generation will fail until it is configured")
	}

	return cfg, nil
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
