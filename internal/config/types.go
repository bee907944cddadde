package config

import "time"

// Config represents the complete agentgw configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Store    StoreConfig    `yaml:"store"`
	API      APIConfig      `yaml:"api,omitempty"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Audit    AuditConfig    `yaml:"audit"`
	Retry    RetryConfig    `yaml:"retry"`
	Privacy  PrivacyConfig  `yaml:"privacy"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// StoreConfig defines where the SQLite database lives.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the legacy single bearer token (admin/full access).
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token, the user it acts as, and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	UserID string   `yaml:"user_id"`
	Scopes []string `yaml:"scopes"`
}

// DispatchConfig bounds handler execution.
type DispatchConfig struct {
	// Timeout is the caller-visible deadline for a single handler
	// invocation. The handler is not forcibly cancelled when it fires.
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig controls the execution log.
type AuditConfig struct {
	Retention     time.Duration `yaml:"retention"`
	PruneSchedule string        `yaml:"prune_schedule"` // cron expression
}

// RetryConfig controls the retry queue processor.
type RetryConfig struct {
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffCap  time.Duration `yaml:"backoff_cap"`
	Schedule    string        `yaml:"schedule"` // cron expression
}

// PrivacyConfig holds the salt for identifier hashing.
type PrivacyConfig struct {
	HashSalt string `yaml:"hash_salt"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "agentgw",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Store: StoreConfig{
			Path: "./data/agentgw.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Dispatch: DispatchConfig{
			Timeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Retention:     30 * 24 * time.Hour,
			PruneSchedule: "13 3 * * *",
		},
		Retry: RetryConfig{
			BatchSize:   50,
			MaxAttempts: 4,
			BackoffCap:  8 * time.Second,
			Schedule:    "*/1 * * * *",
		},
		Privacy: PrivacyConfig{
			HashSalt: "",
		},
	}
}
