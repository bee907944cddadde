package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file, layering it over Defaults().
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.Service.Name == "" {
		problems = append(problems, "service.name is empty")
	}
	if c.Store.Path == "" {
		problems = append(problems, "store.path is empty")
	}
	if c.Dispatch.Timeout <= 0 {
		problems = append(problems, "dispatch.timeout must be positive")
	}
	if c.Audit.Retention <= 0 {
		problems = append(problems, "audit.retention must be positive")
	}
	if c.Retry.BatchSize <= 0 {
		problems = append(problems, "retry.batch_size must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		problems = append(problems, "retry.max_attempts must be positive")
	}
	if c.Retry.BackoffCap <= 0 {
		problems = append(problems, "retry.backoff_cap must be positive")
	}
	if c.API.Enabled {
		if c.API.Listen == "" {
			problems = append(problems, "api.listen is empty while api.enabled is true")
		}
		if c.API.Auth.APIKey == "" && len(c.API.Auth.Tokens) == 0 {
			problems = append(problems, "api.auth has neither api_key nor tokens; the API would reject every caller")
		}
		for i, t := range c.API.Auth.Tokens {
			if t.Token == "" {
				problems = append(problems, fmt.Sprintf("api.auth.tokens[%d].token is empty", i))
			}
			if t.UserID == "" {
				problems = append(problems, fmt.Sprintf("api.auth.tokens[%d].user_id is empty", i))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
