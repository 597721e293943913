// Package config loads readq configuration from YAML, a .env file and the
// process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/retry"
)

// Config holds all readq configuration.
type Config struct {
	LogLevel string             `yaml:"log_level"`
	Listen   string             `yaml:"listen"`
	DBPath   string             `yaml:"db_path"`
	AI       models.Settings    `yaml:"ai"`
	Timeouts TimeoutConfig      `yaml:"timeouts"`
	Retry    retry.Policy       `yaml:"retry"`
	Cache    CacheConfig        `yaml:"cache"`
	Audit    models.AuditConfig `yaml:"audit"`
	Budget   BudgetConfig       `yaml:"budget"`
}

// TimeoutConfig bounds outbound calls.
type TimeoutConfig struct {
	Provider time.Duration `yaml:"provider"`
	Fetch    time.Duration `yaml:"fetch"`
}

// CacheConfig controls the prompt cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	DBPath  string        `yaml:"db_path"`
}

// BudgetConfig selects the window the AI budget limit applies to.
type BudgetConfig struct {
	Period models.BudgetPeriod `yaml:"period"`
}

// envOverrides are read from the environment after the file is applied.
type envOverrides struct {
	LogLevel     string `env:"READQ_LOG_LEVEL"`
	Listen       string `env:"READQ_LISTEN"`
	DBPath       string `env:"READQ_DB_PATH"`
	Provider     string `env:"READQ_PROVIDER"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIKey    string `env:"OPENAI_API_KEY"`
	GeminiKey    string `env:"GEMINI_API_KEY"`
	XAIKey       string `env:"XAI_API_KEY"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Listen:   ":8080",
		DBPath:   "readq.db",
		AI:       models.DefaultSettings(),
		Timeouts: TimeoutConfig{
			Provider: 60 * time.Second,
			Fetch:    15 * time.Second,
		},
		Retry: retry.NoRetryPolicy(),
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Audit: models.AuditConfig{
			RetentionDays: 30,
			MaxBodySize:   64 * 1024,
		},
		Budget: BudgetConfig{Period: models.BudgetLifetime},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. A .env file in the working directory
// is loaded when present; it never overrides variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.apply(ov)
	cfg.AI = cfg.AI.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(ov envOverrides) {
	setIf(&c.LogLevel, ov.LogLevel)
	setIf(&c.Listen, ov.Listen)
	setIf(&c.DBPath, ov.DBPath)
	if ov.Provider != "" {
		c.AI.Provider = models.ProviderType(ov.Provider)
	}
	if c.AI.APIKeys == nil {
		c.AI.APIKeys = map[models.ProviderType]string{}
	}
	for pt, key := range map[models.ProviderType]string{
		models.ProviderClaude: ov.AnthropicKey,
		models.ProviderOpenAI: ov.OpenAIKey,
		models.ProviderGemini: ov.GeminiKey,
		models.ProviderGrok:   ov.XAIKey,
	} {
		if key != "" {
			c.AI.APIKeys[pt] = key
		}
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.AI.Provider != "" && !c.AI.Provider.Valid() {
		return fmt.Errorf("config: unknown provider %q", c.AI.Provider)
	}
	for f, fm := range c.AI.FeatureModels {
		if !f.Valid() {
			return fmt.Errorf("config: unknown feature %q", f)
		}
		if !fm.Provider.Valid() {
			return fmt.Errorf("config: feature %s: unknown provider %q", f, fm.Provider)
		}
	}
	if c.Budget.Period != "" && !c.Budget.Period.Valid() {
		return fmt.Errorf("config: unknown budget period %q", c.Budget.Period)
	}
	if c.Retry.MaxRetries < 0 {
		return errors.New("config: retry.max_retries must not be negative")
	}
	return nil
}

// CachePath is the prompt cache database, defaulting to the main database.
func (c *Config) CachePath() string {
	if c.Cache.DBPath != "" {
		return c.Cache.DBPath
	}
	return c.DBPath
}

// AuditPath is the audit database, defaulting to the main database.
func (c *Config) AuditPath() string {
	if c.Audit.DBPath != "" {
		return c.Audit.DBPath
	}
	return c.DBPath
}
