package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Listen)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Timeouts.Provider != 60*time.Second {
		t.Errorf("expected 60s provider timeout, got %v", cfg.Timeouts.Provider)
	}
	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("retries should be opt-in, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Budget.Period != models.BudgetLifetime {
		t.Errorf("expected lifetime budget, got %s", cfg.Budget.Period)
	}
	if cfg.AI.Provider != models.ProviderClaude {
		t.Errorf("expected claude, got %s", cfg.AI.Provider)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")

	path := writeConfig(t, `
listen: ":9090"
db_path: "test.db"
ai:
  provider: openai
  api_keys:
    openai: ${TEST_OPENAI_KEY}
  models:
    openai: gpt-4.1-mini
  feature_models:
    tag-suggestion:
      provider: gemini
      model: gemini-2.0-flash
  budget_limit: 2.5
timeouts:
  provider: 30s
retry:
  max_retries: 2
  initial_delay: 500ms
  backoff: exponential
cache:
  enabled: true
  ttl: 30m
audit:
  enabled: true
  include: [prompts]
budget:
  period: monthly
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if got := cfg.AI.APIKeys[models.ProviderOpenAI]; got != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", got)
	}
	if cfg.AI.Models[models.ProviderOpenAI] != "gpt-4.1-mini" {
		t.Errorf("model not applied: %s", cfg.AI.Models[models.ProviderOpenAI])
	}
	if cfg.AI.Models[models.ProviderGrok] == "" {
		t.Error("unset provider models should keep their defaults")
	}
	if fm := cfg.AI.FeatureModels[models.FeatureTagSuggestion]; fm.Provider != models.ProviderGemini {
		t.Errorf("feature route not applied: %+v", fm)
	}
	if cfg.AI.BudgetLimit == nil || *cfg.AI.BudgetLimit != 2.5 {
		t.Errorf("expected budget 2.5, got %v", cfg.AI.BudgetLimit)
	}
	if cfg.Timeouts.Provider != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.Timeouts.Provider)
	}
	if cfg.Timeouts.Fetch != 15*time.Second {
		t.Errorf("fetch timeout default lost: %v", cfg.Timeouts.Fetch)
	}
	if cfg.Retry.MaxRetries != 2 || cfg.Retry.InitialDelay != 500*time.Millisecond || cfg.Retry.Backoff != retry.BackoffExponential {
		t.Errorf("retry policy not applied: %+v", cfg.Retry)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Cache.TTL)
	}
	if !cfg.Audit.Enabled || cfg.Audit.RetentionDays != 30 {
		t.Errorf("audit config: %+v", cfg.Audit)
	}
	if cfg.Budget.Period != models.BudgetMonthly {
		t.Errorf("expected monthly, got %s", cfg.Budget.Period)
	}
	if cfg.CachePath() != "test.db" || cfg.AuditPath() != "test.db" {
		t.Errorf("paths should default to db_path: %s %s", cfg.CachePath(), cfg.AuditPath())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("XAI_API_KEY", "xai-env")
	t.Setenv("READQ_LOG_LEVEL", "debug")
	t.Setenv("READQ_DB_PATH", "/tmp/readq-env.db")
	t.Setenv("READQ_PROVIDER", "grok")

	path := writeConfig(t, `
log_level: warn
ai:
  api_keys:
    claude: sk-ant-file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}
	if cfg.DBPath != "/tmp/readq-env.db" {
		t.Errorf("expected env db path, got %s", cfg.DBPath)
	}
	if cfg.AI.Provider != models.ProviderGrok {
		t.Errorf("expected grok, got %s", cfg.AI.Provider)
	}
	if cfg.AI.APIKeys[models.ProviderClaude] != "sk-ant-env" {
		t.Errorf("env key should win, got %s", cfg.AI.APIKeys[models.ProviderClaude])
	}
	if cfg.AI.APIKeys[models.ProviderGrok] != "xai-env" {
		t.Errorf("expected xai key, got %s", cfg.AI.APIKeys[models.ProviderGrok])
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.APIKeys[models.ProviderGemini] != "gm-key" {
		t.Errorf("expected gemini key from env, got %q", cfg.AI.APIKeys[models.ProviderGemini])
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	for name, content := range map[string]string{
		"provider": "ai:\n  provider: mistral\n",
		"feature":  "ai:\n  feature_models:\n    summarize:\n      provider: claude\n",
		"period":   "budget:\n  period: weekly\n",
		"retries":  "retry:\n  max_retries: -1\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
