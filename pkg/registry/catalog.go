package registry

import "github.com/pario-ai/readq/pkg/models"

// Tier is a coarse price/capability band.
type Tier string

const (
	TierPremium  Tier = "premium"
	TierStandard Tier = "standard"
	TierEconomy  Tier = "economy"
)

// ModelConfig is an immutable catalog entry.
type ModelConfig struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	Provider          models.ProviderType `json:"provider"`
	Tier              Tier                `json:"tier"`
	InputCostPer1M    float64             `json:"input_cost_per_1m"`
	OutputCostPer1M   float64             `json:"output_cost_per_1m"`
	MaxInputTokens    int                 `json:"max_input_tokens"`
	MaxOutputTokens   int                 `json:"max_output_tokens"`
	SupportsVision    bool                `json:"supports_vision"`
	SupportsStreaming bool                `json:"supports_streaming"`
}

// ProviderConfig is the static per-vendor configuration.
type ProviderConfig struct {
	Type         models.ProviderType `json:"type"`
	Name         string              `json:"name"`
	Endpoint     string              `json:"endpoint"`
	KeyPrefix    string              `json:"key_prefix,omitempty"`
	DefaultModel string              `json:"default_model"`
}

// catalog is keyed by the internal catalog key, not the vendor id.
var catalog = map[string]ModelConfig{
	"claude-opus-4.5": {
		ID: "claude-opus-4-5-20251101", Name: "Claude Opus 4.5", Provider: models.ProviderClaude, Tier: TierPremium,
		InputCostPer1M: 15, OutputCostPer1M: 75, MaxInputTokens: 200000, MaxOutputTokens: 32768,
		SupportsVision: true, SupportsStreaming: true,
	},
	"claude-sonnet-4.5": {
		ID: "claude-sonnet-4-5-20250929", Name: "Claude Sonnet 4.5", Provider: models.ProviderClaude, Tier: TierStandard,
		InputCostPer1M: 3, OutputCostPer1M: 15, MaxInputTokens: 200000, MaxOutputTokens: 16384,
		SupportsVision: true, SupportsStreaming: true,
	},
	"claude-haiku": {
		ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: models.ProviderClaude, Tier: TierEconomy,
		InputCostPer1M: 0.8, OutputCostPer1M: 4, MaxInputTokens: 200000, MaxOutputTokens: 8192,
		SupportsVision: true, SupportsStreaming: true,
	},
	"gemini-3-pro": {
		ID: "gemini-3-pro-preview", Name: "Gemini 3 Pro", Provider: models.ProviderGemini, Tier: TierPremium,
		InputCostPer1M: 2.5, OutputCostPer1M: 10, MaxInputTokens: 1000000, MaxOutputTokens: 65536,
		SupportsVision: true, SupportsStreaming: true,
	},
	"gemini-3-flash": {
		ID: "gemini-3-flash-preview", Name: "Gemini 3 Flash", Provider: models.ProviderGemini, Tier: TierStandard,
		InputCostPer1M: 0.5, OutputCostPer1M: 3, MaxInputTokens: 1000000, MaxOutputTokens: 65536,
		SupportsVision: true, SupportsStreaming: true,
	},
	"gemini-2-flash": {
		ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: models.ProviderGemini, Tier: TierEconomy,
		InputCostPer1M: 0.075, OutputCostPer1M: 0.3, MaxInputTokens: 1000000, MaxOutputTokens: 8192,
		SupportsVision: true, SupportsStreaming: true,
	},
	"gpt-5.2": {
		ID: "gpt-5.2", Name: "GPT-5.2", Provider: models.ProviderOpenAI, Tier: TierStandard,
		InputCostPer1M: 1.75, OutputCostPer1M: 14, MaxInputTokens: 256000, MaxOutputTokens: 32768,
		SupportsVision: true, SupportsStreaming: true,
	},
	"gpt-4o-mini": {
		ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: models.ProviderOpenAI, Tier: TierEconomy,
		InputCostPer1M: 0.15, OutputCostPer1M: 0.6, MaxInputTokens: 128000, MaxOutputTokens: 16384,
		SupportsVision: true, SupportsStreaming: true,
	},
	"grok-4.1-fast": {
		ID: "grok-4-1-fast", Name: "Grok 4.1 Fast", Provider: models.ProviderGrok, Tier: TierStandard,
		InputCostPer1M: 3, OutputCostPer1M: 15, MaxInputTokens: 2000000, MaxOutputTokens: 16384,
		SupportsVision: true, SupportsStreaming: true,
	},
	"grok-4.1-fast-non-reasoning": {
		ID: "grok-4-1-fast-non-reasoning", Name: "Grok 4.1 Fast (Non-Reasoning)", Provider: models.ProviderGrok, Tier: TierEconomy,
		InputCostPer1M: 0.6, OutputCostPer1M: 4, MaxInputTokens: 2000000, MaxOutputTokens: 16384,
		SupportsVision: true, SupportsStreaming: true,
	},
}

var providers = map[models.ProviderType]ProviderConfig{
	models.ProviderClaude: {
		Type: models.ProviderClaude, Name: "Anthropic Claude",
		Endpoint: "https://api.anthropic.com/v1", DefaultModel: "claude-sonnet-4-5-20250929",
	},
	models.ProviderGemini: {
		Type: models.ProviderGemini, Name: "Google Gemini",
		Endpoint: "https://generativelanguage.googleapis.com/v1beta", KeyPrefix: "AIza", DefaultModel: "gemini-3-flash-preview",
	},
	models.ProviderOpenAI: {
		Type: models.ProviderOpenAI, Name: "OpenAI",
		Endpoint: "https://api.openai.com/v1", KeyPrefix: "sk-", DefaultModel: "gpt-5.2",
	},
	models.ProviderGrok: {
		Type: models.ProviderGrok, Name: "xAI Grok",
		Endpoint: "https://api.x.ai/v1", DefaultModel: "grok-4-1-fast",
	},
}

// featureDefaults picks the vendor model each feature uses when nothing is configured.
var featureDefaults = map[models.Feature]map[models.ProviderType]string{
	models.FeatureURLAnalysis: {
		models.ProviderClaude: "claude-3-5-haiku-20241022",
		models.ProviderGemini: "gemini-2.0-flash",
		models.ProviderOpenAI: "gpt-4o-mini",
		models.ProviderGrok:   "grok-4-1-fast-non-reasoning",
	},
	models.FeatureTagSuggestion: {
		models.ProviderClaude: "claude-3-5-haiku-20241022",
		models.ProviderGemini: "gemini-2.0-flash",
		models.ProviderOpenAI: "gpt-4o-mini",
		models.ProviderGrok:   "grok-4-1-fast-non-reasoning",
	},
	models.FeatureInsightExtraction: {
		models.ProviderClaude: "claude-sonnet-4-5-20250929",
		models.ProviderGemini: "gemini-3-flash-preview",
		models.ProviderOpenAI: "gpt-5.2",
		models.ProviderGrok:   "grok-4-1-fast",
	},
}
