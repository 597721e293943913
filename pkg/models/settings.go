package models

// FeatureModel pins a feature to a provider and model.
type FeatureModel struct {
	Provider ProviderType `json:"provider" yaml:"provider"`
	Model    string       `json:"model" yaml:"model"`
}

// Settings is the user-editable AI configuration.
type Settings struct {
	Provider            ProviderType             `json:"provider" yaml:"provider"`
	APIKeys             map[ProviderType]string  `json:"api_keys" yaml:"api_keys"`
	Models              map[ProviderType]string  `json:"models" yaml:"models"`
	FeatureModels       map[Feature]FeatureModel `json:"feature_models" yaml:"feature_models"`
	DefaultLanguage     string                   `json:"default_language" yaml:"default_language"`
	BudgetLimit         *float64                 `json:"budget_limit,omitempty" yaml:"budget_limit"`
	AutoAnalyzeOnAdd    bool                     `json:"auto_analyze_on_add" yaml:"auto_analyze_on_add"`
	AutoSuggestTags     bool                     `json:"auto_suggest_tags" yaml:"auto_suggest_tags"`
	AutoSuggestPriority bool                     `json:"auto_suggest_priority" yaml:"auto_suggest_priority"`
}

// DefaultSettings returns the settings used before the user configures anything.
func DefaultSettings() Settings {
	return Settings{
		Provider: ProviderClaude,
		APIKeys:  map[ProviderType]string{},
		Models: map[ProviderType]string{
			ProviderClaude: "claude-3-5-haiku-20241022",
			ProviderGemini: "gemini-2.0-flash",
			ProviderOpenAI: "gpt-4o-mini",
			ProviderGrok:   "grok-4-1-fast-non-reasoning",
		},
		FeatureModels:       map[Feature]FeatureModel{},
		DefaultLanguage:     "en",
		BudgetLimit:         Float(5),
		AutoAnalyzeOnAdd:    true,
		AutoSuggestTags:     true,
		AutoSuggestPriority: false,
	}
}

// Clone returns a deep copy so callers cannot mutate shared maps.
func (s Settings) Clone() Settings {
	out := s
	out.APIKeys = make(map[ProviderType]string, len(s.APIKeys))
	for k, v := range s.APIKeys {
		out.APIKeys[k] = v
	}
	out.Models = make(map[ProviderType]string, len(s.Models))
	for k, v := range s.Models {
		out.Models[k] = v
	}
	out.FeatureModels = make(map[Feature]FeatureModel, len(s.FeatureModels))
	for k, v := range s.FeatureModels {
		out.FeatureModels[k] = v
	}
	if s.BudgetLimit != nil {
		out.BudgetLimit = Float(*s.BudgetLimit)
	}
	return out
}

// Normalize fills nil maps and restores a model selection for every provider
// that lacks one.
func (s Settings) Normalize() Settings {
	out := s.Clone()
	defaults := DefaultSettings()
	for _, p := range AllProviders {
		if out.Models[p] == "" {
			out.Models[p] = defaults.Models[p]
		}
	}
	return out
}

// HasBudget reports whether a positive spending ceiling is configured.
func (s Settings) HasBudget() bool {
	return s.BudgetLimit != nil && *s.BudgetLimit > 0
}
