package router

import (
	"testing"

	"github.com/pario-ai/readq/pkg/models"
)

func TestResolveDefault(t *testing.T) {
	s := models.DefaultSettings()
	s.Provider = models.ProviderOpenAI

	r := Resolve(s, models.FeatureURLAnalysis)
	if r.Provider != models.ProviderOpenAI || r.Model != "gpt-4o-mini" {
		t.Errorf("unexpected route: %+v", r)
	}
	if r.Override {
		t.Error("expected default route")
	}
}

func TestResolveFeatureOverride(t *testing.T) {
	s := models.DefaultSettings()
	s.FeatureModels[models.FeatureTagSuggestion] = models.FeatureModel{
		Provider: models.ProviderGemini, Model: "gemini-3-pro-preview",
	}

	r := Resolve(s, models.FeatureTagSuggestion)
	if r.Provider != models.ProviderGemini || r.Model != "gemini-3-pro-preview" || !r.Override {
		t.Errorf("unexpected route: %+v", r)
	}

	other := Resolve(s, models.FeatureURLAnalysis)
	if other.Provider != models.ProviderClaude || other.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("unexpected fallback route: %+v", other)
	}
}

func TestResolveNoProvider(t *testing.T) {
	s := models.Settings{}
	r := Resolve(s, "")
	if r.Provider != "" || r.Model != "" {
		t.Errorf("expected empty route, got %+v", r)
	}
}

func TestConfigured(t *testing.T) {
	s := models.DefaultSettings()
	s.APIKeys[models.ProviderGrok] = "xai-1"
	s.APIKeys[models.ProviderClaude] = "sk-ant"
	s.APIKeys[models.ProviderGemini] = ""

	got := Configured(s)
	want := []models.ProviderType{models.ProviderClaude, models.ProviderGrok}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}
