package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/readq/pkg/models"
)

func TestCalculateCostByCatalogKey(t *testing.T) {
	cost := CalculateCost("claude-sonnet-4.5", 1000, 500)
	assert.InDelta(t, 0.0105, cost, 1e-12)
}

func TestCalculateCostByVendorID(t *testing.T) {
	byKey := CalculateCost("gpt-4o-mini", 200000, 100000)
	byID := CalculateCost("gpt-4o-mini", 200000, 100000)
	assert.InDelta(t, 0.09, byKey, 1e-12)
	assert.Equal(t, byKey, byID)

	assert.InDelta(t, CalculateCost("claude-haiku", 1_000_000, 1_000_000),
		CalculateCost("claude-3-5-haiku-20241022", 1_000_000, 1_000_000), 1e-12)
	assert.InDelta(t, 4.8, CalculateCost("claude-3-5-haiku-20241022", 1_000_000, 1_000_000), 1e-12)
}

func TestCalculateCostUnknownModel(t *testing.T) {
	assert.Equal(t, 0.0, CalculateCost("no-such-model", 1000, 1000))
	assert.Equal(t, 0.0, CalculateCost("", 1000, 1000))
}

func TestCalculateCostLinearAndNonNegative(t *testing.T) {
	for _, key := range Keys() {
		one := CalculateCost(key, 1000, 1000)
		two := CalculateCost(key, 2000, 2000)
		assert.GreaterOrEqual(t, one, 0.0, key)
		assert.InDelta(t, 2*one, two, 1e-12, key)
		assert.Equal(t, 0.0, CalculateCost(key, 0, 0), key)
		assert.Equal(t, 0.0, CalculateCost(key, -5, -5), key)
	}
}

func TestModelsByProvider(t *testing.T) {
	claude := ModelsByProvider(models.ProviderClaude)
	require.Len(t, claude, 3)
	for _, m := range claude {
		assert.Equal(t, models.ProviderClaude, m.Provider)
	}
	assert.Len(t, ModelsByProvider(models.ProviderGrok), 2)
	assert.Empty(t, ModelsByProvider("mistral"))
}

func TestModelsByTier(t *testing.T) {
	economy := ModelsByTier(TierEconomy)
	require.Len(t, economy, 4)
	for _, m := range economy {
		assert.Equal(t, TierEconomy, m.Tier)
	}
}

func TestModelByID(t *testing.T) {
	m, ok := ModelByID("gemini-2.0-flash")
	require.True(t, ok)
	assert.Equal(t, models.ProviderGemini, m.Provider)
	assert.Equal(t, 0.075, m.InputCostPer1M)

	_, ok = ModelByID("gemini-2-flash")
	assert.False(t, ok, "catalog keys are not vendor ids")
}

func TestLookup(t *testing.T) {
	key, m, ok := Lookup("grok-4-1-fast")
	require.True(t, ok)
	assert.Equal(t, "grok-4.1-fast", key)
	assert.Equal(t, "grok-4-1-fast", m.ID)

	key, _, ok = Lookup("grok-4.1-fast")
	require.True(t, ok)
	assert.Equal(t, "grok-4.1-fast", key)
}

func TestDefaultModelForFeature(t *testing.T) {
	assert.Equal(t, "claude-3-5-haiku-20241022", DefaultModelForFeature(models.ProviderClaude, models.FeatureURLAnalysis))
	assert.Equal(t, "gpt-5.2", DefaultModelForFeature(models.ProviderOpenAI, models.FeatureInsightExtraction))
	assert.Equal(t, "gemini-3-flash-preview", DefaultModelForFeature(models.ProviderGemini, "unknown-feature"))
}

func TestProviders(t *testing.T) {
	all := Providers()
	require.Len(t, all, 4)
	assert.Equal(t, models.ProviderClaude, all[0].Type)

	c, ok := Provider(models.ProviderGemini)
	require.True(t, ok)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", c.Endpoint)

	for _, p := range all {
		_, _, ok := Lookup(p.DefaultModel)
		assert.True(t, ok, "default model %s of %s is in the catalog", p.DefaultModel, p.Type)
	}
}

func TestValidKeyFormat(t *testing.T) {
	assert.True(t, ValidKeyFormat(models.ProviderOpenAI, "sk-abc"))
	assert.False(t, ValidKeyFormat(models.ProviderOpenAI, "abc"))
	assert.True(t, ValidKeyFormat(models.ProviderGemini, "AIzaXYZ"))
	assert.True(t, ValidKeyFormat(models.ProviderClaude, "anything"))
	assert.False(t, ValidKeyFormat(models.ProviderClaude, ""))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
	assert.Equal(t, 3, EstimateTokens("안녕하세요"))
	assert.Equal(t, 2, EstimateTokens("안녕 하"))
}

func TestEstimateTokensMonotonic(t *testing.T) {
	text := "Reading queues 읽기 목록 are useful, 정말로 유용합니다! " + strings.Repeat("x", 37)
	prev := 0
	runes := []rune(text)
	for i := range runes {
		n := EstimateTokens(string(runes[:i+1]))
		assert.GreaterOrEqual(t, n, prev)
		prev = n
	}
}
