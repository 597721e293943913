// Package registry holds the static model catalog and pricing helpers.
package registry

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pario-ai/readq/pkg/models"
)

var perMillion = decimal.NewFromInt(1_000_000)

// Lookup resolves key as a catalog key first and as a vendor model id second.
func Lookup(key string) (string, ModelConfig, bool) {
	if m, ok := catalog[key]; ok {
		return key, m, true
	}
	for k, m := range catalog {
		if m.ID == key {
			return k, m, true
		}
	}
	return "", ModelConfig{}, false
}

// CalculateCost returns the USD cost of a call. Unknown models cost 0.
func CalculateCost(modelKey string, inputTokens, outputTokens int) float64 {
	_, m, ok := Lookup(modelKey)
	if !ok {
		return 0
	}
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	in := decimal.NewFromInt(int64(inputTokens)).Div(perMillion).Mul(decimal.NewFromFloat(m.InputCostPer1M))
	out := decimal.NewFromInt(int64(outputTokens)).Div(perMillion).Mul(decimal.NewFromFloat(m.OutputCostPer1M))
	return in.Add(out).InexactFloat64()
}

// ModelsByProvider returns the catalog entries of one vendor ordered by catalog key.
func ModelsByProvider(p models.ProviderType) []ModelConfig {
	var out []ModelConfig
	for _, k := range sortedKeys() {
		if catalog[k].Provider == p {
			out = append(out, catalog[k])
		}
	}
	return out
}

// ModelsByTier returns the catalog entries in one tier ordered by catalog key.
func ModelsByTier(t Tier) []ModelConfig {
	var out []ModelConfig
	for _, k := range sortedKeys() {
		if catalog[k].Tier == t {
			out = append(out, catalog[k])
		}
	}
	return out
}

// ModelByID finds a catalog entry by its vendor model id.
func ModelByID(vendorID string) (ModelConfig, bool) {
	for _, m := range catalog {
		if m.ID == vendorID {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// Keys returns all catalog keys in sorted order.
func Keys() []string {
	return sortedKeys()
}

// Provider returns the static configuration for a vendor.
func Provider(p models.ProviderType) (ProviderConfig, bool) {
	c, ok := providers[p]
	return c, ok
}

// Providers returns every vendor configuration in display order.
func Providers() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(models.AllProviders))
	for _, p := range models.AllProviders {
		out = append(out, providers[p])
	}
	return out
}

// DefaultModelForFeature returns the vendor model id a feature uses by default,
// falling back to the vendor's default model.
func DefaultModelForFeature(p models.ProviderType, f models.Feature) string {
	if byProvider, ok := featureDefaults[f]; ok {
		if m := byProvider[p]; m != "" {
			return m
		}
	}
	return providers[p].DefaultModel
}

// ValidKeyFormat reports whether key matches the vendor's key prefix hint.
// Vendors without a hint accept any non-empty key.
func ValidKeyFormat(p models.ProviderType, key string) bool {
	if key == "" {
		return false
	}
	c, ok := providers[p]
	if !ok || c.KeyPrefix == "" {
		return true
	}
	return strings.HasPrefix(key, c.KeyPrefix)
}

// EstimateTokens is a rough token count: two Hangul syllables or four other
// characters per token.
func EstimateTokens(text string) int {
	var cjk, other int
	for _, r := range text {
		if r >= 0xAC00 && r <= 0xD7AF {
			cjk++
		} else {
			other++
		}
	}
	return int(math.Ceil(float64(cjk)/2 + float64(other)/4))
}

func sortedKeys() []string {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
