// Package provider implements the vendor adapters behind one generation interface.
package provider

import (
	"context"
	"fmt"

	"github.com/pario-ai/readq/pkg/models"
)

// Provider translates vendor-neutral messages into one vendor's wire protocol.
type Provider interface {
	// Type identifies the vendor.
	Type() models.ProviderType
	// TestAPIKey issues a minimal request and reports whether the key works.
	TestAPIKey(ctx context.Context, apiKey string) bool
	// GenerateText runs one completion. Failures are reported in the response, never returned.
	GenerateText(ctx context.Context, messages []models.Message, apiKey string, opts *models.RequestOptions) models.ProviderResponse
}

// New builds the adapter for a vendor type.
func New(pt models.ProviderType, opts ...Option) (Provider, error) {
	switch pt {
	case models.ProviderClaude:
		return NewClaude(opts...), nil
	case models.ProviderOpenAI:
		return NewOpenAI(opts...), nil
	case models.ProviderGemini:
		return NewGemini(opts...), nil
	case models.ProviderGrok:
		return NewGrok(opts...), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", pt)
	}
}

// All builds one adapter per supported vendor.
func All(opts ...Option) []Provider {
	out := make([]Provider, 0, len(models.AllProviders))
	for _, pt := range models.AllProviders {
		p, _ := New(pt, opts...)
		out = append(out, p)
	}
	return out
}
