package provider

import (
	"context"

	"github.com/pario-ai/readq/pkg/models"
)

// Grok talks to the xAI API, which is OpenAI compatible.
type Grok struct {
	chatCompletions
}

// NewGrok creates a Grok adapter.
func NewGrok(opts ...Option) *Grok {
	return &Grok{chatCompletions{wire: newWire(models.ProviderGrok, opts)}}
}

// Type implements Provider.
func (g *Grok) Type() models.ProviderType { return models.ProviderGrok }

// TestAPIKey implements Provider.
func (g *Grok) TestAPIKey(ctx context.Context, apiKey string) bool {
	return g.testAPIKey(ctx, apiKey)
}

// GenerateText implements Provider.
func (g *Grok) GenerateText(ctx context.Context, messages []models.Message, apiKey string, opts *models.RequestOptions) models.ProviderResponse {
	return g.generate(ctx, messages, apiKey, opts)
}
