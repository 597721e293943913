package router

import (
	"github.com/pario-ai/readq/pkg/models"
)

// Route is a resolved provider and model for one call.
type Route struct {
	Provider models.ProviderType
	Model    string
	// Override is true when a per-feature setting selected the route.
	Override bool
}

// Resolve picks the provider and model for feature. A feature_models entry
// wins; otherwise the active provider is used with its selected model. An
// empty feature always resolves to the active provider.
func Resolve(s models.Settings, feature models.Feature) Route {
	if feature != "" {
		if fm, ok := s.FeatureModels[feature]; ok {
			return Route{Provider: fm.Provider, Model: fm.Model, Override: true}
		}
	}
	return Route{Provider: s.Provider, Model: s.Models[s.Provider]}
}

// Configured lists the providers in s that have an API key, in display order.
func Configured(s models.Settings) []models.ProviderType {
	var out []models.ProviderType
	for _, p := range models.AllProviders {
		if s.APIKeys[p] != "" {
			out = append(out, p)
		}
	}
	return out
}
