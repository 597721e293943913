// Package ai is the single entry point for text generation. It resolves the
// provider and model for a call, enforces the budget and dispatches to the
// registered vendor adapter.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pario-ai/readq/pkg/aierr"
	"github.com/pario-ai/readq/pkg/audit"
	"github.com/pario-ai/readq/pkg/budget"
	promptcache "github.com/pario-ai/readq/pkg/cache/sqlite"
	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/provider"
	"github.com/pario-ai/readq/pkg/registry"
	"github.com/pario-ai/readq/pkg/retry"
	"github.com/pario-ai/readq/pkg/router"
)

// Cache stores successful generation results by prompt hash.
type Cache interface {
	Get(ctx context.Context, hash string) (models.ProviderResponse, bool)
	Put(ctx context.Context, hash string, p models.ProviderType, model string, resp models.ProviderResponse) error
}

// Auditor records every dispatched call.
type Auditor interface {
	Log(ctx context.Context, e models.AuditEntry) error
}

// Service routes generation requests to vendor adapters. It is safe for
// concurrent use.
type Service struct {
	mu        sync.RWMutex
	settings  models.Settings
	providers map[models.ProviderType]provider.Provider

	emitter *events.Emitter
	cache   Cache
	auditor Auditor
	policy  retry.Policy
	log     zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEmitter publishes settings:changed on UpdateSettings.
func WithEmitter(e *events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithCache serves repeated prompts from c.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithAuditor records each call with a.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithRetryPolicy retries calls that fail with a retryable code.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New creates a Service with no providers registered.
func New(settings models.Settings, opts ...Option) *Service {
	s := &Service{
		settings:  settings.Normalize(),
		providers: make(map[models.ProviderType]provider.Provider),
		policy:    retry.NoRetryPolicy(),
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RegisterProvider adds p, replacing any adapter of the same type.
func (s *Service) RegisterProvider(p provider.Provider) {
	s.mu.Lock()
	s.providers[p.Type()] = p
	s.mu.Unlock()
}

// UpdateSettings replaces the settings used by subsequent calls.
func (s *Service) UpdateSettings(settings models.Settings) {
	n := settings.Normalize()
	s.mu.Lock()
	s.settings = n
	s.mu.Unlock()

	s.log.Info().Str("provider", string(n.Provider)).Msg("ai settings updated")
	if s.emitter != nil {
		s.emitter.Emit(events.SettingsChanged{Key: "ai", Value: n.Clone()})
	}
}

// Settings returns a copy of the current settings.
func (s *Service) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// CurrentProvider returns the adapter of the active provider.
func (s *Service) CurrentProvider() (provider.Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[s.settings.Provider]
	return p, ok
}

// CurrentAPIKey returns the key of the active provider, or "".
func (s *Service) CurrentAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.APIKeys[s.settings.Provider]
}

// CurrentModel returns the model selected for the active provider.
func (s *Service) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Models[s.settings.Provider]
}

// TestCurrentAPIKey probes the active provider with its configured key.
func (s *Service) TestCurrentAPIKey(ctx context.Context) bool {
	p, ok := s.CurrentProvider()
	key := s.CurrentAPIKey()
	if !ok || key == "" {
		return false
	}
	return p.TestAPIKey(ctx, key)
}

// TestAPIKey probes pt with key, which need not be saved in the settings.
func (s *Service) TestAPIKey(ctx context.Context, pt models.ProviderType, key string) bool {
	s.mu.RLock()
	p, ok := s.providers[pt]
	s.mu.RUnlock()
	if !ok || key == "" {
		return false
	}
	return p.TestAPIKey(ctx, key)
}

// FeatureConfig returns the provider and model a feature is routed to.
func (s *Service) FeatureConfig(feature models.Feature) models.FeatureModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := router.Resolve(s.settings, feature)
	return models.FeatureModel{Provider: r.Provider, Model: r.Model}
}

// IsProviderConfigured reports whether pt has an API key.
func (s *Service) IsProviderConfigured(pt models.ProviderType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.APIKeys[pt] != ""
}

// AvailableProviders lists the registered providers in display order.
func (s *Service) AvailableProviders() []models.ProviderType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ProviderType
	for _, pt := range models.AllProviders {
		if _, ok := s.providers[pt]; ok {
			out = append(out, pt)
		}
	}
	return out
}

// EstimateCost prices a call on the active model. Unknown models cost 0.
func (s *Service) EstimateCost(inputTokens, outputTokens int) float64 {
	return registry.CalculateCost(s.CurrentModel(), inputTokens, outputTokens)
}

// GenerateText runs messages on the active provider. currentSpend, when
// non-nil, is checked against the budget before any request is made; a
// violation is the only error returned. All other failures are reported in
// the response.
func (s *Service) GenerateText(ctx context.Context, messages []models.Message, opts *models.RequestOptions, currentSpend *float64) (models.ProviderResponse, error) {
	s.mu.RLock()
	settings := s.settings
	p, ok := s.providers[settings.Provider]
	s.mu.RUnlock()

	if settings.Provider == "" || !ok {
		return models.Failure("No provider selected", ""), nil
	}
	key := settings.APIKeys[settings.Provider]
	if key == "" {
		return models.Failure("No API key configured", ""), nil
	}
	if err := budget.Check(settings.BudgetLimit, currentSpend); err != nil {
		return models.ProviderResponse{}, err
	}
	return s.dispatch(ctx, call{
		provider: p,
		key:      key,
		model:    settings.Models[settings.Provider],
		messages: messages,
		opts:     opts,
	}), nil
}

// GenerateForFeature runs messages on the provider and model routed for feature.
func (s *Service) GenerateForFeature(ctx context.Context, feature models.Feature, messages []models.Message, opts *models.RequestOptions, currentSpend *float64) (models.ProviderResponse, error) {
	s.mu.RLock()
	settings := s.settings
	route := router.Resolve(settings, feature)
	p, ok := s.providers[route.Provider]
	s.mu.RUnlock()

	if !ok {
		return models.Failure(fmt.Sprintf("Provider %s not available", route.Provider), ""), nil
	}
	key := settings.APIKeys[route.Provider]
	if key == "" {
		return models.Failure(fmt.Sprintf("No API key configured for %s", route.Provider), ""), nil
	}
	if err := budget.Check(settings.BudgetLimit, currentSpend); err != nil {
		return models.ProviderResponse{}, err
	}
	return s.dispatch(ctx, call{
		feature:  feature,
		provider: p,
		key:      key,
		model:    route.Model,
		messages: messages,
		opts:     opts,
	}), nil
}

// SimpleGenerate wraps a prompt and an optional system prompt into messages
// and calls GenerateText.
func (s *Service) SimpleGenerate(ctx context.Context, prompt, systemPrompt string, opts *models.RequestOptions, currentSpend *float64) (models.ProviderResponse, error) {
	return s.GenerateText(ctx, promptMessages(prompt, systemPrompt), opts, currentSpend)
}

// SimpleGenerateForFeature is SimpleGenerate routed for feature.
func (s *Service) SimpleGenerateForFeature(ctx context.Context, feature models.Feature, prompt, systemPrompt string, opts *models.RequestOptions, currentSpend *float64) (models.ProviderResponse, error) {
	return s.GenerateForFeature(ctx, feature, promptMessages(prompt, systemPrompt), opts, currentSpend)
}

func promptMessages(prompt, systemPrompt string) []models.Message {
	msgs := make([]models.Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: systemPrompt})
	}
	return append(msgs, models.Message{Role: models.RoleUser, Content: prompt})
}

type call struct {
	feature  models.Feature
	provider provider.Provider
	key      string
	model    string
	messages []models.Message
	opts     *models.RequestOptions
}

// dispatch merges the routed model under the caller's options, consults the
// prompt cache and calls the adapter under the retry policy.
func (s *Service) dispatch(ctx context.Context, c call) models.ProviderResponse {
	merged := models.RequestOptions{Model: c.model}
	if c.opts != nil {
		merged = *c.opts
		if merged.Model == "" {
			merged.Model = c.model
		}
	}
	pt := c.provider.Type()
	start := time.Now()

	var hash string
	if s.cache != nil {
		hash = promptcache.HashPrompt(promptcache.Key{
			Provider:    pt,
			Model:       merged.Model,
			Temperature: merged.Temperature,
			MaxTokens:   merged.MaxTokens,
			Messages:    c.messages,
		})
		if resp, ok := s.cache.Get(ctx, hash); ok {
			resp.Cached = true
			resp.TokensUsed = nil
			s.record(ctx, c, merged.Model, resp, 0, start)
			return resp
		}
	}

	attempts := 0
	resp, err := retry.Do(ctx, s.policy, aierr.IsRetryable, func(ctx context.Context, attempt int) (models.ProviderResponse, error) {
		attempts++
		r := c.provider.GenerateText(ctx, c.messages, c.key, &merged)
		if !r.Success && aierr.IsRetryableCode(r.ErrorCode) {
			s.log.Debug().Str("provider", string(pt)).Str("code", r.ErrorCode).Int("attempt", attempt).Msg("retryable failure")
			return r, aierr.New(aierr.Code(r.ErrorCode), r.Error)
		}
		return r, nil
	})
	if err != nil && !resp.Success && resp.Error == "" {
		e := aierr.Classify(err)
		resp = models.Failure(e.Message, string(e.Code))
	}

	if resp.Success && s.cache != nil {
		if err := s.cache.Put(ctx, hash, pt, merged.Model, resp); err != nil {
			s.log.Warn().Err(err).Msg("prompt cache store")
		}
	}
	s.record(ctx, c, merged.Model, resp, attempts, start)
	return resp
}

func (s *Service) record(ctx context.Context, c call, model string, resp models.ProviderResponse, attempts int, start time.Time) {
	latency := time.Since(start)
	ev := s.log.Debug()
	if !resp.Success {
		ev = s.log.Warn().Str("code", resp.ErrorCode).Str("error", resp.Error)
	}
	ev.Str("provider", string(c.provider.Type())).
		Str("model", model).
		Str("feature", string(c.feature)).
		Bool("cached", resp.Cached).
		Int("attempts", attempts).
		Int("tokens", resp.Tokens()).
		Dur("latency", latency).
		Msg("generation")

	if s.auditor == nil {
		return
	}
	hash, prefix := audit.HashAPIKey(c.key)
	body, _ := json.Marshal(c.messages)
	entry := models.AuditEntry{
		Feature:      string(c.feature),
		Provider:     string(c.provider.Type()),
		Model:        model,
		APIKeyHash:   hash,
		APIKeyPrefix: prefix,
		RequestBody:  string(body),
		ResponseBody: resp.Content,
		Success:      resp.Success,
		ErrorCode:    resp.ErrorCode,
		Cached:       resp.Cached,
		Attempts:     attempts,
		TotalTokens:  resp.Tokens(),
		LatencyMs:    latency.Milliseconds(),
		CreatedAt:    time.Now(),
	}
	if err := s.auditor.Log(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("audit log")
	}
}
