package provider

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/pario-ai/readq/pkg/models"
)

const anthropicVersion = "2023-06-01"

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []claudeMessage `json:"messages"`
	System      string          `json:"system,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Claude talks to the Anthropic Messages API.
type Claude struct {
	wire
}

// NewClaude creates a Claude adapter.
func NewClaude(opts ...Option) *Claude {
	return &Claude{wire: newWire(models.ProviderClaude, opts)}
}

// Type implements Provider.
func (c *Claude) Type() models.ProviderType { return models.ProviderClaude }

// TestAPIKey implements Provider.
func (c *Claude) TestAPIKey(ctx context.Context, apiKey string) bool {
	body := claudeRequest{
		Model:     c.defaultModel,
		Messages:  []claudeMessage{{Role: string(models.RoleUser), Content: testPrompt}},
		MaxTokens: testMaxTokens,
	}
	var out claudeResponse
	if err := c.post(c.request(ctx, apiKey), "/messages", body, &out); err != nil {
		return false
	}
	return out.Error == nil && len(out.Content) > 0
}

// GenerateText implements Provider.
func (c *Claude) GenerateText(ctx context.Context, messages []models.Message, apiKey string, opts *models.RequestOptions) models.ProviderResponse {
	g := c.resolve(opts)
	system, msgs := splitClaudeMessages(messages)
	body := claudeRequest{
		Model:       g.model,
		Messages:    msgs,
		System:      system,
		MaxTokens:   g.maxTokens,
		Temperature: &g.temperature,
	}

	c.log.Debug().Str("model", g.model).Int("messages", len(msgs)).Bool("system", system != "").Msg("claude request")

	var out claudeResponse
	if err := c.post(c.request(ctx, apiKey), "/messages", body, &out); err != nil {
		return c.failure(err)
	}
	if out.Error != nil {
		return models.Failure(out.Error.Message, out.Error.Type)
	}

	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	var tokens *int
	if out.Usage != nil {
		tokens = models.Int(out.Usage.InputTokens + out.Usage.OutputTokens)
	}
	return success(b.String(), tokens)
}

func (c *Claude) request(ctx context.Context, apiKey string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", anthropicVersion)
}

// splitClaudeMessages lifts system messages into the top-level system prompt.
func splitClaudeMessages(messages []models.Message) (string, []claudeMessage) {
	var system []string
	out := make([]claudeMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		out = append(out, claudeMessage{Role: string(m.Role), Content: m.Content})
	}
	return strings.Join(system, "\n\n"), out
}
