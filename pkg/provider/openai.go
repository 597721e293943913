package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/pario-ai/readq/pkg/aierr"
	"github.com/pario-ai/readq/pkg/models"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxTokens           *int          `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
	Temperature         *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// chatCompletions speaks the OpenAI chat completions dialect.
type chatCompletions struct {
	wire
	// reasoningLimits switches reasoning models to max_completion_tokens.
	reasoningLimits bool
}

func (c chatCompletions) usesCompletionLimit(model string) bool {
	if !c.reasoningLimits {
		return false
	}
	return strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3")
}

func (c chatCompletions) withLimit(req *chatRequest, maxTokens int) {
	if c.usesCompletionLimit(req.Model) {
		req.MaxCompletionTokens = &maxTokens
	} else {
		req.MaxTokens = &maxTokens
	}
}

func (c chatCompletions) testAPIKey(ctx context.Context, apiKey string) bool {
	body := chatRequest{
		Model:    c.defaultModel,
		Messages: []chatMessage{{Role: string(models.RoleUser), Content: testPrompt}},
	}
	c.withLimit(&body, testMaxTokens)

	var out chatResponse
	req := c.http.R().SetContext(ctx).SetAuthToken(apiKey)
	if err := c.post(req, "/chat/completions", body, &out); err != nil {
		return false
	}
	return out.Error == nil && len(out.Choices) > 0
}

func (c chatCompletions) generate(ctx context.Context, messages []models.Message, apiKey string, opts *models.RequestOptions) models.ProviderResponse {
	g := c.resolve(opts)
	body := chatRequest{
		Model:       g.model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: &g.temperature,
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	c.withLimit(&body, g.maxTokens)

	c.log.Debug().
		Str("model", g.model).
		Int("messages", len(body.Messages)).
		Bool("completion_limit", body.MaxCompletionTokens != nil).
		Int("max_tokens", g.maxTokens).
		Msg("chat completion request")

	var out chatResponse
	req := c.http.R().SetContext(ctx).SetAuthToken(apiKey)
	if err := c.post(req, "/chat/completions", body, &out); err != nil {
		return c.failure(err)
	}
	if out.Error != nil {
		return models.Failure(out.Error.Message, errorCode(out.Error.Code, out.Error.Type))
	}
	if len(out.Choices) == 0 {
		return models.Failure("No response generated", string(aierr.CodeEmptyResponse))
	}

	var content string
	if p := out.Choices[0].Message.Content; p != nil {
		content = *p
	}
	var tokens *int
	if out.Usage != nil {
		tokens = models.Int(out.Usage.TotalTokens)
	}
	return success(content, tokens)
}

// errorCode prefers the vendor's code and falls back to its error type.
func errorCode(code any, typ string) string {
	switch v := code.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%d", int(v))
	}
	return typ
}

// OpenAI talks to the OpenAI chat completions API.
type OpenAI struct {
	chatCompletions
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(opts ...Option) *OpenAI {
	return &OpenAI{chatCompletions{wire: newWire(models.ProviderOpenAI, opts), reasoningLimits: true}}
}

// Type implements Provider.
func (o *OpenAI) Type() models.ProviderType { return models.ProviderOpenAI }

// TestAPIKey implements Provider.
func (o *OpenAI) TestAPIKey(ctx context.Context, apiKey string) bool {
	return o.testAPIKey(ctx, apiKey)
}

// GenerateText implements Provider.
func (o *OpenAI) GenerateText(ctx context.Context, messages []models.Message, apiKey string, opts *models.RequestOptions) models.ProviderResponse {
	return o.generate(ctx, messages, apiKey, opts)
}
