package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/pario-ai/readq/pkg/aierr"
	"github.com/pario-ai/readq/pkg/models"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Gemini talks to the Google Generative Language API.
type Gemini struct {
	wire
}

// NewGemini creates a Gemini adapter.
func NewGemini(opts ...Option) *Gemini {
	return &Gemini{wire: newWire(models.ProviderGemini, opts)}
}

// Type implements Provider.
func (g *Gemini) Type() models.ProviderType { return models.ProviderGemini }

// TestAPIKey implements Provider.
func (g *Gemini) TestAPIKey(ctx context.Context, apiKey string) bool {
	body := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: testPrompt}}}},
		GenerationConfig: geminiGenConfig{MaxOutputTokens: testMaxTokens},
	}
	var out geminiResponse
	if err := g.post(g.request(ctx, apiKey), modelPath(g.defaultModel), body, &out); err != nil {
		return false
	}
	return out.Error == nil && len(out.Candidates) > 0
}

// GenerateText implements Provider.
func (g *Gemini) GenerateText(ctx context.Context, messages []models.Message, apiKey string, opts *models.RequestOptions) models.ProviderResponse {
	gen := g.resolve(opts)
	contents, system := convertGeminiMessages(messages)
	body := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: geminiGenConfig{
			Temperature:     &gen.temperature,
			MaxOutputTokens: gen.maxTokens,
		},
	}

	g.log.Debug().Str("model", gen.model).Int("contents", len(contents)).Msg("gemini request")

	var out geminiResponse
	if err := g.post(g.request(ctx, apiKey), modelPath(gen.model), body, &out); err != nil {
		return g.failure(err)
	}
	if out.Error != nil {
		code := out.Error.Status
		if code == "" {
			code = strconv.Itoa(out.Error.Code)
		}
		return models.Failure(out.Error.Message, code)
	}
	if len(out.Candidates) == 0 {
		return models.Failure("No response generated", string(aierr.CodeEmptyResponse))
	}

	var b strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	var tokens *int
	if out.UsageMetadata != nil {
		tokens = models.Int(out.UsageMetadata.TotalTokenCount)
	}
	return success(b.String(), tokens)
}

// request puts the key in the query string, which is how the API authenticates.
func (g *Gemini) request(ctx context.Context, apiKey string) *resty.Request {
	return g.http.R().SetContext(ctx).SetQueryParam("key", apiKey)
}

func modelPath(model string) string {
	return fmt.Sprintf("/models/%s:generateContent", model)
}

func convertGeminiMessages(messages []models.Message) ([]geminiContent, *geminiContent) {
	var system []string
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
}
