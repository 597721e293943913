package models

// ProviderType identifies one of the supported LLM vendors.
type ProviderType string

const (
	ProviderClaude ProviderType = "claude"
	ProviderGemini ProviderType = "gemini"
	ProviderOpenAI ProviderType = "openai"
	ProviderGrok   ProviderType = "grok"
)

// AllProviders lists every supported vendor in display order.
var AllProviders = []ProviderType{ProviderClaude, ProviderGemini, ProviderOpenAI, ProviderGrok}

// Valid reports whether p is a supported vendor.
func (p ProviderType) Valid() bool {
	for _, v := range AllProviders {
		if v == p {
			return true
		}
	}
	return false
}

// Feature is an AI-assisted operation that can be routed to its own provider/model.
type Feature string

const (
	FeatureURLAnalysis       Feature = "url-analysis"
	FeatureTagSuggestion     Feature = "tag-suggestion"
	FeatureInsightExtraction Feature = "insight-extraction"
)

// AllFeatures lists every routable feature.
var AllFeatures = []Feature{FeatureURLAnalysis, FeatureTagSuggestion, FeatureInsightExtraction}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	for _, v := range AllFeatures {
		if f == v {
			return true
		}
	}
	return false
}

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a vendor-neutral chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RequestOptions overrides generation defaults for a single call.
type RequestOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// ProviderResponse is the uniform result of one generation call.
type ProviderResponse struct {
	Success    bool   `json:"success"`
	Content    string `json:"content"`
	TokensUsed *int   `json:"tokens_used,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
}

// Tokens returns the reported token usage, or 0 when none was reported.
func (r ProviderResponse) Tokens() int {
	if r.TokensUsed == nil {
		return 0
	}
	return *r.TokensUsed
}

// Failure builds an unsuccessful response.
func Failure(message, code string) ProviderResponse {
	return ProviderResponse{Success: false, Error: message, ErrorCode: code}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
