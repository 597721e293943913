package models

import "time"

// UsageRecord is one billed generation call in the cost ledger.
type UsageRecord struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	Cost         float64   `json:"cost"`
	Feature      string    `json:"feature,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (r UsageRecord) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// CostSummary aggregates the ledger.
type CostSummary struct {
	TotalCost         float64            `json:"totalCost"`
	TotalInputTokens  int                `json:"totalInputTokens"`
	TotalOutputTokens int                `json:"totalOutputTokens"`
	RecordCount       int                `json:"recordCount"`
	ByProvider        map[string]float64 `json:"byProvider"`
	ByModel           map[string]float64 `json:"byModel"`
}

// UsageTotals is a per provider/model/feature roll-up read from the persistent ledger.
type UsageTotals struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Feature      string  `json:"feature"`
	RequestCount int     `json:"request_count"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}
