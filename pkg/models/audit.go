package models

import "time"

// AuditEntry records a single provider call made through the AI service.
type AuditEntry struct {
	RequestID    string    `json:"request_id"`
	Feature      string    `json:"feature,omitempty"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	APIKeyHash   string    `json:"api_key_hash"`
	APIKeyPrefix string    `json:"api_key_prefix"`
	RequestBody  string    `json:"request_body,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	Success      bool      `json:"success"`
	ErrorCode    string    `json:"error_code,omitempty"`
	Cached       bool      `json:"cached"`
	Attempts     int       `json:"attempts"`
	TotalTokens  int       `json:"total_tokens"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditConfig controls the audit log.
type AuditConfig struct {
	Enabled       bool     `yaml:"enabled"`
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	Include       []string `yaml:"include"` // "prompts", "responses"
	ExcludeModels []string `yaml:"exclude_models"`
	MaxBodySize   int      `yaml:"max_body_size"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Provider     string
	Model        string
	Feature      string
	Since        time.Time
	APIKeyPrefix string
	RequestID    string
	FailedOnly   bool
	Limit        int
}

// AuditStat holds aggregate audit counts for a provider/model/day combination.
type AuditStat struct {
	Provider string
	Model    string
	Day      string
	Count    int
	Failures int
}
