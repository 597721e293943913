package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/registry"
)

const defaultHistoryLimit = 20

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "readq_cost_summary",
			Description: "Total AI spend and tokens, broken down by provider and model",
			InputSchema: objectSchema(nil),
		},
		handle: costSummary,
	},
	{
		def: ToolDefinition{
			Name:        "readq_budget",
			Description: "Spend for the current budget period against the configured limit",
			InputSchema: objectSchema(nil),
		},
		handle: budgetStatus,
	},
	{
		def: ToolDefinition{
			Name:        "readq_history",
			Description: "Most recent billed AI calls, newest first",
			InputSchema: objectSchema(map[string]any{
				"limit": prop("integer", "Number of records to return (default 20, 0 for all)"),
			}),
		},
		handle: history,
	},
	{
		def: ToolDefinition{
			Name:        "readq_models",
			Description: "Model catalog with per-million-token prices",
			InputSchema: objectSchema(map[string]any{
				"provider": prop("string", "Only list models of this provider (claude, openai, gemini, grok)"),
			}),
		},
		handle: listModels,
	},
	{
		def: ToolDefinition{
			Name:        "readq_cache_stats",
			Description: "Prompt cache entries, hits and misses",
			InputSchema: objectSchema(nil),
		},
		handle: cacheStats,
	},
	{
		def: ToolDefinition{
			Name:        "readq_audit_search",
			Description: "Search the provider call audit log",
			InputSchema: objectSchema(map[string]any{
				"provider":    prop("string", "Filter by provider"),
				"model":       prop("string", "Filter by model"),
				"feature":     prop("string", "Filter by feature"),
				"since":       prop("string", "Only calls on or after this date (YYYY-MM-DD)"),
				"key_prefix":  prop("string", "Filter by API key prefix"),
				"failed_only": prop("boolean", "Only failed calls"),
				"limit":       prop("integer", "Maximum entries (default 20)"),
			}),
		},
		handle: auditSearch,
	},
	{
		def: ToolDefinition{
			Name:        "readq_analyze_url",
			Description: "Fetch a URL and produce a summary, key insights, tags, priority and reading time",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url":     prop("string", "Page to analyze"),
					"item_id": prop("string", "Reading item id (generated when empty)"),
					"existing_tags": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Tags already on the item",
					},
					"language": prop("string", "Preferred output language"),
				},
				"required": []string{"url"},
			},
		},
		handle: analyzeURL,
	},
}

func toolDefinitions() []ToolDefinition {
	out := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		out[i] = t.def
	}
	return out
}

func toolByName(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func objectSchema(props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{"type": "object", "properties": props}
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(msg string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: msg}}, IsError: true}
}

func bind(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func costSummary(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Ledger == nil {
		return errorResult("Cost tracking is not configured.")
	}
	return textResult(formatCostSummary(s.deps.Ledger.Summary()))
}

func budgetStatus(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Budget == nil {
		return errorResult("Budget enforcement is not configured.")
	}
	var limit *float64
	if s.deps.BudgetLimit != nil {
		limit = s.deps.BudgetLimit()
	}
	return textResult(formatBudget(s.deps.Budget.Status(limit)))
}

func history(_ context.Context, s *Server, args json.RawMessage) ToolCallResult {
	if s.deps.Ledger == nil {
		return errorResult("Cost tracking is not configured.")
	}
	p := struct {
		Limit *int `json:"limit"`
	}{}
	if err := bind(args, &p); err != nil {
		return errorResult(err.Error())
	}
	limit := defaultHistoryLimit
	if p.Limit != nil {
		limit = *p.Limit
	}
	return textResult(formatHistory(s.deps.Ledger.History(limit)))
}

func listModels(_ context.Context, _ *Server, args json.RawMessage) ToolCallResult {
	var p struct {
		Provider string `json:"provider"`
	}
	if err := bind(args, &p); err != nil {
		return errorResult(err.Error())
	}
	var rows []modelRow
	for _, key := range registry.Keys() {
		_, m, _ := registry.Lookup(key)
		if p.Provider != "" && !strings.EqualFold(string(m.Provider), p.Provider) {
			continue
		}
		rows = append(rows, modelRow{key: key, cfg: m})
	}
	return textResult(formatModels(rows))
}

func cacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.deps.Cache == nil {
		return errorResult("Prompt cache is not enabled.")
	}
	st, err := s.deps.Cache.Stats(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("cache stats: %v", err))
	}
	return textResult(formatCacheStats(st))
}

func auditSearch(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult {
	if s.deps.Auditor == nil {
		return errorResult("Audit logging is not enabled.")
	}
	var p struct {
		Provider   string `json:"provider"`
		Model      string `json:"model"`
		Feature    string `json:"feature"`
		Since      string `json:"since"`
		KeyPrefix  string `json:"key_prefix"`
		FailedOnly bool   `json:"failed_only"`
		Limit      int    `json:"limit"`
	}
	if err := bind(args, &p); err != nil {
		return errorResult(err.Error())
	}
	opts := models.AuditQueryOpts{
		Provider:     p.Provider,
		Model:        p.Model,
		Feature:      p.Feature,
		APIKeyPrefix: p.KeyPrefix,
		FailedOnly:   p.FailedOnly,
		Limit:        p.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultHistoryLimit
	}
	if p.Since != "" {
		t, err := time.Parse("2006-01-02", p.Since)
		if err != nil {
			return errorResult(fmt.Sprintf("invalid since date %q, expected YYYY-MM-DD", p.Since))
		}
		opts.Since = t
	}
	entries, err := s.deps.Auditor.Query(ctx, opts)
	if err != nil {
		return errorResult(fmt.Sprintf("audit query: %v", err))
	}
	return textResult(formatAuditEntries(entries))
}

func analyzeURL(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult {
	if s.deps.Analyzer == nil {
		return errorResult("URL analysis is not configured.")
	}
	var p struct {
		URL          string   `json:"url"`
		ItemID       string   `json:"item_id"`
		ExistingTags []string `json:"existing_tags"`
		Language     string   `json:"language"`
	}
	if err := bind(args, &p); err != nil {
		return errorResult(err.Error())
	}
	if p.URL == "" {
		return errorResult("url is required")
	}
	if p.ItemID == "" {
		p.ItemID = "item_" + uuid.NewString()
	}
	out := s.deps.Analyzer.AnalyzeURL(ctx, analysis.AnalyzeURLInput{
		ItemID:       p.ItemID,
		URL:          p.URL,
		ExistingTags: p.ExistingTags,
		Language:     p.Language,
	})
	if !out.Success || out.Analysis == nil {
		return errorResult(out.Error)
	}
	return textResult(formatAnalysis(out.Analysis))
}
