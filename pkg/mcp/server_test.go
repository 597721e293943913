package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/readq/pkg/analysis"
	"github.com/pario-ai/readq/pkg/budget"
	"github.com/pario-ai/readq/pkg/cost"
	"github.com/pario-ai/readq/pkg/models"
)

type fakeCache struct {
	stats models.CacheStats
	err   error
}

func (f *fakeCache) Stats(context.Context) (models.CacheStats, error) { return f.stats, f.err }

type fakeAuditor struct {
	entries []models.AuditEntry
	opts    models.AuditQueryOpts
}

func (f *fakeAuditor) Query(_ context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	f.opts = opts
	return f.entries, nil
}

type fakeAnalyzer struct {
	in  analysis.AnalyzeURLInput
	out analysis.AnalyzeURLOutput
}

func (f *fakeAnalyzer) AnalyzeURL(_ context.Context, in analysis.AnalyzeURLInput) analysis.AnalyzeURLOutput {
	f.in = in
	return f.out
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	line, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	line = append(line, '\n')

	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}

	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, out.String())
	}
	return resp
}

func callTool(t *testing.T, srv *Server, name, args string) ToolCallResult {
	t.Helper()
	params := `{"name":"` + name + `"}`
	if args != "" {
		params = `{"name":"` + name + `","arguments":` + args + `}`
	}
	resp := sendAndReceive(t, srv, Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/call",
		Params:  json.RawMessage(params),
	})
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("%s: empty content", name)
	}
	return result
}

func ledgerDeps() Deps {
	costs := cost.New(nil)
	costs.TrackUsage("openai", "gpt-4o-mini", 1_000_000, 0, models.FeatureURLAnalysis)
	costs.TrackUsage("claude", "claude-haiku", 1000, 500, models.FeatureTagSuggestion)
	return Deps{
		Ledger:      costs,
		Budget:      budget.New(models.BudgetLifetime, costs),
		BudgetLimit: func() *float64 { return models.Float(1) },
	}
}

func TestInitialize(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "initialize"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocol version = %s, want 2024-11-05", result.ProtocolVersion)
	}
	if result.ServerInfo.Name != "readq" || result.ServerInfo.Version != "test" {
		t.Errorf("server info = %+v", result.ServerInfo)
	}
}

func TestToolsList(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/list"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"readq_cost_summary", "readq_budget", "readq_history", "readq_models",
		"readq_cache_stats", "readq_audit_search", "readq_analyze_url",
	} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
	if len(result.Tools) != 7 {
		t.Errorf("got %d tools, want 7", len(result.Tools))
	}
}

func TestCostSummaryTool(t *testing.T) {
	srv := New(ledgerDeps(), "test")
	res := callTool(t, srv, "readq_cost_summary", "")
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content[0].Text)
	}
	text := res.Content[0].Text
	for _, want := range []string{"Requests:      2", "openai", "claude-haiku", "$0.15"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestCostSummaryEmpty(t *testing.T) {
	srv := New(Deps{Ledger: cost.New(nil)}, "test")
	res := callTool(t, srv, "readq_cost_summary", "")
	if res.Content[0].Text != "No usage recorded." {
		t.Errorf("got %q", res.Content[0].Text)
	}
}

func TestBudgetTool(t *testing.T) {
	srv := New(ledgerDeps(), "test")
	text := callTool(t, srv, "readq_budget", "").Content[0].Text
	if !strings.Contains(text, "Limit:        $1.00") || !strings.Contains(text, "Period:       lifetime") {
		t.Errorf("unexpected budget output:\n%s", text)
	}
	if strings.Contains(text, "EXCEEDED") {
		t.Errorf("budget should not be exceeded:\n%s", text)
	}
}

func TestHistoryTool(t *testing.T) {
	srv := New(ledgerDeps(), "test")
	text := callTool(t, srv, "readq_history", `{"limit":1}`).Content[0].Text
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header, rule and one row, got %d lines:\n%s", len(lines), text)
	}

	text = callTool(t, srv, "readq_history", `{"limit":0}`).Content[0].Text
	if n := len(strings.Split(strings.TrimSpace(text), "\n")); n != 4 {
		t.Errorf("limit 0 should list every record, got %d lines:\n%s", n, text)
	}
}

func TestModelsTool(t *testing.T) {
	srv := New(Deps{}, "test")
	text := callTool(t, srv, "readq_models", `{"provider":"gemini"}`).Content[0].Text
	if !strings.Contains(text, "gemini") {
		t.Errorf("expected gemini models:\n%s", text)
	}
	for _, other := range []string{" claude ", " openai ", " grok "} {
		if strings.Contains(text, other) {
			t.Errorf("provider filter leaked %q:\n%s", other, text)
		}
	}
}

func TestCacheStatsTool(t *testing.T) {
	srv := New(Deps{Cache: &fakeCache{stats: models.CacheStats{Entries: 4, Hits: 3, Misses: 1}}}, "test")
	text := callTool(t, srv, "readq_cache_stats", "").Content[0].Text
	if !strings.Contains(text, "Entries:  4") || !strings.Contains(text, "75.0%") {
		t.Errorf("unexpected cache stats:\n%s", text)
	}

	srv = New(Deps{Cache: &fakeCache{err: errors.New("locked")}}, "test")
	if res := callTool(t, srv, "readq_cache_stats", ""); !res.IsError {
		t.Error("expected error result")
	}
}

func TestAuditSearchTool(t *testing.T) {
	aud := &fakeAuditor{entries: []models.AuditEntry{{
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		APIKeyPrefix: "sk-test",
		ErrorCode:    "RATE_LIMIT",
		CreatedAt:    time.Now(),
	}}}
	srv := New(Deps{Auditor: aud}, "test")

	text := callTool(t, srv, "readq_audit_search", `{"provider":"openai","since":"2026-01-02","failed_only":true}`).Content[0].Text
	if !strings.Contains(text, "RATE_LIMIT") || !strings.Contains(text, "failed") {
		t.Errorf("unexpected audit output:\n%s", text)
	}
	if aud.opts.Provider != "openai" || !aud.opts.FailedOnly || aud.opts.Limit != defaultHistoryLimit {
		t.Errorf("unexpected query opts %+v", aud.opts)
	}
	if aud.opts.Since.Format("2006-01-02") != "2026-01-02" {
		t.Errorf("since not parsed: %v", aud.opts.Since)
	}

	if res := callTool(t, srv, "readq_audit_search", `{"since":"yesterday"}`); !res.IsError {
		t.Error("expected error for bad date")
	}
}

func TestAnalyzeURLTool(t *testing.T) {
	minutes := 12
	prio := models.PriorityHigh
	an := &fakeAnalyzer{out: analysis.AnalyzeURLOutput{
		Success: true,
		Analysis: &models.ContentAnalysis{
			ItemID:               "item-9",
			Title:                "Spaced repetition",
			Summary:              "Reviewing at growing intervals helps recall.",
			KeyInsights:          []string{"Forgetting curve"},
			SuggestedTags:        []string{"memory"},
			SuggestedPriority:    &prio,
			EstimatedReadingTime: &minutes,
			Provider:             "claude",
			Model:                "claude-sonnet-4",
		},
	}}
	srv := New(Deps{Analyzer: an}, "test")

	res := callTool(t, srv, "readq_analyze_url", `{"url":"https://example.com/srs","existing_tags":["learning"]}`)
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Content[0].Text)
	}
	text := res.Content[0].Text
	for _, want := range []string{"# Spaced repetition", "- Forgetting curve", "Tags: memory", "Priority: high", "Reading time: 12 min"} {
		if !strings.Contains(text, want) {
			t.Errorf("analysis missing %q:\n%s", want, text)
		}
	}
	if an.in.URL != "https://example.com/srs" || !strings.HasPrefix(an.in.ItemID, "item_") {
		t.Errorf("unexpected input %+v", an.in)
	}
	if len(an.in.ExistingTags) != 1 {
		t.Errorf("existing tags not passed: %v", an.in.ExistingTags)
	}
}

func TestAnalyzeURLToolFailure(t *testing.T) {
	an := &fakeAnalyzer{out: analysis.AnalyzeURLOutput{Error: analysis.MsgExtractFailed}}
	srv := New(Deps{Analyzer: an}, "test")

	res := callTool(t, srv, "readq_analyze_url", `{"url":"https://example.com"}`)
	if !res.IsError || res.Content[0].Text != analysis.MsgExtractFailed {
		t.Errorf("unexpected result %+v", res)
	}
	if res := callTool(t, srv, "readq_analyze_url", `{}`); !res.IsError {
		t.Error("expected error without url")
	}
}

func TestToolsNotConfigured(t *testing.T) {
	srv := New(Deps{}, "test")
	for _, name := range []string{"readq_cost_summary", "readq_budget", "readq_history", "readq_cache_stats", "readq_audit_search", "readq_analyze_url"} {
		if res := callTool(t, srv, name, `{"url":"https://example.com"}`); !res.IsError {
			t.Errorf("%s: expected not-configured error", name)
		}
	}
}

func TestUnknownTool(t *testing.T) {
	srv := New(Deps{}, "test")
	res := callTool(t, srv, "readq_nope", "")
	if !res.IsError || !strings.Contains(res.Content[0].Text, "unknown tool") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNotificationNoResponse(t *testing.T) {
	srv := New(Deps{}, "test")
	line := []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	var out bytes.Buffer
	if err := srv.Run(context.Background(), bytes.NewReader(line), &out); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got %s", out.String())
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := New(Deps{}, "test")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "2.0", ID: json.RawMessage(`99`), Method: "unknown/method"})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Errorf("expected method-not-found, got %+v", resp.Error)
	}
}

func TestParseError(t *testing.T) {
	srv := New(Deps{}, "test")
	var out bytes.Buffer
	if err := srv.Run(context.Background(), strings.NewReader("{oops\n"), &out); err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == nil || resp.Error.Code != CodeParseError {
		t.Errorf("expected parse error, got %+v", resp.Error)
	}
}
