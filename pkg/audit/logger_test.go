package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pario-ai/readq/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 90,
		MaxBodySize:   1024,
		Include:       []string{"prompts", "responses"},
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	return models.AuditEntry{
		RequestID:    "req-001",
		Feature:      "url-analysis",
		Provider:     "openai",
		Model:        "gpt-4o-mini",
		APIKeyHash:   "abc123hash",
		APIKeyPrefix: "sk-test-",
		RequestBody:  `[{"role":"user","content":"hi"}]`,
		ResponseBody: `hello`,
		Success:      true,
		Attempts:     1,
		TotalTokens:  30,
		LatencyMs:    150,
		CreatedAt:    time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	if err := l.Log(ctx, sampleEntry()); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := l.Query(ctx, models.AuditQueryOpts{Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.RequestID != "req-001" || e.Feature != "url-analysis" || !e.Success || e.TotalTokens != 30 {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.ResponseBody != "hello" {
		t.Errorf("expected response body, got %q", e.ResponseBody)
	}
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry())
	failed := sampleEntry()
	failed.RequestID = "req-002"
	failed.Provider = "claude"
	failed.Feature = "tag-suggestion"
	failed.Success = false
	failed.ErrorCode = "RATE_LIMIT"
	failed.Attempts = 3
	_ = l.Log(ctx, failed)

	cases := []struct {
		name string
		opts models.AuditQueryOpts
		want int
	}{
		{"all", models.AuditQueryOpts{}, 2},
		{"request id", models.AuditQueryOpts{RequestID: "req-001"}, 1},
		{"provider", models.AuditQueryOpts{Provider: "claude"}, 1},
		{"feature", models.AuditQueryOpts{Feature: "url-analysis"}, 1},
		{"failed only", models.AuditQueryOpts{FailedOnly: true}, 1},
		{"prefix", models.AuditQueryOpts{APIKeyPrefix: "sk-test-"}, 2},
		{"future", models.AuditQueryOpts{Since: time.Now().Add(time.Hour)}, 0},
		{"limit", models.AuditQueryOpts{Limit: 1}, 1},
	}
	for _, c := range cases {
		entries, err := l.Query(ctx, c.opts)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if len(entries) != c.want {
			t.Errorf("%s: expected %d entries, got %d", c.name, c.want, len(entries))
		}
	}

	entries, _ := l.Query(ctx, models.AuditQueryOpts{FailedOnly: true})
	if entries[0].ErrorCode != "RATE_LIMIT" || entries[0].Attempts != 3 {
		t.Errorf("unexpected failed entry: %+v", entries[0])
	}
}

func TestGeneratedRequestID(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	e := sampleEntry()
	e.RequestID = ""
	e.CreatedAt = time.Time{}
	if err := l.Log(ctx, e); err != nil {
		t.Fatal(err)
	}
	entries, _ := l.Query(ctx, models.AuditQueryOpts{})
	if len(entries) != 1 || !strings.HasPrefix(entries[0].RequestID, "req_") {
		t.Errorf("expected generated request id, got %+v", entries)
	}
}

func TestBodyPolicy(t *testing.T) {
	long := strings.Repeat("x", 100)
	cases := []struct {
		name     string
		include  []string
		exclude  []string
		maxBody  int
		stored   bool
		wantReq  int
		wantResp string
	}{
		{name: "both bodies", include: []string{"prompts", "responses"}, stored: true, wantReq: 100, wantResp: "hello"},
		{name: "prompts only", include: []string{"prompts"}, stored: true, wantReq: 100},
		{name: "responses only", include: []string{"responses"}, stored: true, wantResp: "hello"},
		{name: "metadata only", stored: true},
		{name: "truncated", include: []string{"prompts"}, maxBody: 16, stored: true, wantReq: 16},
		{name: "excluded model", include: []string{"prompts"}, exclude: []string{"gpt-4o-mini"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := tempCfg(t)
			cfg.Include = c.include
			cfg.ExcludeModels = c.exclude
			cfg.MaxBodySize = c.maxBody
			l := mustNew(t, cfg)
			ctx := context.Background()

			e := sampleEntry()
			e.RequestBody = long
			if err := l.Log(ctx, e); err != nil {
				t.Fatalf("Log: %v", err)
			}

			entries, err := l.Query(ctx, models.AuditQueryOpts{})
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if !c.stored {
				if len(entries) != 0 {
					t.Fatalf("expected nothing stored, got %d", len(entries))
				}
				return
			}
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %d", len(entries))
			}
			if got := len(entries[0].RequestBody); got != c.wantReq {
				t.Errorf("request body length %d, want %d", got, c.wantReq)
			}
			if entries[0].ResponseBody != c.wantResp {
				t.Errorf("response body %q, want %q", entries[0].ResponseBody, c.wantResp)
			}
		})
	}
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 1
	l := mustNew(t, cfg)
	ctx := context.Background()

	old := sampleEntry()
	old.CreatedAt = time.Now().AddDate(0, 0, -2)
	_ = l.Log(ctx, old)
	fresh := sampleEntry()
	fresh.RequestID = "req-002"
	_ = l.Log(ctx, fresh)

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
}

func TestCleanupWithoutRetentionKeepsAll(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 0
	l := mustNew(t, cfg)
	ctx := context.Background()

	old := sampleEntry()
	old.CreatedAt = time.Now().AddDate(-1, 0, 0)
	_ = l.Log(ctx, old)

	deleted, err := l.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected nothing deleted, got %d", deleted)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	_ = l.Log(ctx, sampleEntry())
	e2 := sampleEntry()
	e2.RequestID = "req-002"
	e2.Success = false
	_ = l.Log(ctx, e2)

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 group, got %d", len(stats))
	}
	s := stats[0]
	if s.Count != 2 || s.Failures != 1 || s.Provider != "openai" {
		t.Errorf("unexpected stat: %+v", s)
	}
	if s.Day != time.Now().UTC().Format(time.DateOnly) {
		t.Errorf("unexpected day %q", s.Day)
	}
}

func TestHashAPIKey(t *testing.T) {
	hash, prefix := HashAPIKey("sk-test-abc123xyz")
	if len(hash) != 64 {
		t.Errorf("expected 64-char hash, got %d", len(hash))
	}
	if prefix != "sk-test-" {
		t.Errorf("expected prefix sk-test-, got %s", prefix)
	}
	if _, p := HashAPIKey("short"); p != "short" {
		t.Errorf("expected whole short key as prefix, got %s", p)
	}
}

func TestNilLoggerSafe(t *testing.T) {
	var l *Logger
	if err := l.Log(context.Background(), sampleEntry()); err != nil {
		t.Errorf("nil logger should be safe: %v", err)
	}
}

func TestNewInvalidPath(t *testing.T) {
	cfg := models.AuditConfig{
		Enabled: true,
		DBPath:  filepath.Join(os.TempDir(), "nonexistent", "deep", "path", "audit.db"),
	}
	_, err := New(cfg)
	if err == nil {
		t.Error("expected error for invalid path")
	}
}
