package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/models"
)

type recordingAuditor struct {
	entries []models.AuditEntry
	err     error
}

func (r *recordingAuditor) Log(_ context.Context, e models.AuditEntry) error {
	r.entries = append(r.entries, e)
	return r.err
}

func TestAuditorObservesAndForwards(t *testing.T) {
	c := New()
	next := &recordingAuditor{err: errors.New("disk full")}
	a := c.Auditor(next)

	err := a.Log(context.Background(), models.AuditEntry{Provider: "openai", Model: "gpt-4o-mini", Success: true, TotalTokens: 120, LatencyMs: 800})
	assert.EqualError(t, err, "disk full")
	require.NoError(t, c.Auditor(nil).Log(context.Background(), models.AuditEntry{Provider: "openai", Model: "gpt-4o-mini", Success: true, Cached: true}))
	require.NoError(t, c.Auditor(nil).Log(context.Background(), models.AuditEntry{Provider: "claude", Model: "claude-haiku", ErrorCode: "RATE_LIMIT"}))

	assert.Len(t, next.entries, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("openai", "gpt-4o-mini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("openai", "gpt-4o-mini", "cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.calls.WithLabelValues("claude", "claude-haiku", "failed")))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.tokens.WithLabelValues("openai", "gpt-4o-mini")))
}

func TestAttachFollowsEvents(t *testing.T) {
	c := New()
	e := events.New()
	detach := c.Attach(e)

	e.Emit(events.AnalysisStarted{ItemID: "a"})
	e.Emit(events.AnalysisFailed{ItemID: "a", Error: "boom"})
	e.Emit(events.CostUpdated{TotalSpend: 1.25, BudgetLimit: models.Float(5)})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.analyses.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analyses.WithLabelValues("failed")))
	assert.Equal(t, 1.25, testutil.ToFloat64(c.spend))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.limit))

	detach()
	e.Emit(events.AnalysisStarted{ItemID: "b"})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analyses.WithLabelValues("started")))
	assert.Zero(t, e.ListenerCount(events.AnalysisStartedEvent))
}

func TestHandler(t *testing.T) {
	c := New()
	c.SetSpend(0.5, nil)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "readq_cost_total_spend_usd 0.5"), string(body))
}
