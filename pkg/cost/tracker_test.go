package cost

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/tracker"
)

func TestTrackUsagePricesFromCatalog(t *testing.T) {
	tr := New(nil)
	rec := tr.TrackUsage("claude", "claude-3-5-haiku-20241022", 1_000_000, 1_000_000, models.FeatureURLAnalysis)

	assert.True(t, strings.HasPrefix(rec.ID, "usage_"))
	assert.InDelta(t, 4.8, rec.Cost, 1e-9)
	assert.Equal(t, "url-analysis", rec.Feature)
	assert.Equal(t, 1, tr.RecordCount())
	assert.InDelta(t, 4.8, tr.CurrentSpend(), 1e-9)

	byKey := tr.TrackUsage("openai", "gpt-4o-mini", 1_000_000, 0, "")
	assert.InDelta(t, 0.15, byKey.Cost, 1e-9)
}

func TestTrackUsageUnknownModelIsFree(t *testing.T) {
	tr := New(nil)
	rec := tr.TrackUsage("openai", "gpt-99", 1000, 1000, "")
	assert.Zero(t, rec.Cost)
	assert.Equal(t, 1, tr.RecordCount())
}

func TestTrackUsageEmitsCostUpdated(t *testing.T) {
	em := events.New()
	var got []events.CostUpdated
	events.Subscribe(em, func(p events.CostUpdated) { got = append(got, p) })

	tr := New(models.Float(10), WithEmitter(em))
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")

	require.Len(t, got, 2)
	assert.InDelta(t, 1.6, got[1].TotalSpend, 1e-9)
	require.NotNil(t, got[1].BudgetLimit)
	assert.Equal(t, 10.0, *got[1].BudgetLimit)
}

func TestBudgetQueries(t *testing.T) {
	tr := New(nil)
	_, ok := tr.RemainingBudget()
	assert.False(t, ok)
	_, ok = tr.BudgetUsagePercent()
	assert.False(t, ok)
	assert.False(t, tr.IsBudgetExceeded())

	tr.SetBudgetLimit(models.Float(1))
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")

	rem, ok := tr.RemainingBudget()
	require.True(t, ok)
	assert.InDelta(t, 0.2, rem, 1e-9)
	pct, _ := tr.BudgetUsagePercent()
	assert.InDelta(t, 80, pct, 1e-9)
	assert.False(t, tr.IsBudgetExceeded())

	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")
	rem, _ = tr.RemainingBudget()
	assert.Zero(t, rem)
	pct, _ = tr.BudgetUsagePercent()
	assert.InDelta(t, 160, pct, 1e-9, "percentage is not clamped")
	assert.True(t, tr.IsBudgetExceeded())

	tr.SetBudgetLimit(models.Float(0))
	assert.False(t, tr.IsBudgetExceeded(), "zero means no budget")
	assert.Nil(t, New(nil).BudgetLimit())
}

func TestSpendForPeriodIsInclusive(t *testing.T) {
	base := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	clock := base
	tr := New(nil)
	tr.now = func() time.Time { return clock }

	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")
	clock = base.Add(time.Hour)
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")
	clock = base.Add(2 * time.Hour)
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")

	assert.InDelta(t, 2.4, tr.SpendForPeriod(base, base.Add(2*time.Hour)), 1e-9)
	assert.InDelta(t, 0.8, tr.SpendForPeriod(base.Add(time.Hour), base.Add(time.Hour)), 1e-9)
	assert.Zero(t, tr.SpendForPeriod(base.Add(3*time.Hour), base.Add(4*time.Hour)))
}

func TestCurrentMonthSpend(t *testing.T) {
	clock := time.Date(2025, 4, 30, 23, 0, 0, 0, time.UTC)
	tr := New(nil)
	tr.now = func() time.Time { return clock }
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, "")

	clock = time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	tr.TrackUsage("openai", "gpt-4o-mini", 1_000_000, 0, "")

	assert.InDelta(t, 0.15, tr.CurrentMonthSpend(), 1e-9)
}

func TestHistoryNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	i := 0
	tr := New(nil)
	tr.now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Minute) }

	a := tr.TrackUsage("claude", "m", 1, 1, "")
	b := tr.TrackUsage("claude", "m", 1, 1, "")
	c := tr.TrackUsage("claude", "m", 1, 1, "")

	all := tr.History(0)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	top := tr.History(2)
	assert.Len(t, top, 2)
	assert.Equal(t, c.ID, top[0].ID)
	assert.Len(t, tr.History(10), 3)
}

func TestSummary(t *testing.T) {
	tr := New(nil)
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 1_000_000, "")
	tr.TrackUsage("claude", "claude-sonnet-4.5", 100, 200, "")
	tr.TrackUsage("openai", "gpt-4o-mini", 1_000_000, 0, "")

	s := tr.Summary()
	assert.Equal(t, 3, s.RecordCount)
	assert.Equal(t, 2_000_100, s.TotalInputTokens)
	assert.Equal(t, 1_000_200, s.TotalOutputTokens)
	assert.InDelta(t, 4.8+0.0003+0.003+0.15, s.TotalCost, 1e-9)
	assert.InDelta(t, 4.8033, s.ByProvider["claude"], 1e-9)
	assert.InDelta(t, 0.15, s.ByModel["gpt-4o-mini"], 1e-9)

	empty := New(nil).Summary()
	assert.NotNil(t, empty.ByProvider)
	assert.Zero(t, empty.TotalCost)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := New(nil)
	src.TrackUsage("claude", "claude-haiku", 10, 20, models.FeatureTagSuggestion)
	src.TrackUsage("gemini", "gemini-2.0-flash", 30, 40, "")

	data, err := src.ExportRecords()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"inputTokens": 10`)

	dst := New(nil)
	dst.TrackUsage("grok", "grok-4-1-fast", 1, 1, "")
	require.NoError(t, dst.ImportRecords(data))

	assert.Equal(t, 2, dst.RecordCount())
	assert.InDelta(t, src.CurrentSpend(), dst.CurrentSpend(), 1e-12)
	h := dst.History(0)
	assert.True(t, h[0].Timestamp.Equal(src.History(0)[0].Timestamp))
}

func TestImportMalformedLeavesLedger(t *testing.T) {
	tr := New(nil)
	tr.TrackUsage("claude", "claude-haiku", 1, 1, "")

	err := tr.ImportRecords([]byte(`{not json`))
	assert.Error(t, err)
	assert.Equal(t, 1, tr.RecordCount())
}

func TestClear(t *testing.T) {
	tr := New(nil)
	tr.TrackUsage("claude", "claude-haiku", 1, 1, "")
	tr.Clear()
	assert.Zero(t, tr.RecordCount())
	assert.Zero(t, tr.CurrentSpend())
}

func TestPersistsThroughStore(t *testing.T) {
	store, err := tracker.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tr := New(nil, WithStore(store))
	tr.TrackUsage("claude", "claude-haiku", 1_000_000, 0, models.FeatureURLAnalysis)
	tr.TrackUsage("openai", "gpt-4o-mini", 1_000_000, 0, "")

	restored := New(nil, WithStore(store))
	require.NoError(t, restored.Load(context.Background()))
	assert.Equal(t, 2, restored.RecordCount())
	assert.InDelta(t, 0.95, restored.CurrentSpend(), 1e-9)

	restored.Clear()
	again := New(nil, WithStore(store))
	require.NoError(t, again.Load(context.Background()))
	assert.Zero(t, again.RecordCount())
}

type failingStore struct{}

func (failingStore) Record(context.Context, models.UsageRecord) error { return errors.New("disk full") }
func (failingStore) All(context.Context) ([]models.UsageRecord, error) {
	return nil, errors.New("disk full")
}
func (failingStore) Replace(context.Context, []models.UsageRecord) error {
	return errors.New("disk full")
}
func (failingStore) Clear(context.Context) error { return errors.New("disk full") }

func TestStoreFailuresAreNotFatal(t *testing.T) {
	tr := New(nil, WithStore(failingStore{}))
	rec := tr.TrackUsage("claude", "claude-haiku", 1, 1, "")
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 1, tr.RecordCount())
	assert.Error(t, tr.Load(context.Background()))
}
