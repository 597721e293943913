// Package cost keeps the ledger of billed generation calls and reports spend
// against the configured budget.
package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pario-ai/readq/pkg/budget"
	"github.com/pario-ai/readq/pkg/events"
	"github.com/pario-ai/readq/pkg/models"
	"github.com/pario-ai/readq/pkg/registry"
)

// Store persists ledger records. tracker.SQLiteTracker satisfies it.
type Store interface {
	Record(ctx context.Context, rec models.UsageRecord) error
	All(ctx context.Context) ([]models.UsageRecord, error)
	Replace(ctx context.Context, records []models.UsageRecord) error
	Clear(ctx context.Context) error
}

// Tracker is the in-memory usage ledger. It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	records []models.UsageRecord
	limit   *float64

	emitter *events.Emitter
	store   Store
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithEmitter publishes cost:updated after every tracked record.
func WithEmitter(e *events.Emitter) Option {
	return func(t *Tracker) { t.emitter = e }
}

// WithStore persists records as they are tracked.
func WithStore(s Store) Option {
	return func(t *Tracker) { t.store = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// New creates an empty ledger with an optional budget limit.
func New(limit *float64, opts ...Option) *Tracker {
	t := &Tracker{logger: zerolog.Nop(), now: time.Now}
	t.limit = copyLimit(limit)
	for _, o := range opts {
		o(t)
	}
	return t
}

// Load replaces the in-memory ledger with the store's records.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	recs, err := t.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	t.mu.Lock()
	t.records = recs
	t.mu.Unlock()
	t.logger.Debug().Int("records", len(recs)).Msg("ledger loaded")
	return nil
}

// SetBudgetLimit replaces the budget limit. Nil removes it.
func (t *Tracker) SetBudgetLimit(limit *float64) {
	t.mu.Lock()
	t.limit = copyLimit(limit)
	t.mu.Unlock()
}

// BudgetLimit returns the configured limit, or nil.
func (t *Tracker) BudgetLimit() *float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyLimit(t.limit)
}

// TrackUsage appends a record priced from the model catalog. Models missing
// from the catalog cost 0. Persistence failures are logged, never returned.
func (t *Tracker) TrackUsage(provider, model string, inputTokens, outputTokens int, feature models.Feature) models.UsageRecord {
	rec := models.UsageRecord{
		ID:           "usage_" + ulid.Make().String(),
		Timestamp:    t.now().UTC(),
		Provider:     provider,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         registry.CalculateCost(model, inputTokens, outputTokens),
		Feature:      string(feature),
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	total := sum(t.records)
	limit := copyLimit(t.limit)
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Record(context.Background(), rec); err != nil {
			t.logger.Warn().Err(err).Str("id", rec.ID).Msg("persist usage record")
		}
	}

	t.logger.Debug().
		Str("provider", provider).
		Str("model", model).
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Float64("cost", rec.Cost).
		Msg("usage tracked")

	if t.emitter != nil {
		t.emitter.Emit(events.CostUpdated{TotalSpend: total, BudgetLimit: limit})
	}
	return rec
}

// CurrentSpend returns the sum of every record's cost.
func (t *Tracker) CurrentSpend() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sum(t.records)
}

// SpendForPeriod returns the cost of records with start <= timestamp <= end.
func (t *Tracker) SpendForPeriod(start, end time.Time) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := decimal.Zero
	for _, r := range t.records {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(r.Cost))
	}
	return total.InexactFloat64()
}

// CurrentMonthSpend returns the spend since the start of the UTC month.
func (t *Tracker) CurrentMonthSpend() float64 {
	now := t.now().UTC()
	return t.SpendForPeriod(budget.PeriodStart(models.BudgetMonthly, now), now)
}

// RemainingBudget returns max(0, limit - spend). ok is false without a limit.
func (t *Tracker) RemainingBudget() (remaining float64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !hasLimit(t.limit) {
		return 0, false
	}
	return max(0, *t.limit-sum(t.records)), true
}

// IsBudgetExceeded reports whether spend has reached a configured limit.
func (t *Tracker) IsBudgetExceeded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return hasLimit(t.limit) && sum(t.records) >= *t.limit
}

// BudgetUsagePercent returns spend as a percentage of the limit. It is not
// clamped, so overspend reports more than 100. ok is false without a limit.
func (t *Tracker) BudgetUsagePercent() (percent float64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !hasLimit(t.limit) {
		return 0, false
	}
	return sum(t.records) / *t.limit * 100, true
}

// History returns records newest first. A limit <= 0 returns all of them.
func (t *Tracker) History(limit int) []models.UsageRecord {
	t.mu.RLock()
	out := make([]models.UsageRecord, len(t.records))
	copy(out, t.records)
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Summary aggregates the ledger.
func (t *Tracker) Summary() models.CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	byProvider := map[string]decimal.Decimal{}
	byModel := map[string]decimal.Decimal{}
	s := models.CostSummary{
		TotalCost:   sum(t.records),
		RecordCount: len(t.records),
		ByProvider:  map[string]float64{},
		ByModel:     map[string]float64{},
	}
	for _, r := range t.records {
		c := decimal.NewFromFloat(r.Cost)
		byProvider[r.Provider] = byProvider[r.Provider].Add(c)
		byModel[r.Model] = byModel[r.Model].Add(c)
		s.TotalInputTokens += r.InputTokens
		s.TotalOutputTokens += r.OutputTokens
	}
	for k, v := range byProvider {
		s.ByProvider[k] = v.InexactFloat64()
	}
	for k, v := range byModel {
		s.ByModel[k] = v.InexactFloat64()
	}
	return s
}

// ExportRecords renders the ledger as indented JSON.
func (t *Tracker) ExportRecords() ([]byte, error) {
	t.mu.RLock()
	recs := make([]models.UsageRecord, len(t.records))
	copy(recs, t.records)
	t.mu.RUnlock()
	return json.MarshalIndent(recs, "", "  ")
}

// ImportRecords replaces the ledger with records decoded from data. Malformed
// input is logged and leaves the ledger untouched.
func (t *Tracker) ImportRecords(data []byte) error {
	var recs []models.UsageRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		t.logger.Error().Err(err).Msg("failed to import cost records")
		return fmt.Errorf("import records: %w", err)
	}
	if recs == nil {
		recs = []models.UsageRecord{}
	}

	t.mu.Lock()
	t.records = recs
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Replace(context.Background(), recs); err != nil {
			t.logger.Warn().Err(err).Msg("persist imported records")
		}
	}
	return nil
}

// Clear drops every record.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.records = nil
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.Clear(context.Background()); err != nil {
			t.logger.Warn().Err(err).Msg("clear persisted records")
		}
	}
}

// RecordCount returns the number of records in the ledger.
func (t *Tracker) RecordCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func sum(recs []models.UsageRecord) float64 {
	total := decimal.Zero
	for _, r := range recs {
		total = total.Add(decimal.NewFromFloat(r.Cost))
	}
	return total.InexactFloat64()
}

func hasLimit(l *float64) bool { return l != nil && *l > 0 }

func copyLimit(l *float64) *float64 {
	if l == nil {
		return nil
	}
	v := *l
	return &v
}
