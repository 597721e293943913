package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/readq/pkg/models"
)

// Tracker persists the usage ledger.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// All returns every record, oldest first.
	All(ctx context.Context) ([]models.UsageRecord, error)
	// Since returns records with a timestamp at or after since, oldest first.
	Since(ctx context.Context, since time.Time) ([]models.UsageRecord, error)
	// Totals returns usage grouped by provider, model and feature.
	Totals(ctx context.Context, since time.Time) ([]models.UsageTotals, error)
	// Replace swaps the stored ledger for records.
	Replace(ctx context.Context, records []models.UsageRecord) error
	// Clear deletes every record.
	Clear(ctx context.Context) error
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_time ON usage_records(created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	// Ledgers written before feature routing have no feature column.
	if !columnExists(db, "usage_records", "feature") {
		if _, err := db.Exec(`ALTER TABLE usage_records ADD COLUMN feature TEXT NOT NULL DEFAULT ''`); err != nil {
			db.Close()
			return nil, fmt.Errorf("add feature column: %w", err)
		}
	}

	return &SQLiteTracker{db: db}, nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if name == column {
			return true
		}
	}
	return false
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, rec models.UsageRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO usage_records (id, provider, model, feature, input_tokens, output_tokens, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Provider, rec.Model, rec.Feature, rec.InputTokens, rec.OutputTokens, rec.Cost, rec.Timestamp.UTC(),
	)
	return err
}

// Record stores a usage record. A record with an existing id replaces it.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if err := insert(ctx, t.db, rec); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// All returns every record, oldest first.
func (t *SQLiteTracker) All(ctx context.Context) ([]models.UsageRecord, error) {
	return t.Since(ctx, time.Time{})
}

// Since returns records created at or after since, oldest first.
func (t *SQLiteTracker) Since(ctx context.Context, since time.Time) ([]models.UsageRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, provider, model, feature, input_tokens, output_tokens, cost, created_at
		 FROM usage_records WHERE created_at >= ? ORDER BY created_at ASC, rowid ASC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		if err := rows.Scan(&r.ID, &r.Provider, &r.Model, &r.Feature, &r.InputTokens, &r.OutputTokens, &r.Cost, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Totals returns usage since the given time grouped by provider, model and feature.
func (t *SQLiteTracker) Totals(ctx context.Context, since time.Time) ([]models.UsageTotals, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT provider, model, feature, COUNT(*), SUM(input_tokens), SUM(output_tokens), SUM(cost)
		 FROM usage_records WHERE created_at >= ?
		 GROUP BY provider, model, feature ORDER BY provider, model, feature`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("usage totals: %w", err)
	}
	defer rows.Close()

	var totals []models.UsageTotals
	for rows.Next() {
		var s models.UsageTotals
		if err := rows.Scan(&s.Provider, &s.Model, &s.Feature, &s.RequestCount, &s.InputTokens, &s.OutputTokens, &s.Cost); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals = append(totals, s)
	}
	return totals, rows.Err()
}

// Replace swaps the stored ledger for records in one transaction.
func (t *SQLiteTracker) Replace(ctx context.Context, records []models.UsageRecord) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace usage: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM usage_records`); err != nil {
		return fmt.Errorf("replace usage: %w", err)
	}
	for _, rec := range records {
		if err := insert(ctx, tx, rec); err != nil {
			return fmt.Errorf("replace usage: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace usage: %w", err)
	}
	return nil
}

// Clear deletes every record.
func (t *SQLiteTracker) Clear(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, `DELETE FROM usage_records`); err != nil {
		return fmt.Errorf("clear usage: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
