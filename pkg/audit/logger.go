package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/pario-ai/readq/pkg/models"
)

// Logger writes and queries audit entries in a dedicated SQLite database.
type Logger struct {
	db      *sql.DB
	cfg     models.AuditConfig
	log     zerolog.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	include map[string]bool
	exclude map[string]bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the logger used by the retention loop.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Logger) { a.log = l }
}

// New opens the audit SQLite database, creates the schema and starts the
// hourly retention loop.
func New(cfg models.AuditConfig, opts ...Option) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:      db,
		cfg:     cfg,
		log:     zerolog.Nop(),
		done:    make(chan struct{}),
		include: set(cfg.Include),
		exclude: set(cfg.ExcludeModels),
	}
	for _, o := range opts {
		o(l)
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func set(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			request_id     TEXT PRIMARY KEY,
			feature        TEXT NOT NULL DEFAULT '',
			provider       TEXT NOT NULL,
			model          TEXT NOT NULL,
			api_key_hash   TEXT NOT NULL,
			api_key_prefix TEXT NOT NULL,
			request_body   TEXT,
			response_body  TEXT,
			success        INTEGER NOT NULL,
			error_code     TEXT NOT NULL DEFAULT '',
			cached         INTEGER NOT NULL DEFAULT 0,
			attempts       INTEGER NOT NULL DEFAULT 1,
			total_tokens   INTEGER NOT NULL DEFAULT 0,
			latency_ms     INTEGER NOT NULL DEFAULT 0,
			day            TEXT NOT NULL,
			created_at     DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_model ON audit_log(model)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_prefix ON audit_log(api_key_prefix)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRequestID returns a fresh audit request id.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// Log inserts an audit entry, respecting include/exclude configuration.
// Bodies are dropped unless "prompts" or "responses" is included.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if l.exclude[entry.Model] {
		return nil
	}
	if entry.RequestID == "" {
		entry.RequestID = NewRequestID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	created := entry.CreatedAt.UTC()

	reqBody := entry.RequestBody
	respBody := entry.ResponseBody
	if !l.include["prompts"] {
		reqBody = ""
	}
	if !l.include["responses"] {
		respBody = ""
	}
	if l.cfg.MaxBodySize > 0 {
		reqBody = truncate(reqBody, l.cfg.MaxBodySize)
		respBody = truncate(respBody, l.cfg.MaxBodySize)
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO audit_log
		(request_id, feature, provider, model, api_key_hash, api_key_prefix,
		 request_body, response_body, success, error_code, cached, attempts,
		 total_tokens, latency_ms, day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.Feature, entry.Provider, entry.Model,
		entry.APIKeyHash, entry.APIKeyPrefix,
		reqBody, respBody, entry.Success, entry.ErrorCode, entry.Cached, entry.Attempts,
		entry.TotalTokens, entry.LatencyMs, created.Format(time.DateOnly), created,
	)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Query returns audit entries matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, feature, provider, model, api_key_hash, api_key_prefix,
		request_body, response_body, success, error_code, cached, attempts,
		total_tokens, latency_ms, created_at
		FROM audit_log WHERE 1=1`
	var args []any

	filter := func(clause string, v any) {
		q += " AND " + clause
		args = append(args, v)
	}
	if opts.RequestID != "" {
		filter("request_id = ?", opts.RequestID)
	}
	if opts.Provider != "" {
		filter("provider = ?", opts.Provider)
	}
	if opts.Model != "" {
		filter("model = ?", opts.Model)
	}
	if opts.Feature != "" {
		filter("feature = ?", opts.Feature)
	}
	if !opts.Since.IsZero() {
		filter("created_at >= ?", opts.Since.UTC())
	}
	if opts.APIKeyPrefix != "" {
		filter("api_key_prefix = ?", opts.APIKeyPrefix)
	}
	if opts.FailedOnly {
		q += " AND success = 0"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var (
			e              models.AuditEntry
			reqBody, rBody sql.NullString
		)
		if err := rows.Scan(
			&e.RequestID, &e.Feature, &e.Provider, &e.Model, &e.APIKeyHash, &e.APIKeyPrefix,
			&reqBody, &rBody, &e.Success, &e.ErrorCode, &e.Cached, &e.Attempts,
			&e.TotalTokens, &e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		e.RequestBody = reqBody.String
		e.ResponseBody = rBody.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns call and failure counts grouped by provider, model and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT provider, model, day, COUNT(*), SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END)
		 FROM audit_log GROUP BY provider, model, day ORDER BY day DESC, provider, model`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		if err := rows.Scan(&s.Provider, &s.Model, &s.Day, &s.Count, &s.Failures); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes entries older than the configured retention period.
// A non-positive retention keeps everything.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			n, err := l.Cleanup(context.Background())
			if err != nil {
				l.log.Warn().Err(err).Msg("audit retention")
				continue
			}
			if n > 0 {
				l.log.Info().Int64("removed", n).Msg("audit retention")
			}
		}
	}
}

// HashAPIKey returns the SHA-256 hex hash and 8-char prefix for an API key.
func HashAPIKey(key string) (hash, prefix string) {
	h := sha256.Sum256([]byte(key))
	hash = hex.EncodeToString(h[:])
	prefix = key
	if len(key) > 8 {
		prefix = key[:8]
	}
	return hash, prefix
}
