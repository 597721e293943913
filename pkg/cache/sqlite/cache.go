package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/readq/pkg/models"
)

// Cache is an exact-match prompt cache backed by SQLite. Only successful
// responses are stored.
type Cache struct {
	db     *sql.DB
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	now    func() time.Time
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS prompt_cache (
	prompt_hash TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	response BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompt_cache_expiry ON prompt_cache(expires_at);
`

// New creates a Cache with the given database path and entry TTL.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Key is everything that determines a generation result.
type Key struct {
	Provider    models.ProviderType `json:"provider"`
	Model       string              `json:"model"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Messages    []models.Message    `json:"messages"`
}

// HashPrompt computes a SHA-256 hash of the key.
func HashPrompt(k Key) string {
	data, _ := json.Marshal(k)
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// Get returns the cached response for hash. Expired or missing entries are misses.
func (c *Cache) Get(ctx context.Context, hash string) (models.ProviderResponse, bool) {
	var (
		raw       []byte
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT response, expires_at FROM prompt_cache WHERE prompt_hash = ?`,
		hash,
	).Scan(&raw, &expiresAt)
	if err != nil {
		c.misses.Add(1)
		return models.ProviderResponse{}, false
	}

	if c.now().UnixMilli() > expiresAt {
		c.misses.Add(1)
		return models.ProviderResponse{}, false
	}

	var resp models.ProviderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.misses.Add(1)
		return models.ProviderResponse{}, false
	}
	c.hits.Add(1)
	return resp, true
}

// Put stores a successful response under hash. Failed responses are ignored.
func (c *Cache) Put(ctx context.Context, hash string, provider models.ProviderType, model string, resp models.ProviderResponse) error {
	if !resp.Success {
		return nil
	}
	resp.Cached = false
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	now := c.now().UTC()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO prompt_cache (prompt_hash, provider, model, response, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		hash, string(provider), model, raw, now, now.Add(c.ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Recent lists the newest entries without their bodies.
func (c *Cache) Recent(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT prompt_hash, provider, model, created_at, expires_at FROM prompt_cache
		 ORDER BY expires_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("cache list: %w", err)
	}
	defer rows.Close()

	var out []models.CacheEntry
	for rows.Next() {
		var (
			e       models.CacheEntry
			expires int64
		)
		if err := rows.Scan(&e.PromptHash, &e.Provider, &e.Model, &e.CreatedAt, &expires); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.TTL = time.UnixMilli(expires).Sub(e.CreatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats returns cache performance metrics.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompt_cache`).Scan(&count); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries
// are removed. It returns the number of entries deleted.
func (c *Cache) Clear(ctx context.Context, expiredOnly bool) (int64, error) {
	query := `DELETE FROM prompt_cache`
	var args []any
	if expiredOnly {
		query += ` WHERE expires_at < ?`
		args = append(args, c.now().UnixMilli())
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
