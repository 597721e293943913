package models

import "time"

// CacheEntry describes one cached generation result.
type CacheEntry struct {
	PromptHash string        `json:"prompt_hash"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	Response   []byte        `json:"response,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the entry is past its TTL at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// CacheStats reports prompt cache counters.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// HitRate returns hits as a percentage of lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
