package analysis

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	fetchUserAgent = "Mozilla/5.0 (compatible; ReadingQueue/1.0)"
	fetchAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	fetchTimeout   = 15 * time.Second
)

// Fetcher retrieves a page and reduces it to readable text.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// HTTPFetcher fetches pages over HTTP.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher returns a fetcher bounded by timeout. A zero timeout uses 15s.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = fetchTimeout
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", fetchUserAgent).
		SetHeader("Accept", fetchAccept)
	return &HTTPFetcher{client: c}
}

// Fetch downloads rawURL and extracts its title, description and text.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return Page{}, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}
	return ParseHTML(resp.String()), nil
}
