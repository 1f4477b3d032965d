// Package dataset implements the external data-source contract —
// fetchDataset(topic) -> Dataset | null — behind a TTL cache.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
)

// Dataset is the value object a fetch call returns.
type Dataset struct {
	Topic      string
	Highlights []string
	FetchedAt  time.Time
	Source     string
}

// RandomHighlight returns one highlight, or empty string if none.
func (d *Dataset) RandomHighlight(r func(n int) int) string {
	if d == nil || len(d.Highlights) == 0 {
		return ""
	}
	return d.Highlights[r(len(d.Highlights))]
}

// Source is the fetchDataset(topic) -> Dataset | null contract.
// A nil Dataset with a nil error means "no data available for topic" —
// distinct from a transient fetch error, which fails the in-flight
// action and records the decision as failed.
type Source interface {
	FetchDataset(ctx context.Context, topic string) (*Dataset, error)
}

// HTTPSource fetches datasets from a NASA-style REST API and caches
// results for cacheTTL.
type HTTPSource struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
	cache   *cache.Cache
}

// NewHTTPSource constructs a caching dataset source. cacheTTL of zero
// disables expiry: entries never expire, and the cleanupInterval
// janitor removes only expired entries.
func NewHTTPSource(baseURL, apiKey string, cacheTTL, cleanupInterval time.Duration) *HTTPSource {
	return &HTTPSource{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: baseURL,
		APIKey:  apiKey,
		cache:   cache.New(cacheTTL, cleanupInterval),
	}
}

type apiResponse struct {
	Highlights []string `json:"highlights"`
}

// FetchDataset implements Source. Cache hits never touch the network.
func (h *HTTPSource) FetchDataset(ctx context.Context, topic string) (*Dataset, error) {
	if cached, ok := h.cache.Get(topic); ok {
		ds := cached.(Dataset)
		return &ds, nil
	}

	url := fmt.Sprintf("%s?topic=%s", h.BaseURL, topic)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dataset: build request: %w", err)
	}
	if h.APIKey != "" {
		req.Header.Set("X-Api-Key", h.APIKey)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataset: fetch %s: %w", topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("dataset: %s returned %d", topic, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dataset: read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("dataset: malformed response for %s: %w", topic, err)
	}

	ds := Dataset{Topic: topic, Highlights: parsed.Highlights, FetchedAt: time.Now(), Source: h.BaseURL}
	h.cache.Set(topic, ds, cache.DefaultExpiration)
	return &ds, nil
}
