// Package places is a thin wrapper around an external nearbysearch Places
// API. It formats a geo-query, awaits the JSON body, and truncates the
// results array to a caller-specified limit while leaving every other
// top-level field - including its original key order - untouched.
package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// requestTimeout bounds the outbound HTTP call, the one suspension point in
// this package, so a stalled provider cannot hang the handler goroutine
// that invoked it indefinitely.
const requestTimeout = 5 * time.Second

// Client issues nearbysearch queries against a configured Places provider.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New builds a Client with a bounded-timeout http.Client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: requestTimeout},
	}
}

// Search fetches nearby places around center within radiusMeters, and
// truncates the results array of the returned document to at most limit
// entries. All other top-level fields of the provider's JSON, and their
// relative order, are preserved unmodified.
func (c *Client) Search(ctx context.Context, center string, radiusMeters int, limit int) (Document, error) {
	query := url.Values{}
	query.Set("location", center)
	query.Set("radius", fmt.Sprintf("%d", radiusMeters))
	query.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building places request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling places api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading places response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places api returned status %d", resp.StatusCode)
	}

	doc, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding places response: %w", err)
	}

	return doc.TruncateResults(limit), nil
}
