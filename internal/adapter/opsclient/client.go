// Package opsclient implements the ops-data source port over the airline's
// operational data HTTP service, with a tiered cache in front of lookups.
package opsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/skywise-ai/irops/internal/domain"
	"github.com/skywise-ai/irops/internal/port/cache"
	"github.com/skywise-ai/irops/internal/port/opsdata"
	"github.com/skywise-ai/irops/internal/resilience"
)

// Client fetches operational records over HTTP. Lookup results are cached;
// queries always go to the service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      cache.Cache // optional
	cacheTTL   time.Duration
}

// New creates an ops-data client. cache may be nil to disable caching.
func New(baseURL, apiKey string, timeout time.Duration, c cache.Cache, cacheTTL time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      c,
		cacheTTL:   cacheTTL,
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Lookup returns one record by kind and key.
func (c *Client) Lookup(ctx context.Context, kind, key string) (*opsdata.Record, error) {
	cacheKey := "ops:" + kind + ":" + key
	if c.cache != nil {
		if data, ok, err := c.cache.Get(ctx, cacheKey); err == nil && ok {
			var rec opsdata.Record
			if err := json.Unmarshal(data, &rec); err == nil {
				return &rec, nil
			}
		}
	}

	body, status, err := c.doRequest(ctx, fmt.Sprintf("/v1/%s/%s", url.PathEscape(kind), url.PathEscape(key)))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, key)
	}

	rec := &opsdata.Record{Kind: kind, Key: key, Data: body}
	if c.cache != nil {
		if data, err := json.Marshal(rec); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.cacheTTL)
		}
	}
	return rec, nil
}

// Query returns records of one kind matching the given parameters.
func (c *Client) Query(ctx context.Context, kind string, params map[string]string) ([]opsdata.Record, error) {
	q := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, params[k])
	}

	path := fmt.Sprintf("/v1/%s", url.PathEscape(kind))
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	body, status, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	var out struct {
		Records []opsdata.Record `json:"records"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal ops-data query: %w", err)
	}
	return out.Records, nil
}

func (c *Client) doRequest(ctx context.Context, path string) (data []byte, status int, err error) {
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		status = resp.StatusCode
		// 404 is a domain answer, not a service failure; it must not trip
		// the breaker.
		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("ops-data API error %d: %s", resp.StatusCode, string(body))
		}
		data = body
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, 0, err
	}
	return data, status, nil
}
