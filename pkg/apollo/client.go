// Package apollo provides a client for the Apollo.io people-search API,
// used as the prospect discovery source.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Apollo operations used by ingestion.
type Client interface {
	// SearchPeople runs one page of a people search.
	SearchPeople(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is one page of a people search.
type SearchRequest struct {
	Titles    []string `json:"person_titles,omitempty"`
	Locations []string `json:"person_locations,omitempty"`
	Keywords  []string `json:"q_organization_keyword_tags,omitempty"`
	Page      int      `json:"page"`
	PerPage   int      `json:"per_page"`
}

// SearchResponse is the parsed people-search response.
type SearchResponse struct {
	People     []Person   `json:"people"`
	Pagination Pagination `json:"pagination"`
}

// Person is one search hit.
type Person struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Email        string        `json:"email"`
	Organization *Organization `json:"organization"`
}

// Organization is the person's company record.
type Organization struct {
	Name          string `json:"name"`
	PrimaryDomain string `json:"primary_domain"`
}

// Pagination reports the search cursor position.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// Option configures the Apollo client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apollo client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.apollo.io/api/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures, up to 5 attempts with the delay capped at 15s.
func (c *httpClient) retryDo(ctx context.Context, build func() (*http.Request, error)) ([]byte, int, error) {
	const (
		maxAttempts = 5
		maxBackoff  = 15 * time.Second
	)
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := build()
		if err != nil {
			return nil, 0, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, resp.StatusCode, eris.Wrap(readErr, "apollo: read response body")
			}
			if !retryableStatusCode(resp.StatusCode) {
				return body, resp.StatusCode, nil
			}
			lastErr = eris.Errorf("apollo: status %d: %s", resp.StatusCode, string(body))
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return nil, 0, lastErr
}

func (c *httpClient) SearchPeople(ctx context.Context, sr SearchRequest) (*SearchResponse, error) {
	payload, err := json.Marshal(sr)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal search request")
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/mixed_people/search", bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "apollo: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", c.apiKey)
		return req, nil
	}

	body, statusCode, err := c.retryDo(ctx, build)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: search request failed")
	}

	if statusCode != http.StatusOK {
		return nil, eris.Errorf("apollo: unexpected status %d: %s", statusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal search response")
	}

	return &result, nil
}
