// Package httpclient fetches JSON resources from provider REST APIs with retries.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/daszybak/omniverse_markets/pkg/retry"
)

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 30 * time.Second

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsRetryable is true for server errors and rate limiting.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	header     http.Header
	retry      retry.Policy
}

type Option func(*Client)

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHeader adds a static header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

func WithRetry(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		header:     http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Retryable == nil {
		c.retry.Retryable = Retryable
	}
	return c
}

// Retryable retries transport failures and retryable status codes, but not
// cancellations or client errors.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return true
}

// GetResource GETs baseURL+endpoint and decodes the JSON body into T.
// A response whose status isn't in okStatuses is a *StatusError.
func GetResource[T any](ctx context.Context, c *Client, endpoint string, query url.Values, okStatuses []int) (T, error) {
	fullURL := c.baseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	body, err := retry.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, fullURL, okStatuses)
	})
	var res T
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("couldn't decode response from %s: %w", fullURL, err)
	}
	return res, nil
}

func (c *Client) get(ctx context.Context, fullURL string, okStatuses []int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("couldn't read response: %w", err)
	}

	if !slices.Contains(okStatuses, resp.StatusCode) {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: fullURL, Body: body}
	}
	return body, nil
}
