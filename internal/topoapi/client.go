// Package topoapi is a thin HTTP client for the topology controller's
// interface administration endpoints. The loop engine's disable action
// and its stop-side re-enable go through here.
package topoapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds each control request.
const DefaultTimeout = 10 * time.Second

// Client calls the topology controller.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. Tests pass the
// httptest server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a client for the controller at baseURL, e.g.
// "http://127.0.0.1:8181".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnableInterface administratively enables an interface.
func (c *Client) EnableInterface(ctx context.Context, interfaceID string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/interfaces/%s/enable",
		url.PathEscape(interfaceID)))
}

// DisableInterface administratively disables an interface.
func (c *Client) DisableInterface(ctx context.Context, interfaceID string) error {
	return c.post(ctx, fmt.Sprintf("/api/v1/interfaces/%s/disable",
		url.PathEscape(interfaceID)))
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request %s: status %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
