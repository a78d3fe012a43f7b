// internal/common/http/client.go
package http

import (
	"io"
	"net/http"
	"time"
)

// maxErrorBody caps how much of an upstream error body is kept for error details.
const maxErrorBody = 64 << 10

// Doer is satisfied by *http.Client and *Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "docgen-workers",
	}
}

// Wrap reuses an existing *http.Client, e.g. the one of an httptest server.
func Wrap(c *http.Client) *Client {
	return &Client{httpClient: c, userAgent: "docgen-workers"}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

// ReadBody drains resp.Body as text, bounded so a large error page cannot blow up a log line.
func ReadBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(b)
}
