// Package httpclient issues the outbound HTTP calls for dispatch units and
// callbacks. One Client is shared per process; the underlying connection
// pool is reused across tasks.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout is the per-request total timeout.
const DefaultTimeout = 60 * time.Second

// bodyMethods are the methods that carry a JSON body. A GET with a non-empty
// body has the body dropped at the transport.
var bodyMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Response is the outcome of a completed HTTP exchange. Any status code
// counts as completion; transport failures are returned as errors instead.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client wraps a shared http.Client. No retries happen at this layer.
type Client struct {
	hc *http.Client
}

// New creates a client with the given per-request timeout.
// A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		hc: &http.Client{Timeout: timeout},
	}
}

// emptyBody reports whether a stored body carries no payload. The store
// normalizes an absent body to `{}`, so both spellings mean "no body".
func emptyBody(b json.RawMessage) bool {
	s := strings.TrimSpace(string(b))
	return s == "" || s == "{}" || s == "null"
}

// Do issues one HTTP request. header is applied verbatim; body is attached
// only when non-empty and the method is one of POST, PUT, PATCH, DELETE.
func (c *Client) Do(ctx context.Context, method, url string, header map[string]string, body json.RawMessage) (*Response, error) {
	var reader io.Reader
	if !emptyBody(body) && bodyMethods[method] {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// PostJSON marshals v and POSTs it to url with optional extra headers.
// The response body is discarded; only transport and encoding errors surface.
func (c *Client) PostJSON(ctx context.Context, url string, header map[string]string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = c.Do(ctx, http.MethodPost, url, header, data)
	return err
}
