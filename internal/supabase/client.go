// Package supabase is a small REST client for a Supabase-style hosted backend:
// GoTrue auth endpoints under /auth/v1 and PostgREST tables under /rest/v1.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

var ErrNotConfigured = errors.New("supabase is not configured")

// Config holds the two values that decide whether the backend is usable.
type Config struct {
	URL     string
	AnonKey string
}

// IsConfigured reports whether the anon key is set and the URL is a valid
// http or https URL. Both values are trimmed first.
func (c Config) IsConfigured() bool {
	if strings.TrimSpace(c.AnonKey) == "" {
		return false
	}
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// APIError is a non-2xx answer from the backend. Error returns the provider's
// message unchanged so callers can show it verbatim and match on it.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// AuthRejected reports whether the backend refused the request's token or
// credentials. Rate limiting is not a rejection.
func (e *APIError) AuthRejected() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

// Client talks to one project. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a client, or ErrNotConfigured when cfg fails IsConfigured.
// No request timeout is applied beyond whatever the http.Client carries.
func New(cfg Config, opts ...Option) (*Client, error) {
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	c := &Client{
		baseURL:    u,
		anonKey:    strings.TrimSpace(cfg.AnonKey),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	token  string
	body   any
	prefer string
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do executes req and decodes a successful JSON body into dst (when non-nil).
func (c *Client) do(ctx context.Context, req request, dst any) error {
	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.endpoint(req.path, req.query), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("apikey", c.anonKey)
	token := req.token
	if token == "" {
		token = c.anonKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, raw)
		slog.DebugContext(ctx, "Backend request failed",
			"method", req.method,
			"path", req.path,
			"status", resp.StatusCode,
			"code", apiErr.Code,
			"error", apiErr.Message)
		return apiErr
	}

	if dst == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError understands both PostgREST ({"message": ...}) and GoTrue
// ({"msg": ...} or {"error_description": ...}) error bodies.
func decodeError(status int, raw []byte) *APIError {
	var body struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		Details          any    `json:"details"`
		Hint             any    `json:"hint"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	switch {
	case body.Message != "":
		apiErr.Message = body.Message
	case body.Msg != "":
		apiErr.Message = body.Msg
	case body.ErrorDescription != "":
		apiErr.Message = body.ErrorDescription
	default:
		apiErr.Message = body.Error
	}
	if body.ErrorCode != "" {
		apiErr.Code = body.ErrorCode
	} else if body.Code != nil {
		apiErr.Code = fmt.Sprint(body.Code)
	}
	if s, ok := body.Details.(string); ok {
		apiErr.Details = s
	}
	if s, ok := body.Hint.(string); ok {
		apiErr.Hint = s
	}
	return apiErr
}
