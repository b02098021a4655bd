// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is where a locally installed server listens.
const DefaultBaseURL = "http://localhost:11434/"

// =============================================================================
// TRANSPORT
// =============================================================================

// Transport sends an HTTP request and returns the response. *http.Client
// satisfies it; connection pooling, TLS and timeouts are its concern.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportFunc adapts an ordinary function to the Transport interface.
type TransportFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f TransportFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder collects client configuration. The zero value is not usable; start
// from NewBuilder.
//
// Example:
//
//	client, err := ollama.NewBuilder().
//	    WithTransport(http.DefaultClient).
//	    WithBaseURL("http://gpu-box:11434/").
//	    Build()
type Builder struct {
	baseURL   string
	transport Transport
	logger    *slog.Logger
}

// NewBuilder returns a Builder targeting DefaultBaseURL with no transport.
func NewBuilder() *Builder {
	return &Builder{baseURL: DefaultBaseURL}
}

// WithTransport sets the transport. It is required.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithBaseURL overrides DefaultBaseURL. A trailing slash is added if missing.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.baseURL = base
	return b
}

// WithLogger sets the logger used for Debug-level request tracing.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and returns an immutable Client.
func (b *Builder) Build() (*Client, error) {
	if b.transport == nil {
		return nil, ErrNoTransport
	}

	base, err := normalizeBaseURL(b.baseURL)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:   base,
		transport: b.transport,
		logger:    logger,
	}, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Client {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ClientError{Type: ErrTypeRequest, Message: fmt.Sprintf("parse base url %q", raw), Cause: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", &ClientError{Type: ErrTypeRequest, Message: fmt.Sprintf("base url %q must be an absolute http(s) url", raw)}
	}
	s := u.String()
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s, nil
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the server's HTTP API. It holds no mutable state and is
// safe for concurrent use; each call owns its own request, response and
// stream.
type Client struct {
	baseURL   string
	transport Transport
	logger    *slog.Logger
}

// BaseURL returns the base URL, always ending in "/".
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Heartbeat checks that the server answers on its base URL.
func (c *Client) Heartbeat(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "", nil)
	if err != nil {
		return err
	}
	resp, err := c.send(req, "heartbeat")
	if err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeRequest, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeRequest, Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// send issues req and returns the response only for a 2xx status. For any
// other status the body is consumed into the returned error.
func (c *Client) send(req *http.Request, what string) (*http.Response, error) {
	start := time.Now()
	resp, err := c.transport.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", what, "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, &ClientError{Type: ErrTypeTransport, Message: what + " request failed", Cause: err}
	}

	c.logger.Debug("request",
		"op", what,
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		return nil, statusError(resp, what)
	}
	return resp, nil
}

// doJSON performs a single round trip. out may be nil when the body carries
// nothing of interest.
func (c *Client) doJSON(ctx context.Context, method, path, what string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.send(req, what)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeDecode, Message: "failed to decode " + what + " response", Cause: err}
	}
	return nil
}

// openStream performs the request and hands the body to a Stream. It is a
// function rather than a method because methods cannot take type parameters.
func openStream[T any](ctx context.Context, c *Client, path, what string, in any, terminal func(T) bool) (*Stream[T], error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.send(req, what)
	if err != nil {
		return nil, err
	}

	s := NewStream(resp.Body, terminal)
	s.logger = c.logger.With("op", what)
	return s, nil
}

// drainAndClose discards what is left of a small body so the connection can
// be reused, then closes it.
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
	_ = r.Close()
}
