// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// =============================================================================
// TRANSPORT DECORATORS
// =============================================================================

// RequestIDHeader carries the id LoggingTransport attaches to each request.
const RequestIDHeader = "X-Request-ID"

// LoggingTransport tags each request with a fresh X-Request-ID (unless one is
// already set) and logs the round trip at Debug level.
type LoggingTransport struct {
	Next   Transport
	Logger *slog.Logger
}

// Do implements Transport.
func (t *LoggingTransport) Do(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, id)
	}

	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	resp, err := t.Next.Do(req)
	if err != nil {
		logger.Debug("http round trip failed",
			"request_id", id,
			"method", req.Method,
			"url", req.URL.String(),
			"error", err,
		)
		return nil, err
	}
	logger.Debug("http round trip",
		"request_id", id,
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)
	return resp, nil
}

// RateLimitedTransport waits on Limiter before each request. Waiting honours
// the request context; a cancelled wait is returned as the transport error
// and the request is not sent. Requests are never retried.
type RateLimitedTransport struct {
	Next    Transport
	Limiter *rate.Limiter
}

// NewRateLimitedTransport allows perSecond requests per second with a burst of
// one. perSecond <= 0 returns next unchanged.
func NewRateLimitedTransport(next Transport, perSecond float64) Transport {
	if perSecond <= 0 {
		return next
	}
	return &RateLimitedTransport{
		Next:    next,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Do implements Transport.
func (t *RateLimitedTransport) Do(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Next.Do(req)
}
