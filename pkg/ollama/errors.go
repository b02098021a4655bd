// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	// ErrTypeRequest means the request could not be built (marshal, URL).
	ErrTypeRequest
	// ErrTypeTransport wraps a failure returned by the Transport unchanged.
	ErrTypeTransport
	// ErrTypeStatus is a non-2xx HTTP status.
	ErrTypeStatus
	// ErrTypeModelNotFound is a 404 from a model-scoped endpoint.
	ErrTypeModelNotFound
	// ErrTypeDecode is a JSON decode failure of a body or a stream frame.
	ErrTypeDecode
	// ErrTypeServer is an {"error": "..."} frame reported inside a stream.
	ErrTypeServer
	// ErrTypeInvalidResponse is a well-formed body that breaks the API contract.
	ErrTypeInvalidResponse
)

// String returns a short name for logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeRequest:
		return "request"
	case ErrTypeTransport:
		return "transport"
	case ErrTypeStatus:
		return "status"
	case ErrTypeModelNotFound:
		return "model_not_found"
	case ErrTypeDecode:
		return "decode"
	case ErrTypeServer:
		return "server"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string

	// StatusCode and Body are set for ErrTypeStatus and ErrTypeModelNotFound.
	StatusCode int
	Body       string

	// Frame is the 1-based stream frame that failed (ErrTypeDecode, ErrTypeServer).
	Frame int

	Cause error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg += " (status " + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Frame > 0 {
		msg += " (frame " + strconv.Itoa(e.Frame) + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrNoTransport is returned by Builder.Build when no Transport was supplied.
var ErrNoTransport = errors.New("ollama: no transport configured")

// maxErrorBody bounds how much of a failed response body is kept on the error.
const maxErrorBody = 4 << 10

// apiError is the body the server sends with failures, both as a whole
// response and as a single stream frame.
type apiError struct {
	Error string `json:"error"`
}

// modelScoped lists the operations that name a model, where 404 means the
// model is missing. Elsewhere (list models, heartbeat) a 404 points at a
// wrong base URL and stays ErrTypeStatus.
var modelScoped = map[string]bool{
	"chat":         true,
	"generate":     true,
	"embed":        true,
	"pull":         true,
	"show model":   true,
	"delete model": true,
	"copy model":   true,
}

// statusError builds the error for a non-2xx response and drains the body.
func statusError(resp *http.Response, what string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(raw))

	msg := what + " failed: " + resp.Status
	var ae apiError
	if json.Unmarshal(raw, &ae) == nil && ae.Error != "" {
		msg = ae.Error
	}

	typ := ErrTypeStatus
	if resp.StatusCode == http.StatusNotFound && modelScoped[what] {
		typ = ErrTypeModelNotFound
	}
	return &ClientError{
		Type:       typ,
		Message:    msg,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

func errorType(err error) ErrorType {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type
	}
	return ErrTypeUnknown
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return errorType(err) == ErrTypeModelNotFound
}

// IsTransport checks if an error came from the transport (connection refused,
// DNS, I/O, cancelled context).
func IsTransport(err error) bool {
	return errorType(err) == ErrTypeTransport
}

// IsDecode checks if an error is a JSON decode failure.
func IsDecode(err error) bool {
	return errorType(err) == ErrTypeDecode
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}
