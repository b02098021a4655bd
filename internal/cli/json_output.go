// json_output.go - JSON envelope for --json mode.
//
// Every command emits exactly one JSONResponse on stdout when --json is set.
// Diagnostics keep going to stderr so stdout stays machine-parseable.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is RFC3339 UTC
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// ChatData is the --json payload of chat and generate.
type ChatData struct {
	Model           string  `json:"model"`
	Content         string  `json:"content"`
	DoneReason      string  `json:"done_reason,omitempty"`
	PromptTokens    int     `json:"prompt_tokens"`
	EvalTokens      int     `json:"eval_tokens"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	TTFTMillis      int64   `json:"ttft_ms"`
	Context         []int   `json:"context,omitempty"`
}

// EmbedData is the --json payload of embed.
type EmbedData struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Stored     []string    `json:"stored_ids,omitempty"`
}

// SearchHit is one row of the search payload.
type SearchHit struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// PullData is the --json payload of pull.
type PullData struct {
	Model     string `json:"model"`
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// StatusData is the --json payload of status.
type StatusData struct {
	BaseURL    string `json:"base_url"`
	Reachable  bool   `json:"reachable"`
	Models     int    `json:"models"`
	ConfigPath string `json:"config_path"`
	Version    string `json:"version"`
}
