// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"strconv"
	"time"
)

// =============================================================================
// MESSAGES & TOOLS
// =============================================================================

// Message represents a chat message in the conversation.
type Message struct {
	Role      string     `json:"role"`                 // "user", "assistant", "system", "tool"
	Content   string     `json:"content"`              // The message content
	Images    []string   `json:"images,omitempty"`     // Base64-encoded images
	ToolCalls []ToolCall `json:"tool_calls,omitempty"` // Tool calls requested by assistant
}

// ToolCall represents a tool invocation from the model.
type ToolCall struct {
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name and arguments.
type ToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Tool represents a tool definition for function calling.
type Tool struct {
	Type     string     `json:"type"` // Always "function"
	Function ToolSchema `json:"function"`
}

// ToolSchema defines a tool's interface.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters defines the parameters schema for a tool.
type ToolParameters struct {
	Type       string                  `json:"type"` // "object"
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

// ToolProperty defines a single parameter property using JSON Schema.
type ToolProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Options contains model parameters for inference. Nil or zero fields are
// omitted and the server default applies. Fields where zero is a real
// setting (temperature 0, seed 0, no GPU layers) are pointers; set them with
// Ptr.
type Options struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	NumCtx           int      `json:"num_ctx,omitempty"`
	NumPredict       int      `json:"num_predict,omitempty"`
	NumGPU           *int     `json:"num_gpu,omitempty"`
	NumThread        int      `json:"num_thread,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
}

// Ptr returns a pointer to v, for the optional fields of Options.
func Ptr[T any](v T) *T {
	return &v
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// ChatRequest is the request body for the api/chat endpoint.
// Stream is always forced to true by Client.Chat.
type ChatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Tools    []Tool          `json:"tools,omitempty"`
	Format   json.RawMessage `json:"format,omitempty"` // "json" or a JSON schema
	Options  *Options        `json:"options,omitempty"`
	Stream   bool            `json:"stream"`
	// KeepAlive controls how long the model stays loaded, e.g. "5m".
	KeepAlive string `json:"keep_alive,omitempty"`
}

// GenerateRequest is the request body for the api/generate endpoint.
// Stream is always forced to true by Client.Completion.
type GenerateRequest struct {
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	System    string          `json:"system,omitempty"`
	Format    json.RawMessage `json:"format,omitempty"`
	Options   *Options        `json:"options,omitempty"`
	Context   []int           `json:"context,omitempty"` // From a previous GenerateEvent
	Raw       bool            `json:"raw,omitempty"`
	Stream    bool            `json:"stream"`
	KeepAlive string          `json:"keep_alive,omitempty"`
}

// EmbedRequest is the request body for the api/embed endpoint.
type EmbedRequest struct {
	Model     string     `json:"model"`
	Input     EmbedInput `json:"input"`
	Truncate  *bool      `json:"truncate,omitempty"`
	Options   *Options   `json:"options,omitempty"`
	KeepAlive string     `json:"keep_alive,omitempty"`
}

type pullRequest struct {
	Name     string `json:"name"`
	Insecure bool   `json:"insecure"`
	Stream   bool   `json:"stream"`
}

type deleteRequest struct {
	Name string `json:"name"`
}

type showRequest struct {
	Name string `json:"name"`
}

type copyRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

// Metrics holds the timing and token counts the server reports on the
// terminal event of a generation. Durations are nanoseconds; all fields are
// zero on non-terminal events.
type Metrics struct {
	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// TokensPerSecond calculates the generation speed.
func (m Metrics) TokensPerSecond() float64 {
	if m.EvalDuration == 0 {
		return 0
	}
	seconds := float64(m.EvalDuration) / 1e9
	return float64(m.EvalCount) / seconds
}

// TTFT returns the time to first token (prompt evaluation time).
func (m Metrics) TTFT() time.Duration {
	return time.Duration(m.PromptEvalDuration)
}

// TotalTime returns the total generation time.
func (m Metrics) TotalTime() time.Duration {
	return time.Duration(m.TotalDuration)
}

// ChatEvent is one line of an api/chat stream.
type ChatEvent struct {
	Model      string    `json:"model"`
	CreatedAt  Timestamp `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	Metrics
}

// GenerateEvent is one line of an api/generate stream.
type GenerateEvent struct {
	Model      string    `json:"model"`
	CreatedAt  Timestamp `json:"created_at"`
	Response   string    `json:"response"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`
	Context    []int     `json:"context,omitempty"`
	Metrics
}

// PullEvent is one line of an api/pull stream. Digest, Total and Completed
// are absent on status-only lines such as "pulling manifest" and "success".
type PullEvent struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     *int64 `json:"total,omitempty"`
	Completed *int64 `json:"completed,omitempty"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// EmbedResponse is the response from the api/embed endpoint. Embeddings holds
// one vector per input, in input order.
type EmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Metrics
}

// LocalModel describes one model installed on the server.
type LocalModel struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest,omitempty"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails contains detailed information about a model.
type ModelDetails struct {
	Format            string   `json:"format,omitempty"`
	Family            string   `json:"family,omitempty"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     string   `json:"parameter_size,omitempty"`
	QuantizationLevel string   `json:"quantization_level,omitempty"`
}

// ListModelsResponse is the response from the api/tags endpoint.
type ListModelsResponse struct {
	Models []LocalModel `json:"models"`
}

// ModelInfo is the response from the api/show endpoint.
type ModelInfo struct {
	License    string       `json:"license,omitempty"`
	Modelfile  string       `json:"modelfile,omitempty"`
	Parameters string       `json:"parameters,omitempty"`
	Template   string       `json:"template,omitempty"`
	Details    ModelDetails `json:"details,omitempty"`
}

// =============================================================================
// HELPER METHODS
// =============================================================================

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// NewToolResultMessage creates a tool result message.
func NewToolResultMessage(content string) Message {
	return Message{Role: "tool", Content: content}
}

// Timestamp is the server's created_at text, kept as sent. A missing or
// unparseable value never fails the frame it arrives in.
type Timestamp string

// Time parses t as RFC 3339. It returns false when t is empty or malformed.
func (t Timestamp) Time() (time.Time, bool) {
	v, err := time.Parse(time.RFC3339Nano, string(t))
	if err != nil {
		return time.Time{}, false
	}
	return v, true
}

// HasToolCalls returns true if the message contains tool calls.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// FormatSize formats the model size in human-readable form.
func (m *LocalModel) FormatSize() string {
	return FormatBytes(m.Size)
}

// FormatBytes renders n bytes with a binary unit, one decimal place.
func FormatBytes(n int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case n >= GB:
		return formatFloat(float64(n)/GB) + " GB"
	case n >= MB:
		return formatFloat(float64(n)/MB) + " MB"
	case n >= KB:
		return formatFloat(float64(n)/KB) + " KB"
	default:
		return formatFloat(float64(n)) + " B"
	}
}

func formatFloat(f float64) string {
	tenths := int64(f*10 + 0.5)
	whole, frac := tenths/10, tenths%10
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return strconv.FormatInt(whole, 10) + "." + strconv.FormatInt(frac, 10)
}
