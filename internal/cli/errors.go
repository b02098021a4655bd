// errors.go - CLI error types, display and exit codes.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess  = 0
	ExitError    = 1 // Server, decode and other runtime failures
	ExitUsage    = 2 // Bad flags or arguments
	ExitNotFound = 3 // Model not found
	ExitNetwork  = 4 // Server unreachable
	ExitConfig   = 5 // Invalid configuration
	ExitCanceled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line. Usage is the help text line
// for the command, shown under the message.
type UsageError struct {
	Message string
	Usage   string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewUsageError creates a UsageError for a command.
func NewUsageError(usage, format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...), Usage: usage}
}

// ValidationError reports an invalid flag or argument value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// ConfigError wraps a failure to load or save configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// errCanceled is returned when the user interrupts a command.
var errCanceled = errors.New("canceled")

// =============================================================================
// DISPLAY
// =============================================================================

// GetExitCode maps an error to the process exit status.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var validationErr *ValidationError
	var configErr *ConfigError
	switch {
	case errors.Is(err, errCanceled):
		return ExitCanceled
	case errors.As(err, &usageErr), errors.As(err, &validationErr):
		return ExitUsage
	case errors.As(err, &configErr):
		return ExitConfig
	case ollama.IsModelNotFound(err):
		return ExitNotFound
	case ollama.IsTransport(err):
		return ExitNetwork
	default:
		return ExitError
	}
}

// DisplayError writes err to w in ErrorStyle with a hint when one applies.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())

	var usageErr *UsageError
	if errors.As(err, &usageErr) && usageErr.Usage != "" {
		fmt.Fprintf(w, "\nUsage: %s\n", usageErr.Usage)
		return
	}
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, DimStyle.Render("  "+hint))
	}
}

func errorHint(err error) string {
	switch {
	case ollama.IsModelNotFound(err):
		return "Run 'ollamactl list' to see installed models or 'ollamactl pull NAME' to fetch one."
	case ollama.IsTransport(err) && !strings.Contains(err.Error(), "context canceled"):
		return "Is the server running? Start it with 'ollama serve' or set --host."
	}
	return ""
}
