// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Confirmation for destructive commands (rm, config reset).
//
// The rule is the same everywhere:
//  1. --yes skips the prompt
//  2. --json requires --yes (no interactive prompts in JSON mode)
//  3. stdin that is not a terminal requires --yes (can't prompt)
//  4. otherwise ask on stderr and read the answer from stdin
package cli

import (
	"bufio"
	"fmt"
	"strings"
)

// errNotConfirmed is returned when the user answers no at the prompt.
var errNotConfirmed = fmt.Errorf("%w: not confirmed", errCanceled)

// confirm asks before action runs. It returns nil when the action may go
// ahead; usage is shown when a prompt is impossible.
func (a *App) confirm(action, usage string, flags *ArgParser) error {
	if flags.BoolFlag("yes", "y") {
		return nil
	}
	if a.JSON {
		return NewUsageError(usage, "confirmation required to %s: pass --yes in JSON mode", action)
	}
	if !isTerminal(a.Stdin) {
		return NewUsageError(usage, "confirmation required to %s: stdin is not a terminal, pass --yes", action)
	}

	fmt.Fprintf(a.Stderr, "%s %s? [y/N]: ", WarningStyle.Render("Are you sure you want to"), action)
	input, err := bufio.NewReader(a.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read confirmation: %w", err)
	}
	if !isYes(input) {
		fmt.Fprintln(a.Stderr, DimStyle.Render("Cancelled."))
		return errNotConfirmed
	}
	return nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
