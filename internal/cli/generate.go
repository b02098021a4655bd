// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// generate.go - The "generate" command: single-prompt completion.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

func (a *App) runGenerate(ctx context.Context, args Args) error {
	prompt := JoinPositionalArgs(args.Flags, 0)
	if prompt == "-" || (prompt == "" && !isTerminal(a.Stdin)) {
		data, err := io.ReadAll(a.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		return NewUsageError(commandUsage[CmdGenerate], "no prompt given")
	}

	opts, err := parseOptions(args.Flags)
	if err != nil {
		return err
	}
	req := ollama.GenerateRequest{
		Model:     a.model(args),
		Prompt:    prompt,
		System:    args.Flags.Flag("system"),
		Raw:       args.Flags.BoolFlag("raw"),
		Options:   opts,
		KeepAlive: a.Config.KeepAlive,
	}
	if format := args.Flags.Flag("format"); format != "" {
		req.Format, err = parseFormat(format)
		if err != nil {
			return err
		}
	}

	stream, err := a.Client.Completion(ctx, req)
	if err != nil {
		return err
	}

	render := args.Flags.BoolFlag("markdown") && a.Interactive
	var onDelta func(ollama.GenerateEvent)
	if !a.JSON && !render {
		onDelta = func(e ollama.GenerateEvent) { fmt.Fprint(a.Stdout, e.Response) }
	}

	stats := ollama.NewStreamStats()
	result, err := ollama.CollectCompletion(stream, func(e ollama.GenerateEvent) {
		if e.Response != "" {
			stats.RecordFirstToken()
		}
		if onDelta != nil {
			onDelta(e)
		}
	})
	if err != nil {
		if onDelta != nil && result.Response != "" {
			fmt.Fprintln(a.Stdout)
		}
		return err
	}
	stats.Finalize(result.Metrics)

	switch {
	case a.JSON:
		return a.emit("generate", ChatData{
			Model:           result.Model,
			Content:         result.Response,
			DoneReason:      result.DoneReason,
			PromptTokens:    result.PromptEvalCount,
			EvalTokens:      result.EvalCount,
			TokensPerSecond: stats.TokensPerSecond,
			TTFTMillis:      stats.TTFT.Milliseconds(),
			Context:         result.Context,
		})
	case render:
		a.displayResponse(a.Stdout, result.Response)
	default:
		fmt.Fprintln(a.Stdout)
	}
	a.printStats(result.Model, result.Metrics, stats)
	return nil
}

// parseFormat accepts "json" or an inline JSON schema object.
func parseFormat(format string) (json.RawMessage, error) {
	if format == "json" {
		return json.RawMessage(`"json"`), nil
	}
	if !json.Valid([]byte(format)) || !strings.HasPrefix(strings.TrimSpace(format), "{") {
		return nil, NewValidationError("--format", format, `must be "json" or a JSON schema object`)
	}
	return json.RawMessage(format), nil
}
