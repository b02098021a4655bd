// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// embed.go - The "embed" and "search" commands.
//
// embed computes vectors and, with --store, keeps them in the local SQLite
// store; search embeds a query with the same model and ranks stored texts.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/rigrun-ollama/internal/embedstore"
	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

// DefaultSearchLimit is the number of hits search prints without --limit.
const DefaultSearchLimit = 5

func (a *App) runEmbed(ctx context.Context, args Args) error {
	texts, err := a.embedInputs(args.Flags)
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return NewUsageError(commandUsage[CmdEmbed], "no text given")
	}

	model := a.embedModel(args)
	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	resp, err := a.Client.Embed(callCtx, ollama.EmbedRequest{
		Model:     model,
		Input:     ollama.MultiInput(texts...),
		KeepAlive: a.Config.KeepAlive,
	})
	if err != nil {
		return err
	}

	data := EmbedData{Model: model, Embeddings: resp.Embeddings}
	if args.Flags.BoolFlag("store") {
		store, err := a.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Put(ctx, model, texts, resp.Embeddings)
		if err != nil {
			return fmt.Errorf("store embeddings: %w", err)
		}
		for _, e := range entries {
			data.Stored = append(data.Stored, e.ID)
		}
		a.Logger.Debug("stored embeddings", "model", model, "count", len(entries))
	}

	if a.JSON {
		return a.emit("embed", data)
	}
	for i, vec := range resp.Embeddings {
		line := fmt.Sprintf("%-4d %4d dims  %s", i, len(vec), runewidth.Truncate(oneLine(texts[i]), 48, "..."))
		if data.Stored != nil {
			line += DimStyle.Render("  stored " + data.Stored[i])
		}
		fmt.Fprintln(a.Stdout, line)
	}
	return nil
}

// embedInputs returns the positional texts, or stdin lines when the only
// argument is "-".
func (a *App) embedInputs(flags *ArgParser) ([]string, error) {
	texts := flags.PositionalFrom(0)
	if len(texts) != 1 || texts[0] != "-" {
		return texts, nil
	}

	var lines []string
	scanner := bufio.NewScanner(a.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read texts from stdin: %w", err)
	}
	return lines, nil
}

func (a *App) runSearch(ctx context.Context, args Args) error {
	query := JoinPositionalArgs(args.Flags, 0)
	if query == "" {
		return NewUsageError(commandUsage[CmdSearch], "no query given")
	}
	limit, err := args.Flags.FlagIntOrDefault("limit", DefaultSearchLimit)
	if err != nil {
		return err
	}

	model := a.embedModel(args)
	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	resp, err := a.Client.Embed(callCtx, ollama.EmbedRequest{
		Model:     model,
		Input:     ollama.SingleInput(query),
		KeepAlive: a.Config.KeepAlive,
	})
	if err != nil {
		return err
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	matches, err := store.Search(ctx, model, resp.Embeddings[0], limit)
	if err != nil {
		return fmt.Errorf("search embeddings: %w", err)
	}

	hits := make([]SearchHit, len(matches))
	for i, m := range matches {
		hits[i] = SearchHit{ID: m.ID, Text: m.Text, Score: m.Score}
	}
	if a.JSON {
		return a.emit("search", hits)
	}
	if len(hits) == 0 {
		a.note("No stored embeddings for %s. Add some with 'ollamactl embed --store'.", model)
		return nil
	}
	width := max(GetTerminalWidth()-10, 20)
	for _, h := range hits {
		score := strconv.FormatFloat(h.Score, 'f', 3, 64)
		fmt.Fprintf(a.Stdout, "%s  %s\n", HighlightScore(h.Score, score), runewidth.Truncate(oneLine(h.Text), width, "..."))
	}
	return nil
}

func (a *App) openStore() (*embedstore.Store, error) {
	path, err := a.Config.StorePath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return embedstore.Open(path)
}

// HighlightScore colors a similarity score: green when close, dim when far.
func HighlightScore(score float64, text string) string {
	switch {
	case score >= 0.8:
		return SuccessStyle.Render(text)
	case score >= 0.5:
		return ValueStyle.Render(text)
	default:
		return DimStyle.Render(text)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
