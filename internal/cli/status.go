// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - The "status" command.
//
// Examples:
//
//	ollamactl status                 Show server and configuration status
//	ollamactl s --json               Status as a JSON envelope
//
// Exits with status 4 when the server cannot be reached.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jeranaias/rigrun-ollama/internal/embedstore"
)

func (a *App) runStatus(ctx context.Context) error {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	data := StatusData{
		BaseURL:    a.Client.BaseURL(),
		ConfigPath: a.ConfigPath,
		Version:    Version,
	}
	heartbeatErr := a.Client.Heartbeat(callCtx)
	if heartbeatErr == nil {
		data.Reachable = true
		if resp, err := a.Client.ListLocalModels(callCtx); err == nil {
			data.Models = len(resp.Models)
		} else {
			a.Logger.Warn("list models failed", "error", err)
		}
	}

	if a.JSON {
		if heartbeatErr != nil {
			return heartbeatErr
		}
		return a.emit("status", data)
	}

	w := a.Stdout
	fmt.Fprintln(w, TitleStyle.Render("ollamactl status"))
	fmt.Fprintln(w, RenderSeparator(40))
	fmt.Fprintln(w, RenderLabel("Server", data.BaseURL+" "+RenderStatus(data.Reachable)))
	if data.Reachable {
		fmt.Fprintln(w, RenderLabel("Models", strconv.Itoa(data.Models)))
	}
	fmt.Fprintln(w, RenderLabel("Default model", a.Config.DefaultModel))
	fmt.Fprintln(w, RenderLabel("Embed model", a.Config.EmbedModel))
	fmt.Fprintln(w, RenderLabel("Config", configPathLabel(data.ConfigPath)))
	fmt.Fprintln(w, RenderLabel("Store", a.storeLabel(ctx)))
	return heartbeatErr
}

func configPathLabel(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path + DimStyle.Render(" (not present, using defaults)")
	}
	return path
}

// storeLabel describes the embedding store without creating it.
func (a *App) storeLabel(ctx context.Context) string {
	path, err := a.Config.StorePath()
	if err != nil {
		return err.Error()
	}
	if _, err := os.Stat(path); err != nil {
		return path + DimStyle.Render(" (empty)")
	}
	store, err := embedstore.Open(path)
	if err != nil {
		return path + " " + ErrorStyle.Render(err.Error())
	}
	defer store.Close()
	n, err := store.Count(ctx, "")
	if err != nil {
		return path + " " + ErrorStyle.Render(err.Error())
	}
	return fmt.Sprintf("%s (%d embeddings)", path, n)
}
