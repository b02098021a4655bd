// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - The "list", "show", "rm" and "cp" commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

func (a *App) runList(ctx context.Context) error {
	callCtx, cancel := a.callContext(ctx)
	defer cancel()

	resp, err := a.Client.ListLocalModels(callCtx)
	if err != nil {
		return err
	}
	models := resp.Models
	sort.SliceStable(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	if a.JSON {
		return a.emit("list", models)
	}
	if len(models) == 0 {
		a.note("No models installed. Pull one with 'ollamactl pull NAME'.")
		return nil
	}
	writeModelTable(a.Stdout, models, time.Now(), GetTerminalWidth())
	return nil
}

// writeModelTable prints NAME, ID, SIZE and MODIFIED columns. Names wider
// than the space left by the other columns are truncated by display width.
func writeModelTable(w io.Writer, models []ollama.LocalModel, now time.Time, width int) {
	const (
		idWidth   = 12
		sizeWidth = 9
		gap       = "  "
	)

	nameWidth := len("NAME")
	for _, m := range models {
		nameWidth = max(nameWidth, runewidth.StringWidth(m.Name))
	}
	// Leave room for the fixed columns and a short age.
	nameWidth = min(nameWidth, max(width-idWidth-sizeWidth-len("MODIFIED")-8-3*len(gap), 12))

	header := runewidth.FillRight("NAME", nameWidth) + gap +
		runewidth.FillRight("ID", idWidth) + gap +
		runewidth.FillRight("SIZE", sizeWidth) + gap + "MODIFIED"
	fmt.Fprintln(w, SectionStyle.UnsetMarginTop().Render(header))

	for _, m := range models {
		name := runewidth.FillRight(runewidth.Truncate(m.Name, nameWidth, "..."), nameWidth)
		id := runewidth.FillRight(shortDigest(m.Digest), idWidth)
		size := runewidth.FillRight(m.FormatSize(), sizeWidth)
		fmt.Fprintln(w, name+gap+id+gap+size+gap+formatAge(m.ModifiedAt, now))
	}
}

func shortDigest(digest string) string {
	digest = strings.TrimPrefix(digest, "sha256:")
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// formatAge renders how long ago t was, e.g. "3 days ago".
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s ago", unit)
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	case d < 365*24*time.Hour:
		return plural(int(d.Hours()/(24*30)), "month")
	default:
		return plural(int(d.Hours()/(24*365)), "year")
	}
}

func (a *App) runShow(ctx context.Context, args Args) error {
	name := args.Flags.Positional(0)
	if name == "" {
		return NewUsageError(commandUsage[CmdShow], "no model name given")
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	info, err := a.Client.ShowModelInfo(callCtx, name)
	if err != nil {
		return err
	}

	if a.JSON {
		return a.emit("show", info)
	}
	if args.Flags.BoolFlag("modelfile") {
		fmt.Fprint(a.Stdout, info.Modelfile)
		return nil
	}

	w := a.Stdout
	fmt.Fprintln(w, TitleStyle.Render(name))
	fmt.Fprintln(w, RenderSeparator(min(GetTerminalWidth()-2, 60)))
	d := info.Details
	for _, row := range [][2]string{
		{"Family", d.Family},
		{"Parameters", d.ParameterSize},
		{"Quantization", d.QuantizationLevel},
		{"Format", d.Format},
	} {
		if row[1] != "" {
			fmt.Fprintln(w, RenderLabel(row[0], row[1]))
		}
	}
	if info.Parameters != "" {
		fmt.Fprintln(w, SectionStyle.Render("Parameters"))
		for _, line := range strings.Split(strings.TrimSpace(info.Parameters), "\n") {
			fmt.Fprintln(w, "  "+strings.Join(strings.Fields(line), " "))
		}
	}
	if info.Template != "" {
		fmt.Fprintln(w, SectionStyle.Render("Template"))
		fmt.Fprintln(w, indent(strings.TrimSpace(info.Template), "  "))
	}
	if info.License != "" {
		fmt.Fprintln(w, SectionStyle.Render("License"))
		first, _, _ := strings.Cut(strings.TrimSpace(info.License), "\n")
		fmt.Fprintln(w, "  "+runewidth.Truncate(first, 72, "..."))
	}
	return nil
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}

func (a *App) runRemove(ctx context.Context, args Args) error {
	name := args.Flags.Positional(0)
	if name == "" {
		return NewUsageError(commandUsage[CmdRemove], "no model name given")
	}
	if err := a.confirm("delete model '"+name+"'", commandUsage[CmdRemove], args.Flags); err != nil {
		return err
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	if err := a.Client.DeleteModel(callCtx, name); err != nil {
		return err
	}

	a.Logger.Info("model deleted", "model", name)
	if a.JSON {
		return a.emit("rm", map[string]string{"deleted": name})
	}
	fmt.Fprintf(a.Stdout, "deleted '%s'\n", name)
	return nil
}

func (a *App) runCopy(ctx context.Context, args Args) error {
	if args.Flags.PositionalCount() != 2 {
		return NewUsageError(commandUsage[CmdCopy], "expected SOURCE and DESTINATION")
	}
	src, dst := args.Flags.Positional(0), args.Flags.Positional(1)

	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	if err := a.Client.CopyModel(callCtx, src, dst); err != nil {
		return err
	}

	a.Logger.Info("model copied", "source", src, "destination", dst)
	if a.JSON {
		return a.emit("cp", map[string]string{"source": src, "destination": dst})
	}
	fmt.Fprintf(a.Stdout, "copied '%s' to '%s'\n", src, dst)
	return nil
}
