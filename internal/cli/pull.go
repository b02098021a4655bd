// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pull.go - The "pull" command.
//
// On a terminal the merged pull progress drives a bubbletea progress bar;
// otherwise one line is printed per status change or 10% step.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

func (a *App) runPull(ctx context.Context, args Args) error {
	name := args.Flags.Positional(0)
	if name == "" {
		return NewUsageError(commandUsage[CmdPull], "no model name given")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := a.Client.PullModel(ctx, name, args.Flags.BoolFlag("insecure"))
	if err != nil {
		return err
	}
	defer stream.Close()

	var summary ollama.PullEvent
	switch {
	case a.JSON || a.Quiet:
		summary, err = ollama.AggregatePull(stream, nil)
	case isTerminal(a.Stderr):
		summary, err = a.pullWithProgressBar(name, stream, cancel)
	default:
		printer := &pullPrinter{w: a.Stderr}
		summary, err = ollama.AggregatePull(stream, printer.update)
	}
	if err != nil {
		return err
	}

	a.Logger.Info("model pulled", "model", name, "digest", summary.Digest)
	if a.JSON {
		data := PullData{Model: name, Status: summary.Status, Digest: summary.Digest}
		if summary.Total != nil {
			data.Total = *summary.Total
		}
		if summary.Completed != nil {
			data.Completed = *summary.Completed
		}
		return a.emit("pull", data)
	}
	if !a.Quiet {
		fmt.Fprintf(a.Stdout, "%s pulled %s\n", SuccessStyle.Render("[OK]"), name)
	}
	return nil
}

// pullWithProgressBar runs the progress UI while the stream is drained in
// the background. Pressing q or Ctrl+C cancels the pull.
func (a *App) pullWithProgressBar(name string, stream *ollama.Stream[ollama.PullEvent], cancel context.CancelFunc) (ollama.PullEvent, error) {
	p := tea.NewProgram(newPullModel(name, cancel), tea.WithOutput(a.Stderr))

	result := make(chan pullDoneMsg, 1)
	go func() {
		summary, err := ollama.AggregatePull(stream, func(s ollama.PullEvent) {
			p.Send(pullUpdateMsg(s))
		})
		done := pullDoneMsg{summary: summary, err: err}
		result <- done
		p.Send(done)
	}()

	final, runErr := p.Run()
	if runErr != nil {
		cancel()
	}
	done := <-result

	if m, ok := final.(pullModel); ok && m.aborted {
		return done.summary, fmt.Errorf("%w: pull of %s", errCanceled, name)
	}
	if runErr != nil && done.err == nil {
		return done.summary, fmt.Errorf("progress display: %w", runErr)
	}
	return done.summary, done.err
}

// =============================================================================
// PROGRESS MODEL
// =============================================================================

// pullUpdateMsg carries the merged summary after each stream event.
type pullUpdateMsg ollama.PullEvent

// pullDoneMsg is sent once the stream ends or fails.
type pullDoneMsg struct {
	summary ollama.PullEvent
	err     error
}

type pullModel struct {
	name     string
	spinner  spinner.Model
	progress progress.Model
	summary  ollama.PullEvent
	cancel   context.CancelFunc
	done     bool
	aborted  bool
	err      error
}

func newPullModel(name string, cancel context.CancelFunc) pullModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = TitleStyle

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return pullModel{name: name, spinner: s, progress: p, cancel: cancel}
}

func (m pullModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m pullModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		// Clamp progress bar width to a reasonable range
		m.progress.Width = min(max(msg.Width-30, 20), 80)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case pullUpdateMsg:
		m.summary = ollama.PullEvent(msg)
		if showsBytes(m.summary) {
			return m, m.progress.SetPercent(m.summary.Fraction())
		}
		return m, nil

	case pullDoneMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m pullModel) View() string {
	if m.done || m.aborted {
		// The caller reports the outcome.
		return ""
	}

	status := m.summary.Status
	if status == "" {
		status = "connecting"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", m.spinner.View(), TitleStyle.Render(m.name), DimStyle.Render(status))
	if showsBytes(m.summary) {
		fmt.Fprintf(&b, "  %s  %s / %s\n",
			m.progress.View(),
			ollama.FormatBytes(*m.summary.Completed),
			ollama.FormatBytes(*m.summary.Total))
	}
	return b.String()
}

// =============================================================================
// PLAIN OUTPUT
// =============================================================================

// pullPrinter writes one line whenever the rendered status changes.
type pullPrinter struct {
	w    io.Writer
	last string
}

func (p *pullPrinter) update(s ollama.PullEvent) {
	line := pullLine(s)
	if line == p.last {
		return
	}
	fmt.Fprintln(p.w, line)
	p.last = line
}

// pullLine renders a summary as "pulling 6a0746a1ec1a 40%". Percentages are
// rounded down to 10% steps so piped output stays short.
func pullLine(s ollama.PullEvent) string {
	if !showsBytes(s) {
		return s.Status
	}
	return fmt.Sprintf("%s %d%%", s.Status, int(s.Fraction()*10)*10)
}

// showsBytes reports whether s is a layer download with known counts. The
// merged summary keeps the last counts through the closing status lines, so
// the status is checked too.
func showsBytes(s ollama.PullEvent) bool {
	return s.Total != nil && s.Completed != nil &&
		strings.HasPrefix(s.Status, "pulling ") && s.Status != "pulling manifest"
}
