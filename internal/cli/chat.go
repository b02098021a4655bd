// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - The "chat" command: one-shot replies and an interactive REPL.
//
// Examples:
//
//	ollamactl chat "Why is the sky blue?"    One reply, streamed to stdout
//	echo "hi" | ollamactl chat               Prompt read from stdin
//	ollamactl chat --model phi3              Interactive chat
//
// Interactive commands:
//
//	/help, /h           Show available commands
//	/clear, /c          Clear conversation history
//	/model [name]       Show or switch model
//	/system [text]      Show or set the system prompt
//	/markdown           Toggle markdown rendering of replies
//	/history            Show conversation history
//	/status, /s         Show session statistics
//	/quit, /q           Exit chat
//	Ctrl+C              Cancel current reply
//	Ctrl+D              Exit chat
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI whose history lives in the config directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}

	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// chatSession is the conversation carried between turns. The system prompt
// is kept apart from Messages so /system and /clear act independently.
type chatSession struct {
	client    *ollama.Client
	keepAlive string

	Model    string
	System   string
	Markdown bool
	Options  *ollama.Options
	Messages []ollama.Message

	StartTime   time.Time
	Turns       int
	TotalTokens int
}

func (a *App) newChatSession(args Args, opts *ollama.Options) *chatSession {
	return &chatSession{
		client:    a.Client,
		keepAlive: a.Config.KeepAlive,
		Model:     a.model(args),
		System:    args.Flags.Flag("system"),
		Markdown:  args.Flags.BoolFlag("markdown"),
		Options:   opts,
		StartTime: time.Now(),
	}
}

func (s *chatSession) request() ollama.ChatRequest {
	msgs := make([]ollama.Message, 0, len(s.Messages)+1)
	if s.System != "" {
		msgs = append(msgs, ollama.NewSystemMessage(s.System))
	}
	msgs = append(msgs, s.Messages...)
	return ollama.ChatRequest{
		Model:     s.Model,
		Messages:  msgs,
		Options:   s.Options,
		KeepAlive: s.keepAlive,
	}
}

// send streams the reply to prompt, writing each delta to w when w is
// non-nil. On success the exchange joins the history; a failed turn leaves
// the history as it was.
func (s *chatSession) send(ctx context.Context, prompt string, w io.Writer) (ollama.ChatEvent, *ollama.StreamStats, error) {
	s.Messages = append(s.Messages, ollama.NewUserMessage(prompt))
	rollback := func() { s.Messages = s.Messages[:len(s.Messages)-1] }

	stream, err := s.client.Chat(ctx, s.request())
	if err != nil {
		rollback()
		return ollama.ChatEvent{}, nil, err
	}
	defer stream.Close()

	var onDelta func(ollama.ChatEvent)
	if w != nil {
		onDelta = func(e ollama.ChatEvent) { fmt.Fprint(w, e.Message.Content) }
	}
	reply, stats, err := ollama.CollectChat(stream, onDelta)
	if err != nil {
		rollback()
		return reply, stats, err
	}

	s.Messages = append(s.Messages, reply.Message)
	s.Turns++
	s.TotalTokens += reply.PromptEvalCount + reply.EvalCount
	return reply, stats, nil
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

func (a *App) runChat(ctx context.Context, args Args) error {
	opts, err := parseOptions(args.Flags)
	if err != nil {
		return err
	}
	session := a.newChatSession(args, opts)

	prompt := JoinPositionalArgs(args.Flags, 0)
	if prompt == "" {
		if isTerminal(a.Stdin) && !a.JSON {
			return a.chatREPL(ctx, session)
		}
		data, err := io.ReadAll(a.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = strings.TrimSpace(string(data))
		if prompt == "" {
			return NewUsageError(commandUsage[CmdChat], "no prompt given")
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.chatOnce(ctx, session, prompt)
}

func (a *App) chatOnce(ctx context.Context, s *chatSession, prompt string) error {
	render := s.Markdown && a.Interactive
	var w io.Writer
	if !a.JSON && !render {
		w = a.Stdout
	}

	reply, stats, err := s.send(ctx, prompt, w)
	if err != nil {
		if w != nil && reply.Message.Content != "" {
			fmt.Fprintln(w)
		}
		return err
	}

	switch {
	case a.JSON:
		return a.emit("chat", chatData(reply, stats))
	case render:
		a.displayResponse(a.Stdout, reply.Message.Content)
	default:
		fmt.Fprintln(a.Stdout)
	}
	a.printStats(reply.Model, reply.Metrics, stats)
	return nil
}

func chatData(reply ollama.ChatEvent, stats *ollama.StreamStats) ChatData {
	data := ChatData{
		Model:        reply.Model,
		Content:      reply.Message.Content,
		DoneReason:   reply.DoneReason,
		PromptTokens: reply.PromptEvalCount,
		EvalTokens:   reply.EvalCount,
	}
	if stats != nil {
		data.TokensPerSecond = stats.TokensPerSecond
		data.TTFTMillis = stats.TTFT.Milliseconds()
	}
	return data
}

// printStats writes "model | 42 tokens | 31.5 tok/s | first token 180ms".
func (a *App) printStats(model string, m ollama.Metrics, stats *ollama.StreamStats) {
	parts := []string{model, fmt.Sprintf("%d tokens", m.EvalCount)}
	if tps := m.TokensPerSecond(); tps > 0 {
		parts = append(parts, fmt.Sprintf("%.1f tok/s", tps))
	}
	if stats != nil && stats.TTFT > 0 {
		parts = append(parts, "first token "+formatDuration(stats.TTFT))
	}
	a.note("[%s]", strings.Join(parts, " | "))
}

// parseOptions reads the sampling flags. It returns nil when none are set so
// the server defaults apply.
func parseOptions(flags *ArgParser) (*ollama.Options, error) {
	var opts ollama.Options
	set := false

	if v := flags.Flag("temperature"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, NewValidationError("--temperature", v, "must be a non-negative number")
		}
		opts.Temperature = &f
		set = true
	}
	if v := flags.Flag("seed"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, NewValidationError("--seed", v, "must be an integer")
		}
		opts.Seed = &n
		set = true
	}
	if flags.Flag("num-ctx") != "" {
		n, err := flags.FlagIntOrDefault("num-ctx", 0)
		if err != nil {
			return nil, err
		}
		opts.NumCtx = n
		set = true
	}

	if !set {
		return nil, nil
	}
	return &opts, nil
}

// =============================================================================
// REPL
// =============================================================================

func (a *App) chatREPL(ctx context.Context, s *chatSession) error {
	if !a.Interactive {
		s.Markdown = false
	}
	input := NewChatCLI()
	defer input.Close()

	if !a.Quiet {
		fmt.Fprintln(a.Stderr, TitleStyle.Render("ollamactl chat"))
		a.note("model %s | /help for commands | Ctrl+D to exit", s.Model)
	}

	for {
		line, err := input.ReadInput(PromptStyle.Render(">>> "))
		if err != nil {
			// Ctrl+C at the prompt (liner.ErrPromptAborted) or Ctrl+D (io.EOF)
			fmt.Fprintln(a.Stderr)
			a.printExitSummary(s)
			return nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if !s.handleSlashCommand(line, a.Stdout) {
				a.printExitSummary(s)
				return nil
			}
			continue
		case strings.EqualFold(line, "exit"), strings.EqualFold(line, "quit"):
			a.printExitSummary(s)
			return nil
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err = a.replyTurn(turnCtx, s, line)
		interrupted := turnCtx.Err() != nil
		stop()

		switch {
		case err == nil:
		case interrupted && ctx.Err() == nil:
			fmt.Fprintln(a.Stderr, WarningStyle.Render("[Cancelled]"))
		default:
			DisplayError(a.Stderr, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (a *App) replyTurn(ctx context.Context, s *chatSession, prompt string) error {
	var w io.Writer
	if !s.Markdown {
		w = a.Stdout
	}
	reply, stats, err := s.send(ctx, prompt, w)
	if err != nil {
		if w != nil && reply.Message.Content != "" {
			fmt.Fprintln(w)
		}
		return err
	}
	if s.Markdown {
		a.displayResponse(a.Stdout, reply.Message.Content)
	} else {
		fmt.Fprintln(a.Stdout)
	}
	a.printStats(reply.Model, reply.Metrics, stats)
	return nil
}

func (a *App) printExitSummary(s *chatSession) {
	a.note("%d turns, %d tokens in %s", s.Turns, s.TotalTokens, formatDuration(time.Since(s.StartTime)))
}

// handleSlashCommand runs one REPL command and reports whether the session
// continues.
func (s *chatSession) handleSlashCommand(input string, w io.Writer) bool {
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "help", "h", "?":
		fmt.Fprint(w, replHelp)

	case "clear", "c":
		s.Messages = nil
		fmt.Fprintln(w, "Conversation cleared.")

	case "model", "m":
		if arg == "" {
			fmt.Fprintln(w, RenderLabel("Model", s.Model))
			break
		}
		s.Model = arg
		fmt.Fprintf(w, "Switched to %s.\n", arg)

	case "system":
		switch arg {
		case "":
			if s.System == "" {
				fmt.Fprintln(w, "No system prompt set.")
			} else {
				fmt.Fprintln(w, RenderLabel("System", s.System))
			}
		case "off", "none":
			s.System = ""
			fmt.Fprintln(w, "System prompt cleared.")
		default:
			s.System = arg
			fmt.Fprintln(w, "System prompt set.")
		}

	case "markdown", "md":
		s.Markdown = !s.Markdown
		fmt.Fprintf(w, "Markdown rendering %s.\n", onOff(s.Markdown))

	case "history":
		if len(s.Messages) == 0 {
			fmt.Fprintln(w, "No messages yet.")
			break
		}
		for _, m := range s.Messages {
			text := strings.Join(strings.Fields(m.Content), " ")
			fmt.Fprintf(w, "%-10s %s\n", m.Role+":", runewidth.Truncate(text, 70, "..."))
		}

	case "status", "s":
		fmt.Fprintln(w, RenderLabel("Model", s.Model))
		fmt.Fprintln(w, RenderLabel("Messages", strconv.Itoa(len(s.Messages))))
		fmt.Fprintln(w, RenderLabel("Turns", strconv.Itoa(s.Turns)))
		fmt.Fprintln(w, RenderLabel("Tokens", strconv.Itoa(s.TotalTokens)))
		fmt.Fprintln(w, RenderLabel("Elapsed", formatDuration(time.Since(s.StartTime))))

	case "quit", "q", "exit":
		return false

	default:
		fmt.Fprintf(w, "Unknown command /%s. Type /help for commands.\n", cmd)
	}
	return true
}

const replHelp = `Commands:
  /help, /h          Show this help
  /clear, /c         Clear conversation history
  /model [name]      Show or switch model
  /system [text|off] Show, set or clear the system prompt
  /markdown          Toggle markdown rendering
  /history           Show conversation history
  /status, /s        Show session statistics
  /quit, /q          Exit chat
`

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
