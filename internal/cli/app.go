// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared command runtime: config, logger, client and output.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/internal/logging"
	"github.com/jeranaias/rigrun-ollama/pkg/ollama"
)

// App carries everything a command handler needs. Handlers write command
// output to Stdout and progress, stats and prompts to Stderr.
type App struct {
	Config     *config.Config
	ConfigPath string
	Client     *ollama.Client
	Logger     *slog.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	JSON  bool
	Quiet bool

	// Interactive is true when Stdout is a terminal: markdown rendering
	// and the live pull progress bar are only used then.
	Interactive bool
}

// NewApp loads configuration, applies the global flag overrides and builds
// the client with its transport chain:
//
//	http.Client -> LoggingTransport -> RateLimitedTransport (when configured)
func NewApp(args Args) (*App, error) {
	cfg, cfgPath, err := loadConfig(args.ConfigPath)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	if args.Host != "" {
		cfg.BaseURL = config.NormalizeHost(args.Host)
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	client, err := newClient(cfg, &http.Client{}, logger)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	return &App{
		Config:      cfg,
		ConfigPath:  cfgPath,
		Client:      client,
		Logger:      logger,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		JSON:        args.JSON,
		Quiet:       args.Quiet,
		Interactive: IsStdoutTTY() && !args.JSON,
	}, nil
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadFromPath(path)
		return cfg, path, err
	}
	path, err := config.ConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load()
	return cfg, path, err
}

// newClient wraps base in the logging and rate limiting decorators.
func newClient(cfg *config.Config, base ollama.Transport, logger *slog.Logger) (*ollama.Client, error) {
	var transport ollama.Transport = &ollama.LoggingTransport{Next: base, Logger: logger}
	transport = ollama.NewRateLimitedTransport(transport, cfg.RequestsPerSecond)

	return ollama.NewBuilder().
		WithTransport(transport).
		WithBaseURL(cfg.BaseURL).
		WithLogger(logger).
		Build()
}

// Run dispatches cmd. Every command except the chat REPL is cancelled as a
// whole by Ctrl+C; the REPL cancels only the reply in flight.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	if cmd != CmdChat {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	var err error
	switch cmd {
	case CmdHelp:
		PrintUsage(a.Stdout)
	case CmdVersion:
		err = a.runVersion()
	case CmdChat:
		err = a.runChat(ctx, args)
	case CmdGenerate:
		err = a.runGenerate(ctx, args)
	case CmdEmbed:
		err = a.runEmbed(ctx, args)
	case CmdSearch:
		err = a.runSearch(ctx, args)
	case CmdPull:
		err = a.runPull(ctx, args)
	case CmdList:
		err = a.runList(ctx)
	case CmdShow:
		err = a.runShow(ctx, args)
	case CmdRemove:
		err = a.runRemove(ctx, args)
	case CmdCopy:
		err = a.runCopy(ctx, args)
	case CmdStatus:
		err = a.runStatus(ctx)
	case CmdConfig:
		err = a.runConfig(args)
	default:
		err = NewUsageError("ollamactl help", "unknown command %q", args.Name)
		if s := SuggestCommand(args.Name); s != "" {
			err = NewUsageError("ollamactl help", "unknown command %q; did you mean %q?", args.Name, s)
		}
	}
	return canceled(ctx, err)
}

// canceled turns the transport error produced by an interrupted request into
// errCanceled so it exits with 130 and no server hint.
func canceled(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && (ollama.IsTransport(err) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%w: %v", errCanceled, err)
	}
	return err
}

// ReportError prints err as a JSON envelope on stdout in --json mode, or in
// ErrorStyle on stderr otherwise, and returns the exit status.
func ReportError(stdout, stderr io.Writer, args Args, err error) int {
	if err == nil {
		return ExitSuccess
	}
	if args.JSON {
		NewJSONErrorResponse(args.Name, err).Write(stdout)
	} else {
		DisplayError(stderr, err)
	}
	return GetExitCode(err)
}

// =============================================================================
// HELPERS
// =============================================================================

// model returns the --model flag or the configured default.
func (a *App) model(args Args) string {
	if args.Model != "" {
		return args.Model
	}
	return a.Config.DefaultModel
}

func (a *App) embedModel(args Args) string {
	if args.Model != "" {
		return args.Model
	}
	return a.Config.EmbedModel
}

// callContext bounds a non-streaming call by the configured timeout.
func (a *App) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Config.Timeout.Duration <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Config.Timeout.Duration)
}

// emit writes the --json envelope for a successful command.
func (a *App) emit(command string, data any) error {
	return NewJSONResponse(command, data).Write(a.Stdout)
}

// note writes a human progress or stats line to Stderr unless --quiet.
func (a *App) note(format string, args ...any) {
	if a.Quiet {
		return
	}
	fmt.Fprintln(a.Stderr, DimStyle.Render(fmt.Sprintf(format, args...)))
}

func (a *App) runVersion() error {
	if a.JSON {
		return a.emit("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
		})
	}
	PrintVersion(a.Stdout)
	return nil
}
