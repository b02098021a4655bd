// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command line parsing and help text for ollamactl.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdChat
	CmdGenerate
	CmdEmbed
	CmdSearch
	CmdPull
	CmdList
	CmdShow
	CmdRemove
	CmdCopy
	CmdStatus
	CmdConfig
	CmdVersion
	CmdUnknown
)

var commandNames = map[string]Command{
	"help":     CmdHelp,
	"chat":     CmdChat,
	"generate": CmdGenerate,
	"gen":      CmdGenerate,
	"embed":    CmdEmbed,
	"search":   CmdSearch,
	"pull":     CmdPull,
	"list":     CmdList,
	"ls":       CmdList,
	"show":     CmdShow,
	"rm":       CmdRemove,
	"delete":   CmdRemove,
	"cp":       CmdCopy,
	"copy":     CmdCopy,
	"status":   CmdStatus,
	"s":        CmdStatus,
	"config":   CmdConfig,
	"version":  CmdVersion,
}

// commandBoolFlags lists the boolean flags each command accepts, so the
// parser never mistakes the following positional for their value.
var commandBoolFlags = map[Command][]string{
	CmdChat:     {"markdown"},
	CmdGenerate: {"raw", "markdown"},
	CmdEmbed:    {"store"},
	CmdPull:     {"insecure"},
	CmdShow:     {"modelfile"},
	CmdRemove:   {"yes", "y"},
	CmdConfig:   {"yes", "y"},
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Host       string
	LogLevel   string
	Model      string
	JSON       bool
	Quiet      bool

	// Name is the command as typed, kept for error messages and the JSON
	// envelope.
	Name string

	// Flags holds the command's own flags and positional arguments.
	Flags *ArgParser
}

const usageText = `ollamactl - command line client for a local Ollama server

Usage:
  ollamactl <command> [flags] [args]

Commands:
  chat [PROMPT]              Chat with a model; no PROMPT starts a REPL
  generate, gen PROMPT       Single-prompt completion
  embed TEXT...              Compute embeddings ("-" reads lines from stdin)
  search QUERY               Rank stored embeddings against QUERY
  pull NAME                  Download a model with progress
  list, ls                   List installed models
  show NAME                  Show model details
  rm NAME                    Delete a model
  cp SOURCE DESTINATION      Copy a model under a new name
  status, s                  Check that the server is reachable
  config [show|get|set|reset|path|keys]
                             Inspect or change configuration
  version                    Print version information
  help                       Show this help

Command flags:
  chat      --system TEXT  --markdown  --temperature F
  generate  --system TEXT  --format json  --raw  --markdown  --temperature F
  embed     --store
  search    --limit N (default 5)
  pull      --insecure
  show      --modelfile
  rm        -y, --yes (required when stdin is not a terminal)

Global flags:
  --config PATH              Config file (default ~/.ollamactl/config.toml)
  --host URL                 Server address (overrides OLLAMA_HOST)
  -m, --model NAME           Model to use (default from config)
  --json                     Emit one JSON envelope on stdout
  --log-level LEVEL          debug, info, warn, error
  -q, --quiet                Suppress progress and stats output
  -h, --help                 Show this help

Examples:
  ollamactl pull llama3.2
  ollamactl chat "Why is the sky blue?"
  ollamactl embed --store "cats purr" "dogs bark"
  ollamactl search --limit 3 "kittens"
  ollamactl --json list

Version: %s
`

// commandUsage is the one-line synopsis shown under usage errors.
var commandUsage = map[Command]string{
	CmdChat:     "ollamactl chat [--model M] [--system S] [--markdown] [PROMPT]",
	CmdGenerate: "ollamactl generate [--model M] [--system S] [--format json] PROMPT",
	CmdEmbed:    "ollamactl embed [--model M] [--store] TEXT... | -",
	CmdSearch:   "ollamactl search [--model M] [--limit N] QUERY",
	CmdPull:     "ollamactl pull [--insecure] NAME",
	CmdShow:     "ollamactl show [--modelfile] NAME",
	CmdRemove:   "ollamactl rm [--yes] NAME",
	CmdCopy:     "ollamactl cp SOURCE DESTINATION",
	CmdConfig:   "ollamactl config [show|get KEY|set KEY VALUE|reset [--yes]|path|keys]",
}

// PrintUsage prints the usage/help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "ollamactl version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s\n", runtime.Version())
}

// Parse parses argv (without the program name) into a command and its
// arguments. Global flags may appear anywhere before "--".
func Parse(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		parsedArgs.Flags = NewArgParser(nil)
		return CmdHelp, parsedArgs
	}

	parsedArgs.Name = strings.ToLower(remaining[0])
	cmd, ok := commandNames[parsedArgs.Name]
	if !ok {
		cmd = CmdUnknown
	}
	parsedArgs.Flags = NewArgParser(remaining[1:], commandBoolFlags[cmd]...)
	return cmd, parsedArgs
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args
	help := false

	// value reads the flag's value from "--flag=value" or the next argument.
	value := func(i *int, arg, name string) (string, bool) {
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v, true
		}
		if arg == name && *i+1 < len(args) {
			*i++
			return args[*i], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			remaining = append(remaining, args[i:]...)
			break
		}

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
			continue
		case "--json":
			parsedArgs.JSON = true
			continue
		case "-h", "--help":
			help = true
			continue
		case "--version":
			remaining = append([]string{"version"}, remaining...)
			continue
		}

		if v, ok := value(&i, arg, "--config"); ok {
			parsedArgs.ConfigPath = v
		} else if v, ok := value(&i, arg, "--host"); ok {
			parsedArgs.Host = v
		} else if v, ok := value(&i, arg, "--log-level"); ok {
			parsedArgs.LogLevel = v
		} else if v, ok := value(&i, arg, "--model"); ok {
			parsedArgs.Model = v
		} else if v, ok := value(&i, arg, "-m"); ok {
			parsedArgs.Model = v
		} else {
			remaining = append(remaining, arg)
		}
	}

	if help {
		return nil, parsedArgs
	}
	return remaining, parsedArgs
}
