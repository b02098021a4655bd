// ollamactl - command line client for a local Ollama server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"

	"github.com/jeranaias/rigrun-ollama/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	// help and version need no config or server.
	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return
	case cli.CmdVersion:
		if !args.JSON {
			cli.PrintVersion(os.Stdout)
			return
		}
	}

	app, err := cli.NewApp(args)
	if err != nil {
		os.Exit(cli.ReportError(os.Stdout, os.Stderr, args, err))
	}
	if err := app.Run(context.Background(), cmd, args); err != nil {
		os.Exit(cli.ReportError(os.Stdout, os.Stderr, args, err))
	}
}
