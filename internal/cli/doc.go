// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ollamactl commands on top of pkg/ollama.
//
// # Key Types
//
//   - Command: enumeration of the available commands
//   - Args: global flags plus an ArgParser holding the command's own flags
//   - App: loaded config, logger, client and the output streams
//   - JSONResponse: the single envelope printed in --json mode
//
// # Usage
//
//	cmd, args := cli.Parse(os.Args[1:])
//	app, err := cli.NewApp(args)
//	if err != nil {
//	    os.Exit(cli.ReportError(os.Stdout, os.Stderr, args, err))
//	}
//	if err := app.Run(ctx, cmd, args); err != nil {
//	    os.Exit(cli.ReportError(os.Stdout, os.Stderr, args, err))
//	}
//
// # Output
//
// Command results go to stdout; progress, stats, prompts and logs go to
// stderr. Streaming replies are printed as they arrive. With --json every
// command prints exactly one envelope instead.
//
// # Exit Codes
//
//	0    success
//	1    server, decode or other runtime error
//	2    usage or validation error
//	3    model not found
//	4    server unreachable
//	5    invalid configuration
//	130  interrupted, or a confirmation prompt was declined
package cli
