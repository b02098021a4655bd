// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollamactl.
//
// Configuration is a single TOML file with defaults for every key,
// environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags (--host, --log-level)
//   - Environment variables (OLLAMA_HOST, OLLAMACTL_*)
//   - ~/.ollamactl/config.toml, or the file given with --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client, err := ollama.NewBuilder().
//	    WithTransport(&http.Client{}).
//	    WithBaseURL(cfg.BaseURL).
//	    Build()
package config
