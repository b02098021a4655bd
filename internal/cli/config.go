// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - The "config" command.
//
// Examples:
//
//	ollamactl config                          Show effective configuration
//	ollamactl config get default_model        Print one value
//	ollamactl config set log.level debug      Change the config file
//	ollamactl config reset --yes              Write the defaults
//	ollamactl config path                     Print the config file path
//	ollamactl config keys                     List every key
//
// "show" and "get" report the effective values, environment overrides and
// global flags included. "set" and "reset" edit only the file.
package cli

import (
	"encoding"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-ollama/internal/config"
)

func (a *App) runConfig(args Args) error {
	sub := args.Flags.Positional(0)
	switch sub {
	case "", "show":
		return a.configShow()
	case "get":
		return a.configGet(args.Flags.Positional(1))
	case "set":
		if args.Flags.PositionalCount() != 3 {
			return NewUsageError("ollamactl config set KEY VALUE", "expected KEY and VALUE")
		}
		return a.configSet(args.Flags.Positional(1), args.Flags.Positional(2))
	case "reset":
		if err := a.confirm("reset "+a.ConfigPath+" to defaults", commandUsage[CmdConfig], args.Flags); err != nil {
			return err
		}
		return a.configWrite("reset", config.Default())
	case "path":
		return a.configPath()
	case "keys":
		keys := config.GetAllKeys()
		if a.JSON {
			return a.emit("config keys", keys)
		}
		fmt.Fprintln(a.Stdout, strings.Join(keys, "\n"))
		return nil
	default:
		return NewUsageError(commandUsage[CmdConfig], "unknown config subcommand %q", sub)
	}
}

func (a *App) configShow() error {
	if a.JSON {
		return a.emit("config show", a.Config)
	}
	fmt.Fprintln(a.Stdout, DimStyle.Render("# "+configPathLabel(a.ConfigPath)))
	return toml.NewEncoder(a.Stdout).Encode(a.Config)
}

func (a *App) configGet(key string) error {
	if key == "" {
		return NewUsageError("ollamactl config get KEY", "no config key provided")
	}
	v, err := a.Config.Get(key)
	if err != nil {
		return NewValidationError("config key", key, err.Error())
	}
	if a.JSON {
		return a.emit("config get", map[string]any{"key": key, "value": v})
	}
	fmt.Fprintln(a.Stdout, formatConfigValue(v))
	return nil
}

func (a *App) configSet(key, value string) error {
	cfg, err := config.ReadFile(a.ConfigPath)
	if err != nil {
		return &ConfigError{Err: err}
	}
	if err := cfg.Set(key, value); err != nil {
		return NewValidationError("config key", key, err.Error())
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := config.SaveTOML(cfg, a.ConfigPath); err != nil {
		return &ConfigError{Err: err}
	}

	if a.JSON {
		return a.emit("config set", map[string]string{"key": key, "value": value, "path": a.ConfigPath})
	}
	fmt.Fprintf(a.Stdout, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func (a *App) configWrite(what string, cfg *config.Config) error {
	if err := config.SaveTOML(cfg, a.ConfigPath); err != nil {
		return &ConfigError{Err: err}
	}
	if a.JSON {
		return a.emit("config "+what, map[string]string{"path": a.ConfigPath})
	}
	fmt.Fprintf(a.Stdout, "%s Configuration reset to defaults in %s\n", SuccessStyle.Render("[OK]"), a.ConfigPath)
	return nil
}

func (a *App) configPath() error {
	_, err := os.Stat(a.ConfigPath)
	exists := err == nil
	if a.JSON {
		return a.emit("config path", map[string]any{"path": a.ConfigPath, "exists": exists})
	}
	fmt.Fprintln(a.Stdout, a.ConfigPath)
	if !exists {
		a.note("(file does not exist; defaults are in use)")
	}
	return nil
}

// formatConfigValue prints durations as "30s" rather than a struct.
func formatConfigValue(v any) string {
	if tm, ok := v.(encoding.TextMarshaler); ok {
		if b, err := tm.MarshalText(); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}
