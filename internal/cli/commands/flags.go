// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"atlas/pkg/config"
)

// ResolvedFlags contains the resolved values for the global flags.
type ResolvedFlags struct {
	Config  string
	Verbose bool
}

// ResolveFlags resolves global flags with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Built-in defaults (lowest priority)
func ResolveFlags(cmd *cobra.Command) *ResolvedFlags {
	flags := &ResolvedFlags{}

	configFlag, _ := cmd.Flags().GetString("config")
	configEnv := os.Getenv("ATLAS_CONFIG")
	flags.Config = resolveString(configFlag, configEnv, config.DefaultConfigPath())

	verboseFlag, _ := cmd.Flags().GetBool("verbose")
	verboseEnv := parseBoolEnv(os.Getenv("ATLAS_VERBOSE"))
	flags.Verbose = resolveBool(verboseFlag, verboseEnv, false)

	return flags
}

// resolveString resolves a string value with precedence: flag > env > default.
func resolveString(flag, env, defaultValue string) string {
	if flag != "" {
		return flag
	}
	if env != "" {
		return env
	}
	return defaultValue
}

// resolveBool resolves a boolean value with precedence: flag > env > default.
func resolveBool(flag, env, defaultValue bool) bool {
	if flag {
		return true
	}
	if env {
		return true
	}
	return defaultValue
}

// parseBoolEnv parses a boolean from an environment variable.
// Returns false if the env var is not set or cannot be parsed.
func parseBoolEnv(value string) bool {
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return parsed
}
