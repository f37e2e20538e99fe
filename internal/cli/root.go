// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package cli wires together the atlas root Cobra command and global
// CLI options, the Go re-expression of pymotifs/cli/commands.py's
// `cli` group.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"atlas/internal/cli/commands"
)

// NewRootCommand constructs the atlas root Cobra command, wiring the
// run/bootstrap/ss subcommands.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("ATLAS_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "atlasctl",
		Short:         "atlasctl – RNA 3D structural motif atlas update pipeline",
		Long:          "atlasctl runs part or all of the motif atlas update pipeline: loop extraction, motif clustering, and versioned release bookkeeping.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - registered in lexicographic order for deterministic help output.
	cmd.PersistentFlags().StringP("config", "c", "", "path to atlas config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of atlasctl",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "atlasctl version %s\n", version)
		},
	})

	// Subcommands - keep registrations in lexicographic order by .Use.
	cmd.AddCommand(commands.NewBootstrapCommand())
	cmd.AddCommand(commands.NewRunCommand())
	cmd.AddCommand(commands.NewSSCommand())

	return cmd
}
