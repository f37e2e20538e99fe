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
	"fmt"

	"github.com/spf13/cobra"
)

// NewSSCommand builds the "ss" command group, the Go re-expression of
// pymotifs/cli/commands.py's `ss` group: import and align secondary
// structure diagrams. The normalized CSV encoding internal/stages
// consumes stands in for the real Gutell-lab postscript format, which
// is out of scope (spec.md's external-collaborator boundary).
func NewSSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ss",
		Short: "Commands dealing with importing 2D diagrams",
	}

	cmd.AddCommand(newSSImportCommand())
	cmd.AddCommand(newSSAlignCommand())

	return cmd
}

func newSSImportCommand() *cobra.Command {
	var ssName string
	var recalculate []string

	cmd := &cobra.Command{
		Use:   "import FILENAME",
		Short: "Import a 2D diagram",
		Long:  "Parse the normalized diagram CSV in FILENAME and import its nucleotide positions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if ssName == "" {
				return fmt.Errorf("ss import: --ss-name is required")
			}

			entry := ssName + ":" + args[0]
			opts := runOptions{recalculate: recalculate}
			return env.execute(cmd.Context(), "ss.positions", []string{entry}, opts)
		},
	}

	cmd.Flags().StringVar(&ssName, "ss-name", "", "name for the diagram")
	cmd.Flags().StringArrayVar(&recalculate, "recalculate", nil, "force reprocessing for an entry (repeatable)")

	return cmd
}

func newSSAlignCommand() *cobra.Command {
	var recalculate []string

	cmd := &cobra.Command{
		Use:   "align PDB CHAIN FILENAME",
		Short: "Align a 2D diagram to an experimental chain",
		Long:  "Map the normalized diagram CSV in FILENAME onto PDB's CHAIN.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			entry := args[0] + ":" + args[1] + ":" + args[2]
			opts := runOptions{recalculate: recalculate}
			return env.execute(cmd.Context(), "ss.position_mapping", []string{entry}, opts)
		},
	}

	cmd.Flags().StringArrayVar(&recalculate, "recalculate", nil, "force reprocessing for an entry (repeatable)")

	return cmd
}
