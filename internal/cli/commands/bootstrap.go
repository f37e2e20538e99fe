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

// NewBootstrapCommand builds the "bootstrap" subcommand, the Go
// re-expression of pymotifs/cli/commands.py's `bootstrap`: populate a
// fresh database with the "update" container over the config file's
// fixed pdbs list, forcing seed=1 and excluding units.distances.
func NewBootstrapCommand() *cobra.Command {
	var exclude []string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Populate a testing database from the config's pdbs list",
		Long: "Populate a testing database with default data for testing. The " +
			"config file MUST contain a pdbs section naming the entries to " +
			"load. This does not import distance data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if len(env.cfg.PDBs) == 0 {
				return fmt.Errorf("bootstrap: config file has no pdbs section")
			}

			seed := int64(1)
			opts := runOptions{
				skipStage: append([]string{"units.distances"}, exclude...),
				seed:      &seed,
			}

			return env.execute(cmd.Context(), "update", env.cfg.PDBs, opts)
		},
	}

	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "exclude an additional stage (repeatable)")

	return cmd
}
