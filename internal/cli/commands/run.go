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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"atlas/internal/store"
)

// NewRunCommand builds the "run" subcommand, the Go re-expression of
// pymotifs/cli/commands.py's `run` command: run a named stage (or
// container) over an explicit list of entries, or the store's known
// entries when --known is given.
func NewRunCommand() *cobra.Command {
	var opts runOptions
	var known, all bool
	var exclude []string
	var seed int64
	var seedSet bool

	cmd := &cobra.Command{
		Use:   "run NAME [IDS...]",
		Short: "Run a stage or container stage over a set of entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := newEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if seedSet {
				opts.seed = &seed
			}

			name := args[0]
			ids := args[1:]

			if len(ids) == 0 {
				ids, err = resolveEntries(cmd.Context(), env, all, known, exclude)
				if err != nil {
					return err
				}
			}

			return env.execute(cmd.Context(), name, ids, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show actions without executing")
	cmd.Flags().BoolVar(&opts.skipDependencies, "skip-dependencies", false, "run only the named stage, not its dependencies")
	cmd.Flags().StringArrayVar(&opts.skipStage, "skip-stage", nil, "exclude a stage from the plan (repeatable)")
	cmd.Flags().StringArrayVar(&opts.recalculate, "recalculate", nil, "force reprocessing for an entry (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "deterministic handle-allocation seed")
	cmd.Flags().BoolVar(&opts.ignoreTime, "ignore-time", false, "ignore update-gap staleness checks")
	cmd.Flags().BoolVar(&all, "all", false, "use every PDB the configured catalog reports")
	cmd.Flags().BoolVar(&known, "known", false, "use only PDBs already known to the store")
	cmd.Flags().String("after-date", "", "only entries released after this date (informational, requires an external catalog)")
	cmd.Flags().String("before-date", "", "only entries released before this date (informational, requires an external catalog)")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "exclude a PDB id from the resolved entry list (repeatable)")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		seedSet = cmd.Flags().Changed("seed")
		return nil
	}

	return cmd
}

// resolveEntries implements --known/--all when no explicit ids are
// given on the command line, the Go analogue of
// pymotifs/cli/setup.py's pdbs() helper.
func resolveEntries(ctx context.Context, env *environment, all, known bool, exclude []string) ([]string, error) {
	excludeSet := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excludeSet[e] = true
	}

	var entries []string
	switch {
	case known:
		var err error
		entries, err = knownPDBs(ctx, env)
		if err != nil {
			return nil, err
		}
	case all:
		return nil, fmt.Errorf("--all requires an external catalog, which is out of scope for this build; use --known or pass explicit ids")
	default:
		return nil, fmt.Errorf("no entries given: pass explicit ids, or use --known")
	}

	if len(excludeSet) == 0 {
		return entries, nil
	}
	filtered := entries[:0]
	for _, e := range entries {
		if !excludeSet[e] {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func knownPDBs(ctx context.Context, env *environment) ([]string, error) {
	var entries []string
	err := env.sessions.RunInSession(ctx, func(sess *store.Session) error {
		var err error
		entries, err = sess.DistinctPDBs()
		return err
	})
	return entries, err
}
