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

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"atlas/internal/executor"
	"atlas/internal/pipeline"
	"atlas/internal/planner"
	"atlas/internal/registry"
	"atlas/internal/report"
	_ "atlas/internal/stages"
	"atlas/internal/store"
	"atlas/pkg/config"
	"atlas/pkg/logging"
)

// environment bundles what every run command needs, built once from
// the resolved global flags.
type environment struct {
	cfg      *config.Config
	sessions *store.SessionFactory
	logger   logging.Logger
	mailer   *report.Mailer
}

// newEnvironment loads the config, opens the database, and ensures
// the schema is current -- the Go equivalent of pymotifs.cli.commands.cli's
// setup.logs/conf.load/create_engine sequence.
func newEnvironment(cmd *cobra.Command) (*environment, error) {
	flags := ResolveFlags(cmd)

	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	sessions, err := store.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sessions.EnsureSchema(cmd.Context()); err != nil {
		_ = sessions.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &environment{
		cfg:      cfg,
		sessions: sessions,
		logger:   logging.NewLogger(flags.Verbose),
		mailer:   report.NewMailer(cfg.Mail),
	}, nil
}

func (e *environment) close() {
	_ = e.sessions.Close()
}

// runOptions is the shared shape of the per-run flags, populated by
// both "run" and "ss" subcommands.
type runOptions struct {
	dryRun           bool
	skipDependencies bool
	skipStage        []string
	recalculate      []string
	seed             *int64
	ignoreTime       bool
}

// execute builds a plan for name and drives it to completion over
// ids, mailing a best-effort failure report on any error the executor
// returns (spec.md §7's CLI-level error-propagation boundary); a
// planning error is returned without a report. The report body carries
// the run id and the error text; no log output is captured for it.
func (e *environment) execute(ctx context.Context, name string, ids []string, opts runOptions) error {
	if opts.seed != nil {
		e.cfg.Seed = opts.seed
	}

	runID := uuid.NewString()
	logger := e.logger.WithFields(logging.NewField("run_id", runID), logging.NewField("stage", name))

	deps := pipeline.Deps{Config: e.cfg, Sessions: e.sessions, Logger: logger}

	plan, err := planner.New(registry.Default, deps).Plan(name, opts.skipStage, opts.skipDependencies)
	if err != nil {
		return fmt.Errorf("planning %q: %w", name, err)
	}

	recalc := make(map[string]bool, len(opts.recalculate))
	for _, entry := range opts.recalculate {
		recalc[entry] = true
	}

	execOpts := executor.Options{
		Recalculate: recalc,
		RecomputeStage: func(stageName string) bool {
			return e.cfg.Recompute(stageName)
		},
		DryRun:     opts.dryRun,
		IgnoreTime: opts.ignoreTime,
	}

	runErr := executor.New(registry.Default, deps, logger, execOpts).Run(ctx, plan, ids)
	if runErr != nil {
		report.OnFailure(e.mailer, logger, runErr, fmt.Sprintf("run %s: %s", runID, runErr.Error()))
		return runErr
	}
	return nil
}
