// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package geometry is the external geometry engine collaborator:
// given a directory of structure files, it returns the path to a CSV
// of residue centers and discrepancies, or a non-empty error message
// meaning the engine itself failed (spec.md §6/§7's MatlabFailed). The
// core never interprets the numbers the engine produces; it only
// treats a non-empty engine error as fatal and consumes the CSV's
// columns by position.
package geometry

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"atlas/internal/pipeline"
	"atlas/pkg/executil"
)

// Engine computes per-residue centers and pairwise discrepancies for
// the structure files in dir. engineErr is the engine's own fatal
// complaint, distinct from err (a failure to even invoke it).
type Engine interface {
	Run(ctx context.Context, dir string) (outputCSVPath string, engineErr string, err error)
}

// ProcessEngine shells out to an external geometry binary (the real
// fr3d/MATLAB engine, out of scope per spec.md §1) via pkg/executil,
// the teacher's generic external-process wrapper kept largely as-is
// because it is domain-neutral.
type ProcessEngine struct {
	Runner  executil.Runner
	Command string
	Args    []string
}

// NewProcessEngine builds a ProcessEngine invoking command with args,
// given the target directory appended as the final argument.
func NewProcessEngine(command string, args ...string) *ProcessEngine {
	return &ProcessEngine{Runner: executil.NewRunner(), Command: command, Args: args}
}

// Run invokes the configured command against dir. The engine is
// expected to write its CSV output to <dir>/geometry.csv and print any
// fatal complaint to stderr; a non-empty stderr is surfaced as
// engineErr rather than as err, matching the spec's "a non-empty error
// message is fatal" contract (the process itself ran successfully; it
// is the domain computation that failed).
func (e *ProcessEngine) Run(ctx context.Context, dir string) (string, string, error) {
	args := append(append([]string{}, e.Args...), dir)
	result, err := e.Runner.Run(ctx, executil.NewCommand(e.Command, args...))
	if err != nil {
		return "", "", fmt.Errorf("geometry: invoking %s: %w", e.Command, err)
	}

	if msg := strings.TrimSpace(string(result.Stderr)); msg != "" {
		return "", msg, nil
	}

	return filepath.Join(dir, "geometry.csv"), "", nil
}

// CheckFatal converts a non-empty engine error message into the
// spec's §7 GeometryEngineError, the MatlabFailed analogue.
func CheckFatal(engineErr string) error {
	if engineErr == "" {
		return nil
	}
	return &pipeline.GeometryEngineError{Message: engineErr}
}
