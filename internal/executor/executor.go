// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executor drives a single stage over a collection of entries
// with per-entry recompute checks, error isolation, recovery, and
// completion marking. Grounded on the dispatch loop of a Loader/
// SimpleLoader/MassLoader/Exporter stage call, re-expressed with an
// explicit pipeline.Outcome result instead of catching a Skip
// exception.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atlas/internal/metrics"
	"atlas/internal/pipeline"
	"atlas/internal/registry"
	"atlas/internal/store"
	"atlas/pkg/logging"
)

// Options configures one Run.
type Options struct {
	// DenyEntries are hard-skipped regardless of any other signal.
	DenyEntries map[string]bool

	// Recalculate forces processing for these entries even when
	// analysis-status says they're current.
	Recalculate map[string]bool

	// RecomputeStage forces processing for every entry of a stage,
	// mirroring the config-driven per-stage recompute flag.
	RecomputeStage func(stageName string) bool

	// DryRun replaces every write with a log statement; no
	// analysis-status rows are written.
	DryRun bool

	// IgnoreTime disables the update-gap staleness check.
	IgnoreTime bool

	// Now returns the current time; overridable for deterministic tests.
	Now func() time.Time
}

// Executor runs a planner.Plan to completion or the first
// stop-on-failure error.
type Executor struct {
	Registry *registry.Registry
	Deps     pipeline.Deps
	Logger   logging.Logger
	Options  Options
}

// New builds an Executor.
func New(reg *registry.Registry, deps pipeline.Deps, logger logging.Logger, opts Options) *Executor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DenyEntries == nil {
		opts.DenyEntries = map[string]bool{}
	}
	if opts.Recalculate == nil {
		opts.Recalculate = map[string]bool{}
	}
	return &Executor{Registry: reg, Deps: deps, Logger: logger, Options: opts}
}

// StepNames is the minimal shape the executor needs from a plan, so
// it does not import the planner package directly and can be driven
// by a hand-built sequence in tests.
type StepNames interface {
	Names() []string
}

// Run executes every stage in plan, in order, against entries.
func (e *Executor) Run(ctx context.Context, plan StepNames, entries []string) error {
	normalized := make([]string, len(entries))
	for i, en := range entries {
		normalized[i] = strings.ToUpper(en)
	}

	for _, stageName := range plan.Names() {
		stage, err := e.Registry.Build(stageName, e.Deps)
		if err != nil {
			return err
		}
		if stage.IsContainer() {
			return fmt.Errorf("executor: container stage %q must not appear in an executed plan", stageName)
		}

		if mass, ok := stage.(pipeline.MassStage); ok {
			if err := e.runMass(ctx, mass, normalized); err != nil {
				return err
			}
			continue
		}

		if err := e.runPerEntry(ctx, stage, normalized); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) runPerEntry(ctx context.Context, stage pipeline.Stage, entries []string) error {
	for i, entry := range entries {
		e.Logger.Debug("processing entry", logging.NewField("stage", stage.Name()),
			logging.NewField("entry", entry), logging.NewField("index", i))

		if e.Options.DenyEntries[entry] {
			e.Logger.Warn("entry hard-skipped", logging.NewField("stage", stage.Name()), logging.NewField("entry", entry))
			continue
		}

		start := e.Options.Now()
		result := "skipped"
		err := e.Deps.Sessions.RunInSession(ctx, func(sess *store.Session) error {
			should, err := e.shouldProcess(ctx, sess, stage, entry)
			if err != nil {
				return err
			}
			if !should {
				return store.ErrSkip
			}

			if e.Options.DryRun {
				e.Logger.Info("dry-run: would process entry", logging.NewField("stage", stage.Name()), logging.NewField("entry", entry))
				return store.ErrSkip
			}

			outcome, procErr := stage.Process(ctx, sess, entry)
			if procErr != nil {
				return procErr
			}
			if outcome == pipeline.OutcomeSkipped {
				e.Logger.Warn("stage skipped entry", logging.NewField("stage", stage.Name()), logging.NewField("entry", entry))
				return store.ErrSkip
			}

			if stage.Mark() {
				if err := sess.MarkProcessed(entry, stage.Name(), e.Options.Now()); err != nil {
					return err
				}
			}
			result = "processed"
			return nil
		})

		if err != nil && !errors.Is(err, store.ErrSkip) {
			result = "failed"
		}
		metrics.ObserveEntry(stage.Name(), e.Options.Now().Sub(start), result)

		if err == nil || errors.Is(err, store.ErrSkip) {
			continue
		}

		if stage.StopOnFailure() {
			_ = e.Deps.Sessions.RunInSession(ctx, func(sess *store.Session) error {
				return stage.Remove(ctx, sess, entry)
			})
			return &pipeline.StageFailedError{Stage: stage.Name(), Entry: entry, Cause: err}
		}

		e.Logger.Error("entry failed, continuing", logging.NewField("stage", stage.Name()),
			logging.NewField("entry", entry), logging.NewField("error", err.Error()))
	}
	return nil
}

func (e *Executor) runMass(ctx context.Context, stage pipeline.MassStage, entries []string) error {
	var outcome pipeline.Outcome
	err := e.Deps.Sessions.RunInSession(ctx, func(sess *store.Session) error {
		if e.Options.DryRun {
			e.Logger.Info("dry-run: would process mass stage", logging.NewField("stage", stage.Name()))
			return store.ErrSkip
		}

		o, procErr := stage.ProcessAll(ctx, sess, entries)
		if procErr != nil {
			return procErr
		}
		outcome = o
		if outcome == pipeline.OutcomeSkipped {
			return store.ErrSkip
		}
		if stage.Mark() {
			for _, entry := range entries {
				if err := sess.MarkProcessed(entry, stage.Name(), e.Options.Now()); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err == nil || errors.Is(err, store.ErrSkip) {
		return nil
	}

	if stage.StopOnFailure() {
		return &pipeline.StageFailedError{Stage: stage.Name(), Cause: err}
	}

	e.Logger.Error("mass stage failed, continuing", logging.NewField("stage", stage.Name()), logging.NewField("error", err.Error()))
	return nil
}

// shouldProcess implements the per-entry decision procedure: hard-skip
// deny-set (handled by the caller before opening a session),
// recalculate override, update-gap staleness, and missing-data
// fallback.
func (e *Executor) shouldProcess(ctx context.Context, sess *store.Session, stage pipeline.Stage, entry string) (bool, error) {
	if e.Options.Recalculate[entry] {
		return true, nil
	}
	if e.Options.RecomputeStage != nil && e.Options.RecomputeStage(stage.Name()) {
		return true, nil
	}

	if gap, ok := stage.UpdateGap(); ok && !e.Options.IgnoreTime {
		last, found, err := sess.LastAnalysisTime(entry, stage.Name())
		if err != nil {
			return false, err
		}
		if !found {
			return true, nil
		}
		if e.Options.Now().Sub(last) >= gap {
			return true, nil
		}
	}

	missing, err := stage.IsMissing(ctx, sess, entry)
	if err != nil {
		return false, err
	}
	if missing {
		return true, nil
	}

	return false, nil
}
