// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline defines the stage protocol shared by every concrete
// stage kind (per-entry loader, simple loader, mass loader, exporter,
// container) and the explicit Outcome result variant stages return
// instead of raising a Skip exception.
package pipeline

import (
	"context"
	"time"

	"atlas/pkg/config"
	"atlas/pkg/logging"
	"atlas/internal/store"
)

// Deps bundles what every stage is constructed with: the active
// configuration and a session factory, threaded explicitly rather
// than reached for through a process-wide singleton.
type Deps struct {
	Config   *config.Config
	Sessions store.SessionRunner
	Logger   logging.Logger
}

// Outcome is the explicit result a stage's Process returns in place of
// raising a Skip-like exception for control flow.
type Outcome int

const (
	// OutcomeProcessed means the stage did its work for this entry.
	OutcomeProcessed Outcome = iota
	// OutcomeSkipped means the stage opted out for this entry; the
	// reason should be logged by the caller at warn level.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Stage is the single protocol all five stage kinds satisfy. Container
// stages carry no processing logic of their own; the planner expands
// them into their Members and the executor never calls Process on one
// (IsContainer reports true so the executor can refuse to run it).
type Stage interface {
	Name() string
	Dependencies() []string
	StopOnFailure() bool
	UpdateGap() (time.Duration, bool)
	Mark() bool
	IsContainer() bool
	Members() []string

	// IsMissing reports whether the stage considers entry's output
	// missing, used by the executor's should-process decision.
	IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error)

	// Process runs the stage for a single entry within sess, the
	// session the executor opened for this unit of work.
	Process(ctx context.Context, sess *store.Session, entry string) (Outcome, error)

	// Remove cleans up any partial write for entry. Called by the
	// executor before propagating a stop-on-failure error.
	Remove(ctx context.Context, sess *store.Session, entry string) error
}

// MassStage is the optional extension a mass loader implements: it
// receives every entry in one call and runs as a single transaction.
type MassStage interface {
	Stage
	ProcessAll(ctx context.Context, sess *store.Session, entries []string) (Outcome, error)
}

// Base supplies the common, rarely-overridden parts of the Stage
// protocol. Concrete stages embed *Base and override Process/IsMissing/
// Remove (and ProcessAll for mass stages).
type Base struct {
	StageName        string
	DependsOn        []string
	StopOnFailureFlag bool
	Gap              *time.Duration
	MarkFlag         bool
	Container        bool
	MemberNames      []string
}

func (b *Base) Name() string             { return b.StageName }
func (b *Base) Dependencies() []string    { return b.DependsOn }
func (b *Base) StopOnFailure() bool       { return b.StopOnFailureFlag }
func (b *Base) Mark() bool                { return b.MarkFlag }
func (b *Base) IsContainer() bool         { return b.Container }
func (b *Base) Members() []string         { return b.MemberNames }

func (b *Base) UpdateGap() (time.Duration, bool) {
	if b.Gap == nil {
		return 0, false
	}
	return *b.Gap, true
}

// Remove is a no-op by default; stages with side effects to undo
// override it.
func (b *Base) Remove(ctx context.Context, sess *store.Session, entry string) error { return nil }
