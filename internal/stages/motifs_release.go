// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"fmt"
	"time"

	"atlas/internal/motifs"
	"atlas/internal/pipeline"
	"atlas/internal/store"
	"atlas/pkg/logging"
)

// motifsReleaseStage commits a new motif release from a candidate
// grouping CSV. Unlike the four generic stage kinds it produces one
// entire atomically-committed release rather than per-entry rows, so
// it implements pipeline.Stage directly rather than embedding one of
// internal/pipeline's generic kinds (spec.md's data-flow overview
// describes exactly this shape). The entry string it receives is the
// path to the candidate (loop_id, group_label) CSV spec.md §6 names.
type motifsReleaseStage struct {
	*pipeline.Base
	typ       store.ReleaseType
	committer *motifs.Committer
	deps      pipeline.Deps
}

func newMotifsRelease(typ store.ReleaseType) registryFactory {
	return func(deps pipeline.Deps) pipeline.Stage {
		var artifacts motifs.ArtifactStager
		if deps.Config != nil {
			artifacts = &motifs.FileStager{
				SourceDir:        deps.Config.Paths.LoopMatRoot,
				MatDestDir:       deps.Config.Paths.Diagram2DDst,
				DiagramSourceDir: deps.Config.Paths.Diagram2DSrc,
				DiagramDestRoot:  deps.Config.Paths.Diagram2DDst,
			}
		}

		seed := time.Now().UnixNano()
		if deps.Config != nil && deps.Config.Seed != nil {
			seed = *deps.Config.Seed
		}

		committer := motifs.NewCommitter(deps.Sessions, motifs.NewHandleAllocator(seed), artifacts, deps.Logger)

		return &motifsReleaseStage{
			Base:      &pipeline.Base{StageName: "motifs.release." + stageSuffix(typ), DependsOn: []string{"loops.release"}, StopOnFailureFlag: true, MarkFlag: true},
			typ:       typ,
			committer: committer,
			deps:      deps,
		}
	}
}

// registryFactory matches registry.Factory without importing the
// registry package into every stage constructor's signature.
type registryFactory = func(deps pipeline.Deps) pipeline.Stage

func stageSuffix(typ store.ReleaseType) string {
	switch typ {
	case store.ReleaseTypeInternal:
		return "il"
	case store.ReleaseTypeHairpin:
		return "hl"
	case store.ReleaseTypeJunction:
		return "jl"
	default:
		return string(typ)
	}
}

func (s *motifsReleaseStage) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	_, has, err := sess.LatestRelease(s.typ)
	if err != nil {
		return false, err
	}
	return !has, nil
}

func (s *motifsReleaseStage) Process(ctx context.Context, sess *store.Session, entry string) (pipeline.Outcome, error) {
	newColl, err := motifs.FromCSV(entry, "")
	if err != nil {
		return pipeline.OutcomeProcessed, err
	}

	prior, hasPrior, err := sess.LatestRelease(s.typ)
	if err != nil {
		return pipeline.OutcomeProcessed, err
	}

	var oldColl *motifs.Collection
	if hasPrior {
		oldColl, err = motifs.FromRelease(ctx, sess, prior.ID, s.typ)
		if err != nil {
			return pipeline.OutcomeProcessed, err
		}
	} else {
		oldColl, err = motifs.NewCollection(nil, nil, "")
		if err != nil {
			return pipeline.OutcomeProcessed, err
		}
	}

	mode := store.ReleaseModeMinor
	if s.deps.Config != nil {
		mode = store.ReleaseMode(s.deps.Config.ModeFor(string(s.typ)))
	}

	releaseID, err := s.committer.Commit(ctx, motifs.CommitInput{
		Type:         s.typ,
		Mode:         mode,
		Description:  fmt.Sprintf("release imported from %s", entry),
		New:          newColl,
		Old:          oldColl,
		DirectParent: hasPrior,
	})
	if err != nil {
		return pipeline.OutcomeProcessed, err
	}

	s.deps.Logger.Info("committed motif release",
		logging.NewField("type", string(s.typ)), logging.NewField("release", releaseID))
	return pipeline.OutcomeProcessed, nil
}

func (s *motifsReleaseStage) Remove(ctx context.Context, sess *store.Session, entry string) error {
	prior, has, err := sess.LatestRelease(s.typ)
	if err != nil || !has {
		return err
	}
	return sess.RemoveRelease(prior.ID, s.typ)
}
