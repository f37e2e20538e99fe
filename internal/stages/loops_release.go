// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"fmt"
	"time"

	"atlas/internal/pipeline"
	"atlas/internal/store"
)

// loopReleaseRow carries the description text through to the Storer;
// the release id itself is allocated inside Store, where a session is
// available to check the prior release.
type loopReleaseRow struct {
	description string
}

type loopReleaseStorer struct {
	now func() time.Time
}

func (s loopReleaseStorer) Store(ctx context.Context, sess *store.Session, rows []pipeline.Row, merge bool) error {
	for _, row := range rows {
		r, ok := row.(loopReleaseRow)
		if !ok {
			return fmt.Errorf("stages: loops.release produced unexpected row type %T", row)
		}

		prior, hasPrior, err := sess.LatestLoopRelease()
		if err != nil {
			return err
		}
		nextID := "0.1"
		if hasPrior {
			next, err := nextMinorID(prior.ID)
			if err != nil {
				return err
			}
			nextID = next
		}

		if err := sess.InsertLoopRelease(store.LoopRelease{ID: nextID, Date: s.now(), Description: r.description}); err != nil {
			return err
		}
	}
	return nil
}

// newLoopsRelease builds the mass stage that allocates one new loop
// release per run, ahead of the first motif release, grounded on
// pymotifs/loops/release.py.
func newLoopsRelease(deps pipeline.Deps) pipeline.Stage {
	storer := loopReleaseStorer{now: time.Now}

	return &pipeline.MassLoader{
		Base: &pipeline.Base{StageName: "loops.release", DependsOn: []string{"loops.extract"}, MarkFlag: true},
		DataAll: func(ctx context.Context, entries []string) ([]pipeline.Row, error) {
			desc := fmt.Sprintf("loop release covering %d entries", len(entries))
			return []pipeline.Row{loopReleaseRow{description: desc}}, nil
		},
		Storer: storer,
	}
}
