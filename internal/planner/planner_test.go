// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/internal/pipeline"
	"atlas/internal/registry"
	"atlas/internal/store"
)

// fakeStage is a minimal Stage used only for graph shape; Process is
// never invoked by the planner.
type fakeStage struct {
	*pipeline.Base
}

func (f *fakeStage) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	return false, nil
}

func (f *fakeStage) Process(ctx context.Context, sess *store.Session, entry string) (pipeline.Outcome, error) {
	return pipeline.OutcomeProcessed, nil
}

func newTestRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("units.info", func(d pipeline.Deps) pipeline.Stage {
		return &fakeStage{Base: &pipeline.Base{StageName: "units.info"}}
	})
	reg.Register("units.ife", func(d pipeline.Deps) pipeline.Stage {
		return &fakeStage{Base: &pipeline.Base{StageName: "units.ife", DependsOn: []string{"units.info"}}}
	})
	reg.Register("motifs.release", func(d pipeline.Deps) pipeline.Stage {
		return &fakeStage{Base: &pipeline.Base{StageName: "motifs.release", DependsOn: []string{"units.ife", "units.info"}}}
	})
	reg.Register("export.loops", func(d pipeline.Deps) pipeline.Stage {
		return &fakeStage{Base: &pipeline.Base{StageName: "export.loops", DependsOn: []string{"motifs.release"}}}
	})
	reg.Register("export.all", func(d pipeline.Deps) pipeline.Stage {
		return pipeline.NewContainer("export.all", []string{"export.loops", "units.ife"})
	})
	return reg
}

func TestPlan_OrdersDependenciesBeforeDependents(t *testing.T) {
	p := New(newTestRegistry(), pipeline.Deps{})

	plan, err := p.Plan("motifs.release", nil, false)
	require.NoError(t, err)

	names := plan.Names()
	pos := map[string]int{}
	for i, n := range names {
		pos[n] = i
	}

	require.Less(t, pos["units.info"], pos["units.ife"])
	require.Less(t, pos["units.ife"], pos["motifs.release"])
}

func TestPlan_IsIdempotent(t *testing.T) {
	p := New(newTestRegistry(), pipeline.Deps{})

	first, err := p.Plan("export.loops", nil, false)
	require.NoError(t, err)
	second, err := p.Plan("export.loops", nil, false)
	require.NoError(t, err)

	require.Equal(t, first.Names(), second.Names())
}

func TestPlan_SkipDependenciesKeepsOnlyRootExpansion(t *testing.T) {
	p := New(newTestRegistry(), pipeline.Deps{})

	plan, err := p.Plan("export.all", nil, true)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"export.loops", "units.ife"}, plan.Names())
}

func TestPlan_ExcludeDropsNamedStage(t *testing.T) {
	p := New(newTestRegistry(), pipeline.Deps{})

	plan, err := p.Plan("export.loops", []string{"units.ife"}, false)
	require.NoError(t, err)

	require.NotContains(t, plan.Names(), "units.ife")
	require.Contains(t, plan.Names(), "units.info")
	require.Contains(t, plan.Names(), "motifs.release")
	require.Contains(t, plan.Names(), "export.loops")
}

func TestPlan_EmptyResultIsInvalidState(t *testing.T) {
	p := New(newTestRegistry(), pipeline.Deps{})

	_, err := p.Plan("units.info", []string{"units.info"}, false)
	require.Error(t, err)

	var invalid *pipeline.InvalidStateError
	require.ErrorAs(t, err, &invalid)
}

func TestPlan_UnknownStageFails(t *testing.T) {
	p := New(newTestRegistry(), pipeline.Deps{})

	_, err := p.Plan("nope.unknown", nil, false)
	require.Error(t, err)
}
