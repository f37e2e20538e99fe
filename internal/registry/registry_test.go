// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"atlas/internal/pipeline"
	"atlas/internal/store"
)

func resetDefaultRegistry() {
	Default = New()
}

// stubStage is the minimal concrete Stage used to exercise the
// registry without pulling in a real stage kind.
type stubStage struct{ *pipeline.Base }

func (s *stubStage) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	return false, nil
}

func (s *stubStage) Process(ctx context.Context, sess *store.Session, entry string) (pipeline.Outcome, error) {
	return pipeline.OutcomeProcessed, nil
}

func stub(name string) Factory {
	return func(d pipeline.Deps) pipeline.Stage {
		return &stubStage{Base: &pipeline.Base{StageName: name}}
	}
}

func TestRegistry_Register(t *testing.T) {
	reg := New()

	reg.Register("units.info", stub("units.info"))
	reg.Register("units.ife", stub("units.ife"))

	if !reg.Has("units.info") {
		t.Error("expected units.info to be registered")
	}
	if !reg.Has("units.ife") {
		t.Error("expected units.ife to be registered")
	}
}

func TestRegistry_Register_PanicsOnEmptyName(t *testing.T) {
	reg := New()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when registering an empty stage name")
		}
	}()

	reg.Register("", stub(""))
}

func TestRegistry_Register_PanicsOnDuplicateName(t *testing.T) {
	reg := New()
	reg.Register("units.info", stub("units.info"))

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic when registering a duplicate stage name")
		}
	}()

	reg.Register("units.info", stub("units.info"))
}

func TestRegistry_Get(t *testing.T) {
	reg := New()
	reg.Register("units.info", stub("units.info"))

	factory, err := reg.Get("units.info")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	stage := factory(pipeline.Deps{})
	if stage.Name() != "units.info" {
		t.Errorf("Get() built stage named %q, want %q", stage.Name(), "units.info")
	}
}

func TestRegistry_Get_ReturnsErrorForUnknownName(t *testing.T) {
	reg := New()

	_, err := reg.Get("unknown.stage")
	if err == nil {
		t.Error("Get() error = nil, want error for unknown stage")
	}
	if reg.Has("unknown.stage") {
		t.Error("Has() = true for unknown stage, want false")
	}
}

func TestRegistry_Build(t *testing.T) {
	reg := New()
	reg.Register("units.info", stub("units.info"))

	stage, err := reg.Build("units.info", pipeline.Deps{})
	if err != nil {
		t.Fatalf("Build() error = %v, want nil", err)
	}
	if stage.Name() != "units.info" {
		t.Errorf("Build() returned stage named %q, want %q", stage.Name(), "units.info")
	}

	if _, err := reg.Build("unknown.stage", pipeline.Deps{}); err == nil {
		t.Error("Build() error = nil, want error for unknown stage")
	}
}

func TestRegistry_Names(t *testing.T) {
	reg := New()

	names := reg.Names()
	if len(names) != 0 {
		t.Errorf("Names() length = %d, want 0", len(names))
	}

	want := []string{"export.loops", "motifs.release", "units.ife", "units.info"}
	for _, name := range want {
		reg.Register(name, stub(name))
	}

	got := reg.Names()
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("Names() length = %d, want %d", len(got), len(want))
	}
	for i, name := range got {
		if name != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, name, want[i])
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := New()

	var wg sync.WaitGroup
	numStages := 10

	for i := 0; i < numStages; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("stage.%d", i)
			reg.Register(name, stub(name))
		}(i)
	}
	wg.Wait()

	if len(reg.Names()) != numStages {
		t.Errorf("concurrent registration: got %d stages, want %d", len(reg.Names()), numStages)
	}

	wg = sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Has("stage.0")
			_, _ = reg.Get("stage.0")
			reg.Names()
		}()
	}
	wg.Wait()
}

func TestDefaultRegistry(t *testing.T) {
	resetDefaultRegistry()

	Register("units.info", stub("units.info"))

	if !Has("units.info") {
		t.Error("Has() = false for stage in Default, want true")
	}

	factory, err := Get("units.info")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if factory(pipeline.Deps{}).Name() != "units.info" {
		t.Error("Get() returned the wrong factory")
	}
}
