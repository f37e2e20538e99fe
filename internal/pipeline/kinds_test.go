// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"atlas/internal/store"
)

// recordingStorer captures every batch it receives along with whether
// merge semantics were requested.
type recordingStorer struct {
	batches [][]Row
	merge   []bool
	err     error
}

func (s *recordingStorer) Store(ctx context.Context, sess *store.Session, rows []Row, merge bool) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, rows)
	s.merge = append(s.merge, merge)
	return nil
}

func TestEntryLoader_ProcessChunksWritesAtInsertMax(t *testing.T) {
	storer := &recordingStorer{}
	loader := &EntryLoader{
		Base:      &Base{StageName: "units.info"},
		InsertMax: 2,
		Data: func(ctx context.Context, entry string) ([]Row, error) {
			return []Row{"a", "b", "c", "d", "e"}, nil
		},
		Storer:        storer,
		IsMissingFunc: func(ctx context.Context, sess *store.Session, entry string) (bool, error) { return true, nil },
	}

	outcome, err := loader.Process(context.Background(), &store.Session{}, "1ABC")
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if outcome != OutcomeProcessed {
		t.Errorf("Process() outcome = %v, want OutcomeProcessed", outcome)
	}
	if len(storer.batches) != 3 {
		t.Fatalf("Store() called %d times, want 3", len(storer.batches))
	}
	if len(storer.batches[0]) != 2 || len(storer.batches[1]) != 2 || len(storer.batches[2]) != 1 {
		t.Errorf("unexpected chunk sizes: %v", storer.batches)
	}
}

func TestEntryLoader_ProcessFailsOnNoDataWhenNotAllowed(t *testing.T) {
	loader := &EntryLoader{
		Base:          &Base{StageName: "units.info"},
		Data:          func(ctx context.Context, entry string) ([]Row, error) { return nil, nil },
		Storer:        &recordingStorer{},
		IsMissingFunc: func(ctx context.Context, sess *store.Session, entry string) (bool, error) { return true, nil },
	}

	_, err := loader.Process(context.Background(), &store.Session{}, "1ABC")
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("Process() error = %v, want *InvalidStateError", err)
	}
}

func TestEntryLoader_AllowNoDataReturnsSkipped(t *testing.T) {
	loader := &EntryLoader{
		Base:          &Base{StageName: "units.info"},
		AllowNoData:   true,
		Data:          func(ctx context.Context, entry string) ([]Row, error) { return nil, nil },
		Storer:        &recordingStorer{},
		IsMissingFunc: func(ctx context.Context, sess *store.Session, entry string) (bool, error) { return true, nil },
	}

	outcome, err := loader.Process(context.Background(), &store.Session{}, "1ABC")
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("Process() outcome = %v, want OutcomeSkipped", outcome)
	}
}

func TestNewSimpleLoader_DefaultsInsertMaxAndDelegatesIsMissing(t *testing.T) {
	called := false
	loader := NewSimpleLoader(
		&Base{StageName: "units.info"},
		func(ctx context.Context, entry string) ([]Row, error) { return []Row{"a"}, nil },
		&recordingStorer{},
		func(ctx context.Context, sess *store.Session, entry string) (bool, error) { called = true; return true, nil },
		nil,
	)

	if loader.InsertMax != 1000 {
		t.Errorf("InsertMax = %d, want 1000", loader.InsertMax)
	}
	missing, err := loader.IsMissing(context.Background(), &store.Session{}, "1ABC")
	if err != nil || !missing || !called {
		t.Errorf("IsMissing() = (%v, %v), called = %v", missing, err, called)
	}
	if err := loader.Remove(context.Background(), &store.Session{}, "1ABC"); err != nil {
		t.Errorf("Remove() with nil RemoveFunc should be a no-op, got %v", err)
	}
}

func TestMassLoader_ProcessAllStoresEveryRowInOneCall(t *testing.T) {
	storer := &recordingStorer{}
	loader := &MassLoader{
		Base: &Base{StageName: "motifs.release"},
		DataAll: func(ctx context.Context, entries []string) ([]Row, error) {
			rows := make([]Row, len(entries))
			for i, e := range entries {
				rows[i] = e
			}
			return rows, nil
		},
		Storer: storer,
	}

	outcome, err := loader.ProcessAll(context.Background(), &store.Session{}, []string{"1ABC", "2XYZ"})
	if err != nil {
		t.Fatalf("ProcessAll() error = %v, want nil", err)
	}
	if outcome != OutcomeProcessed {
		t.Errorf("ProcessAll() outcome = %v, want OutcomeProcessed", outcome)
	}
	if len(storer.batches) != 1 || len(storer.batches[0]) != 2 {
		t.Fatalf("Store() batches = %v, want one batch of 2", storer.batches)
	}
}

func TestMassLoader_ProcessAllReturnsSkippedOnNoRows(t *testing.T) {
	loader := &MassLoader{
		Base:    &Base{StageName: "motifs.release"},
		DataAll: func(ctx context.Context, entries []string) ([]Row, error) { return nil, nil },
		Storer:  &recordingStorer{},
	}

	outcome, err := loader.ProcessAll(context.Background(), &store.Session{}, []string{"1ABC"})
	if err != nil {
		t.Fatalf("ProcessAll() error = %v, want nil", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("ProcessAll() outcome = %v, want OutcomeSkipped", outcome)
	}
}

func TestMassLoader_IsMissingDefaultsFalseWithoutAPredicate(t *testing.T) {
	loader := &MassLoader{Base: &Base{StageName: "motifs.release"}}
	missing, err := loader.IsMissing(context.Background(), &store.Session{}, "1ABC")
	if err != nil || missing {
		t.Errorf("IsMissing() = (%v, %v), want (false, nil)", missing, err)
	}
}

func TestExporter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1ABC.txt")

	exp := &Exporter{
		Base:     &Base{StageName: "export.loops"},
		Filename: func(entry string) string { return path },
		Render:   func(ctx context.Context, sess *store.Session, entry string) (string, error) { return "rendered:" + entry, nil },
	}

	missing, err := exp.IsMissing(context.Background(), &store.Session{}, "1ABC")
	if err != nil || !missing {
		t.Fatalf("IsMissing() before write = (%v, %v), want (true, nil)", missing, err)
	}

	outcome, err := exp.Process(context.Background(), &store.Session{}, "1ABC")
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("Process() = (%v, %v), want (OutcomeProcessed, nil)", outcome, err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading exported file: %v", err)
	}
	if string(got) != "rendered:1ABC" {
		t.Errorf("exported content = %q, want %q", got, "rendered:1ABC")
	}

	missing, err = exp.IsMissing(context.Background(), &store.Session{}, "1ABC")
	if err != nil || missing {
		t.Fatalf("IsMissing() after write = (%v, %v), want (false, nil)", missing, err)
	}

	if err := exp.Remove(context.Background(), &store.Session{}, "1ABC"); err != nil {
		t.Fatalf("Remove() error = %v, want nil", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed", path)
	}
	if err := exp.Remove(context.Background(), &store.Session{}, "1ABC"); err != nil {
		t.Errorf("Remove() on an already-absent file should be a no-op, got %v", err)
	}
}

func TestContainer_NeverProcesses(t *testing.T) {
	c := NewContainer("export.all", []string{"export.loops", "units.ife"})

	if !c.IsContainer() {
		t.Error("IsContainer() = false, want true")
	}
	if len(c.Members()) != 2 {
		t.Errorf("Members() = %v, want 2 entries", c.Members())
	}

	missing, err := c.IsMissing(context.Background(), &store.Session{}, "1ABC")
	if err != nil || missing {
		t.Errorf("IsMissing() = (%v, %v), want (false, nil)", missing, err)
	}

	_, err = c.Process(context.Background(), &store.Session{}, "1ABC")
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Errorf("Process() error = %v, want *InvalidStateError", err)
	}
}
