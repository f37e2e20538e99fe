// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"os"

	"atlas/internal/store"
)

// Row is one opaque record a loader's Data produces; concrete stages
// supply whatever shape their Storer understands.
type Row any

// Storer persists a batch of rows produced by a Loader's Data call.
// merge selects upsert-by-primary-key over plain insert.
type Storer interface {
	Store(ctx context.Context, sess *store.Session, rows []Row, merge bool) error
}

// EntryLoader is the per-entry loader stage kind: Data(entry) -> rows,
// handed to Storer in chunks of at most InsertMax rows. All chunks of
// one entry are written in the entry's single session and committed
// together; there is no commit between chunks. If
// AllowNoData is false and Data yields nothing, Process fails with
// InvalidState.
type EntryLoader struct {
	*Base
	Data          func(ctx context.Context, entry string) ([]Row, error)
	Storer        Storer
	AllowNoData   bool
	MergeData     bool
	InsertMax     int
	IsMissingFunc func(ctx context.Context, sess *store.Session, entry string) (bool, error)
	RemoveFunc    func(ctx context.Context, sess *store.Session, entry string) error
}

func (l *EntryLoader) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	return l.IsMissingFunc(ctx, sess, entry)
}

func (l *EntryLoader) Remove(ctx context.Context, sess *store.Session, entry string) error {
	if l.RemoveFunc == nil {
		return nil
	}
	return l.RemoveFunc(ctx, sess, entry)
}

func (l *EntryLoader) Process(ctx context.Context, sess *store.Session, entry string) (Outcome, error) {
	rows, err := l.Data(ctx, entry)
	if err != nil {
		return OutcomeProcessed, err
	}
	if len(rows) == 0 {
		if !l.AllowNoData {
			return OutcomeProcessed, NewInvalidState("loader " + l.Name() + " produced no rows for " + entry)
		}
		return OutcomeSkipped, nil
	}

	chunkSize := l.InsertMax
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := l.Storer.Store(ctx, sess, rows[start:end], l.MergeData); err != nil {
			return OutcomeProcessed, err
		}
	}
	return OutcomeProcessed, nil
}

// NewSimpleLoader builds an EntryLoader with the "simple" (single-table)
// loader defaults (AllowNoData false, InsertMax 1000); the caller
// supplies the single-table IsMissing and Remove queries.
func NewSimpleLoader(base *Base, data func(ctx context.Context, entry string) ([]Row, error), storer Storer,
	isMissing func(ctx context.Context, sess *store.Session, entry string) (bool, error),
	remove func(ctx context.Context, sess *store.Session, entry string) error,
) *EntryLoader {
	return &EntryLoader{
		Base:          base,
		Data:          data,
		Storer:        storer,
		AllowNoData:   false,
		InsertMax:     1000,
		IsMissingFunc: isMissing,
		RemoveFunc:    remove,
	}
}

// MassLoader receives every entry in one call; it is one transaction
// over the full collection, has no per-entry removal, and marks
// completion for every input on success.
type MassLoader struct {
	*Base
	DataAll       func(ctx context.Context, entries []string) ([]Row, error)
	Storer        Storer
	MergeData     bool
	IsMissingFunc func(ctx context.Context, sess *store.Session, entry string) (bool, error)
}

func (m *MassLoader) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	if m.IsMissingFunc == nil {
		return false, nil
	}
	return m.IsMissingFunc(ctx, sess, entry)
}

// Remove is a no-op for mass loaders, per the stage-kind contract.
func (m *MassLoader) Remove(ctx context.Context, sess *store.Session, entry string) error { return nil }

// Process satisfies Stage by forwarding the single entry to
// ProcessAll; the executor itself always drives a mass loader through
// ProcessAll.
func (m *MassLoader) Process(ctx context.Context, sess *store.Session, entry string) (Outcome, error) {
	return m.ProcessAll(ctx, sess, []string{entry})
}

func (m *MassLoader) ProcessAll(ctx context.Context, sess *store.Session, entries []string) (Outcome, error) {
	rows, err := m.DataAll(ctx, entries)
	if err != nil {
		return OutcomeProcessed, err
	}
	if len(rows) == 0 {
		return OutcomeSkipped, nil
	}
	if err := m.Storer.Store(ctx, sess, rows, m.MergeData); err != nil {
		return OutcomeProcessed, err
	}
	return OutcomeProcessed, nil
}

// Exporter produces text for an entry and writes it to a computed
// filename. "Missing" means the output file does not exist.
type Exporter struct {
	*Base
	Filename func(entry string) string
	Render   func(ctx context.Context, sess *store.Session, entry string) (string, error)
}

func (e *Exporter) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	_, err := os.Stat(e.Filename(entry))
	if err == nil {
		return false, nil
	}
	if os.IsNotExist(err) {
		return true, nil
	}
	return false, err
}

func (e *Exporter) Remove(ctx context.Context, sess *store.Session, entry string) error {
	err := os.Remove(e.Filename(entry))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (e *Exporter) Process(ctx context.Context, sess *store.Session, entry string) (Outcome, error) {
	text, err := e.Render(ctx, sess, entry)
	if err != nil {
		return OutcomeProcessed, err
	}
	// nolint:gosec // G306: export output is meant to be readable by report consumers.
	if err := os.WriteFile(e.Filename(entry), []byte(text), 0o644); err != nil {
		return OutcomeProcessed, err
	}
	return OutcomeProcessed, nil
}

// Container carries no logic of its own; at planning time it is
// replaced by its Members and must never appear in the executed plan.
type Container struct {
	*Base
}

func (c *Container) IsMissing(ctx context.Context, sess *store.Session, entry string) (bool, error) {
	return false, nil
}

func (c *Container) Process(ctx context.Context, sess *store.Session, entry string) (Outcome, error) {
	return OutcomeProcessed, NewInvalidState("container stage " + c.Name() + " must not be executed directly")
}

// NewContainer builds a container stage from a name and its member
// stage names.
func NewContainer(name string, members []string) *Container {
	return &Container{Base: &Base{StageName: name, Container: true, MemberNames: members}}
}
