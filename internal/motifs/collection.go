// SPDX-License-Identifier: AGPL-3.0-or-later

// Package motifs implements the motif collection snapshot, the new-
// versus-old correspondence merger, and the release committer that
// turns a merge result into a committed set of relational rows.
package motifs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"atlas/internal/store"
)

// Collection is an immutable snapshot of loop-to-group membership: a
// sequence of loops, a parallel sequence of their group labels, and
// the derived set views the merger and committer read from. Built
// from either a CSV file (a fresh clustering run's output, group
// labels not yet final) or a committed release's membership rows
// (group labels are already final motif ids).
type Collection struct {
	Loops   []string
	Groups  []string
	Release string

	byGroup  map[string][]string
	loopSet  map[string]struct{}
	groupSet map[string]struct{}
}

// NewCollection builds a Collection from parallel loops/groups slices.
func NewCollection(loops, groups []string, release string) (*Collection, error) {
	if len(loops) != len(groups) {
		return nil, fmt.Errorf("motifs: %d loops but %d groups", len(loops), len(groups))
	}
	c := &Collection{Loops: loops, Groups: groups, Release: release}
	c.index()
	return c, nil
}

func (c *Collection) index() {
	c.byGroup = make(map[string][]string)
	c.loopSet = make(map[string]struct{}, len(c.Loops))
	c.groupSet = make(map[string]struct{}, len(c.Groups))
	for i, loop := range c.Loops {
		group := c.Groups[i]
		c.byGroup[group] = append(c.byGroup[group], loop)
		c.loopSet[loop] = struct{}{}
		c.groupSet[group] = struct{}{}
	}
}

// FromCSV reads a two-column (loop, group) CSV file, the shape a
// clustering run writes before any group label has been assigned a
// committed motif id.
func FromCSV(path, release string) (*Collection, error) {
	// nolint:gosec // G304: path is an operator-supplied clustering output file.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("motifs: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var loops, groups []string
	for {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("motifs: reading %s: %w", path, err)
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("motifs: %s: row %v has fewer than 2 columns", path, row)
		}
		loops = append(loops, row[0])
		groups = append(groups, row[1])
	}
	return NewCollection(loops, groups, release)
}

// FromRelease rebuilds a Collection from the committed membership of
// releaseID, restricted to the given motif type (loop ids of other
// types share the same release id space and must be excluded).
func FromRelease(ctx context.Context, sess *store.Session, releaseID string, typ store.ReleaseType) (*Collection, error) {
	memberships, err := sess.MembershipsForRelease(releaseID)
	if err != nil {
		return nil, err
	}

	prefix := string(typ) + "_"
	var loops, groups []string
	for _, m := range memberships {
		if !strings.HasPrefix(m.LoopID, prefix) {
			continue
		}
		loops = append(loops, m.LoopID)
		groups = append(groups, m.MotifID)
	}
	return NewCollection(loops, groups, releaseID)
}

// GroupLabels returns every distinct group label, sorted for deterministic
// iteration.
func (c *Collection) GroupLabels() []string {
	labels := make([]string, 0, len(c.groupSet))
	for g := range c.groupSet {
		labels = append(labels, g)
	}
	sort.Strings(labels)
	return labels
}

// GroupLoops returns every loop belonging to group, in insertion order.
func (c *Collection) GroupLoops(group string) []string {
	return c.byGroup[group]
}

// GroupLoopSet returns group's loops as a set, for intersection math.
func (c *Collection) GroupLoopSet(group string) map[string]struct{} {
	loops := c.byGroup[group]
	set := make(map[string]struct{}, len(loops))
	for _, l := range loops {
		set[l] = struct{}{}
	}
	return set
}

// HasLoop reports whether loop appears anywhere in the collection.
func (c *Collection) HasLoop(loop string) bool {
	_, ok := c.loopSet[loop]
	return ok
}

// LoopSet returns every loop in the collection as a set.
func (c *Collection) LoopSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.loopSet))
	for l := range c.loopSet {
		out[l] = struct{}{}
	}
	return out
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for v := range a {
		if _, ok := b[v]; ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for v := range a {
		if _, ok := b[v]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
