// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LastAnalysisTime returns the recorded completion time for (entry,
// stage), or the zero time and ok=false if no row exists.
func (s *Session) LastAnalysisTime(entry, stage string) (t time.Time, ok bool, err error) {
	row := s.Tx.QueryRowContext(s.ctx,
		`SELECT time FROM analysis_status WHERE entry = $1 AND stage = $2`, entry, stage)
	if err := row.Scan(&t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("store: reading analysis status: %w", err)
	}
	return t, true, nil
}

// MarkProcessed upserts the analysis-status row for (entry, stage).
func (s *Session) MarkProcessed(entry, stage string, at time.Time) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO analysis_status (entry, stage, time)
		VALUES ($1, $2, $3)
		ON CONFLICT (entry, stage) DO UPDATE SET time = EXCLUDED.time
	`, entry, stage, at)
	if err != nil {
		return fmt.Errorf("store: marking %s/%s processed: %w", entry, stage, err)
	}
	return nil
}

// HandleInUse reports whether handle is used by any committed motif or
// reserved by any reserved-handle row.
func (s *Session) HandleInUse(handle string) (bool, error) {
	var exists bool
	err := s.Tx.QueryRowContext(s.ctx, `
		SELECT EXISTS(
			SELECT 1 FROM motifs WHERE handle = $1
			UNION ALL
			SELECT 1 FROM reserved_handles WHERE handle = $1
		)
	`, handle).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: checking handle %q: %w", handle, err)
	}
	return exists, nil
}

// ReserveHandle atomically marks handle as used, within the calling
// session's transaction, so later checks in the same commit see it.
func (s *Session) ReserveHandle(handle string) error {
	_, err := s.Tx.ExecContext(s.ctx,
		`INSERT INTO reserved_handles (handle) VALUES ($1) ON CONFLICT DO NOTHING`, handle)
	if err != nil {
		return fmt.Errorf("store: reserving handle %q: %w", handle, err)
	}
	return nil
}

// LatestRelease returns the highest-id release of typ, or ok=false if
// none exists yet.
func (s *Session) LatestRelease(typ ReleaseType) (rel Release, ok bool, err error) {
	row := s.Tx.QueryRowContext(s.ctx, `
		SELECT id, type, date, description, mode, graph
		FROM releases WHERE type = $1
		ORDER BY
			split_part(id, '.', 1)::int DESC,
			split_part(id, '.', 2)::int DESC
		LIMIT 1
	`, string(typ))

	var r Release
	var t string
	if err := row.Scan(&r.ID, &t, &r.Date, &r.Description, &r.Mode, &r.Graph); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Release{}, false, nil
		}
		return Release{}, false, fmt.Errorf("store: reading latest release: %w", err)
	}
	r.Type = ReleaseType(t)
	return r, true, nil
}

// MembershipsForRelease returns every (loop_id, motif_id) pair for a
// committed release, used to reconstruct a Collection.
func (s *Session) MembershipsForRelease(releaseID string) ([]Membership, error) {
	rows, err := s.Tx.QueryContext(s.ctx,
		`SELECT loop_id, motif_id, release_id FROM memberships WHERE release_id = $1`, releaseID)
	if err != nil {
		return nil, fmt.Errorf("store: reading memberships for %s: %w", releaseID, err)
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.LoopID, &m.MotifID, &m.ReleaseID); err != nil {
			return nil, fmt.Errorf("store: scanning membership row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertRelease composes the release row.
func (s *Session) InsertRelease(r Release) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO releases (id, type, date, description, mode, graph)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, string(r.Type), r.Date, r.Description, string(r.Mode), r.Graph)
	if err != nil {
		return fmt.Errorf("store: inserting release %s: %w", r.ID, err)
	}
	return nil
}

// InsertMotif composes one motif row.
func (s *Session) InsertMotif(m Motif) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO motifs (motif_id, release_id, type, handle, version, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.MotifID, m.ReleaseID, string(m.Type), m.Handle, m.Version, m.Comment)
	if err != nil {
		return fmt.Errorf("store: inserting motif %s: %w", m.MotifID, err)
	}
	return nil
}

// InsertMembership composes one membership row.
func (s *Session) InsertMembership(m Membership) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO memberships (loop_id, motif_id, release_id)
		VALUES ($1, $2, $3)
	`, m.LoopID, m.MotifID, m.ReleaseID)
	if err != nil {
		return fmt.Errorf("store: inserting membership %s/%s: %w", m.LoopID, m.MotifID, err)
	}
	return nil
}

// InsertParent composes one parents row.
func (s *Session) InsertParent(p Parent) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO parents (motif_id, release_id, parent_motif_id)
		VALUES ($1, $2, $3)
	`, p.MotifID, p.ReleaseID, p.ParentMotifID)
	if err != nil {
		return fmt.Errorf("store: inserting parent %s<-%s: %w", p.MotifID, p.ParentMotifID, err)
	}
	return nil
}

// InsertSetDiff composes one set-diff row.
func (s *Session) InsertSetDiff(d SetDiff) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO set_diffs (motif_id1, motif_id2, release_id, intersection, overlap, one_minus_two, two_minus_one)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.MotifID1, d.MotifID2, d.ReleaseID, pqStringArray(d.Intersection), d.Overlap,
		pqStringArray(d.OneMinusTwo), pqStringArray(d.TwoMinusOne))
	if err != nil {
		return fmt.Errorf("store: inserting set diff %s/%s: %w", d.MotifID1, d.MotifID2, err)
	}
	return nil
}

// InsertReleaseDiff composes one release-diff row.
func (s *Session) InsertReleaseDiff(d ReleaseDiff) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO release_diffs (release_id1, release_id2, type, direct_parent,
			added_groups, removed_groups, updated_groups, same_groups, added_loops, removed_loops)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, d.ReleaseID1, d.ReleaseID2, string(d.Type), d.DirectParent,
		pqStringArray(d.AddedGroups), pqStringArray(d.RemovedGroups),
		pqStringArray(d.UpdatedGroups), pqStringArray(d.SameGroups),
		pqStringArray(d.AddedLoops), pqStringArray(d.RemovedLoops))
	if err != nil {
		return fmt.Errorf("store: inserting release diff %s/%s: %w", d.ReleaseID1, d.ReleaseID2, err)
	}
	return nil
}

// RemoveRelease is the compensating delete keyed on release id: it
// purges every row across every per-release table. Used both as the
// rollback-failure path and by the motifs.release stages' Remove.
func (s *Session) RemoveRelease(releaseID string, typ ReleaseType) error {
	stmts := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM release_diffs WHERE release_id1 = $1 OR release_id2 = $1`, []any{releaseID}},
		{`DELETE FROM set_diffs WHERE release_id = $1`, []any{releaseID}},
		{`DELETE FROM parents WHERE release_id = $1`, []any{releaseID}},
		{`DELETE FROM memberships WHERE release_id = $1`, []any{releaseID}},
		{`DELETE FROM motifs WHERE release_id = $1`, []any{releaseID}},
		{`DELETE FROM releases WHERE id = $1 AND type = $2`, []any{releaseID, string(typ)}},
	}
	for _, stmt := range stmts {
		if _, err := s.Tx.ExecContext(s.ctx, stmt.query, stmt.args...); err != nil {
			return fmt.Errorf("store: removing release %s: %w", releaseID, err)
		}
	}
	return nil
}

// pqStringArray passes vals through for a text[] parameter, replacing
// nil with an empty slice so the column receives '{}' rather than NULL.
func pqStringArray(vals []string) []string {
	if vals == nil {
		return []string{}
	}
	return vals
}
