// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertLoop composes one loop row. Loops are immutable once observed,
// so a second sighting of the same loop id is a no-op rather than an
// error -- the same loop can be re-derived by a later rerun of the
// extraction stage.
func (s *Session) InsertLoop(l Loop) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO loops (loop_id, type, pdb, ordinal, length, sequence, reversed_sequence, non_wc_sequence, nucleotide_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (loop_id) DO NOTHING
	`, l.LoopID, string(l.Type), l.PDB, l.Ordinal, l.Length, l.Sequence, l.ReversedSequence, l.NonWCSequence, pqStringArray(l.NucleotideIDs))
	if err != nil {
		return fmt.Errorf("store: inserting loop %s: %w", l.LoopID, err)
	}
	return nil
}

// HasLoopsForPDB reports whether any loop row has already been
// recorded for pdb, the missing-data check the loop extraction stage
// uses to decide whether to reprocess.
func (s *Session) HasLoopsForPDB(pdb string) (bool, error) {
	var exists bool
	err := s.Tx.QueryRowContext(s.ctx, `SELECT EXISTS(SELECT 1 FROM loops WHERE pdb = $1)`, pdb).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: checking loops for %s: %w", pdb, err)
	}
	return exists, nil
}

// LoopsForPDB returns every loop row recorded for pdb.
func (s *Session) LoopsForPDB(pdb string) ([]Loop, error) {
	rows, err := s.Tx.QueryContext(s.ctx, `
		SELECT loop_id, type, pdb, ordinal, length, sequence, reversed_sequence, non_wc_sequence, nucleotide_ids
		FROM loops WHERE pdb = $1 ORDER BY ordinal
	`, pdb)
	if err != nil {
		return nil, fmt.Errorf("store: reading loops for %s: %w", pdb, err)
	}
	defer rows.Close()

	var out []Loop
	for rows.Next() {
		var l Loop
		var t string
		if err := rows.Scan(&l.LoopID, &t, &l.PDB, &l.Ordinal, &l.Length, &l.Sequence, &l.ReversedSequence, &l.NonWCSequence, &l.NucleotideIDs); err != nil {
			return nil, fmt.Errorf("store: scanning loop row: %w", err)
		}
		l.Type = LoopType(t)
		out = append(out, l)
	}
	return out, rows.Err()
}

// DistinctPDBs returns every PDB id that has at least one recorded
// loop, the store-backed "known" entry source the CLI's --known flag
// draws on in place of an external archive listing.
func (s *Session) DistinctPDBs() ([]string, error) {
	rows, err := s.Tx.QueryContext(s.ctx, `SELECT DISTINCT pdb FROM loops ORDER BY pdb`)
	if err != nil {
		return nil, fmt.Errorf("store: listing known pdbs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var pdb string
		if err := rows.Scan(&pdb); err != nil {
			return nil, fmt.Errorf("store: scanning pdb row: %w", err)
		}
		out = append(out, pdb)
	}
	return out, rows.Err()
}

// LatestLoopRelease returns the highest-id loop release, or ok=false
// if none exists yet.
func (s *Session) LatestLoopRelease() (lr LoopRelease, ok bool, err error) {
	row := s.Tx.QueryRowContext(s.ctx, `
		SELECT id, date, description FROM loop_releases
		ORDER BY split_part(id, '.', 1)::int DESC, split_part(id, '.', 2)::int DESC
		LIMIT 1
	`)
	if err := row.Scan(&lr.ID, &lr.Date, &lr.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoopRelease{}, false, nil
		}
		return LoopRelease{}, false, fmt.Errorf("store: reading latest loop release: %w", err)
	}
	return lr, true, nil
}

// InsertLoopRelease composes one loop-release row.
func (s *Session) InsertLoopRelease(lr LoopRelease) error {
	_, err := s.Tx.ExecContext(s.ctx,
		`INSERT INTO loop_releases (id, date, description) VALUES ($1, $2, $3)`,
		lr.ID, lr.Date, lr.Description)
	if err != nil {
		return fmt.Errorf("store: inserting loop release %s: %w", lr.ID, err)
	}
	return nil
}

// InsertLoopOrder upserts one loop-order row, keyed by (motif_label, loop_id).
func (s *Session) InsertLoopOrder(lo LoopOrder) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO loop_order (motif_label, loop_id, original_order, similarity_order)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (motif_label, loop_id) DO UPDATE SET
			original_order = EXCLUDED.original_order,
			similarity_order = EXCLUDED.similarity_order
	`, lo.MotifLabel, lo.LoopID, lo.OriginalOrder, lo.SimilarityOrder)
	if err != nil {
		return fmt.Errorf("store: inserting loop order %s/%s: %w", lo.MotifLabel, lo.LoopID, err)
	}
	return nil
}

// InsertLoopPosition upserts one loop-position row, keyed by
// (motif_label, loop_id, nt_id).
func (s *Session) InsertLoopPosition(lp LoopPosition) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO loop_position (motif_label, loop_id, nt_id, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (motif_label, loop_id, nt_id) DO UPDATE SET position = EXCLUDED.position
	`, lp.MotifLabel, lp.LoopID, lp.NTID, lp.Position)
	if err != nil {
		return fmt.Errorf("store: inserting loop position %s/%s/%s: %w", lp.MotifLabel, lp.LoopID, lp.NTID, err)
	}
	return nil
}

// InsertLoopDiscrepancy upserts one mutual-discrepancy row, keyed by
// the ordered pair (loop_id_a, loop_id_b); (b, a) is a separate row.
func (s *Session) InsertLoopDiscrepancy(ld LoopDiscrepancy) error {
	_, err := s.Tx.ExecContext(s.ctx, `
		INSERT INTO loop_discrepancy (loop_id_a, discrepancy, loop_id_b)
		VALUES ($1, $2, $3)
		ON CONFLICT (loop_id_a, loop_id_b) DO UPDATE SET discrepancy = EXCLUDED.discrepancy
	`, ld.LoopIDA, ld.Discrepancy, ld.LoopIDB)
	if err != nil {
		return fmt.Errorf("store: inserting loop discrepancy %s/%s: %w", ld.LoopIDA, ld.LoopIDB, err)
	}
	return nil
}

// LoopAnnotation returns the curator-maintained annotation for loopID,
// or ok=false if none exists. Read-only: never written by the core
// pipeline.
func (s *Session) LoopAnnotation(loopID string) (a LoopAnnotation, ok bool, err error) {
	row := s.Tx.QueryRowContext(s.ctx,
		`SELECT loop_id, common_name, reference FROM loop_annotations WHERE loop_id = $1`, loopID)
	if err := row.Scan(&a.LoopID, &a.CommonName, &a.Reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LoopAnnotation{}, false, nil
		}
		return LoopAnnotation{}, false, fmt.Errorf("store: reading annotation for %s: %w", loopID, err)
	}
	return a, true, nil
}
