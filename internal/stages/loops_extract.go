// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"atlas/internal/geometry"
	"atlas/internal/pipeline"
	"atlas/internal/store"
)

// loopStorer persists []store.Loop rows produced by loops.extract.
type loopStorer struct{}

func (loopStorer) Store(ctx context.Context, sess *store.Session, rows []pipeline.Row, merge bool) error {
	for _, row := range rows {
		loop, ok := row.(store.Loop)
		if !ok {
			return fmt.Errorf("stages: loops.extract produced unexpected row type %T", row)
		}
		if err := sess.InsertLoop(loop); err != nil {
			return err
		}
	}
	return nil
}

// newLoopsExtract builds the per-entry loop extraction stage: for a
// PDB entry, invoke the configured geometry engine against its
// structure directory and persist the resulting loop rows. Grounded
// on pymotifs/units/info.py's SimpleLoader shape and the stage-kind
// contract's MatlabFailed escalation (spec.md §6/§7).
func newLoopsExtract(deps pipeline.Deps) pipeline.Stage {
	command := "fr3d"
	var args []string
	if deps.Config != nil && deps.Config.Geometry.Command != "" {
		command = deps.Config.Geometry.Command
		args = deps.Config.Geometry.Args
	}
	engine := geometry.NewProcessEngine(command, args...)

	dataDir := func(entry string) string {
		root := "."
		if deps.Config != nil {
			root = deps.Config.Paths.LoopMatRoot
		}
		return filepath.Join(root, entry)
	}

	return pipeline.NewSimpleLoader(
		&pipeline.Base{StageName: "loops.extract", StopOnFailureFlag: true, MarkFlag: true, Gap: gapDays(30)},
		func(ctx context.Context, entry string) ([]pipeline.Row, error) {
			dir := dataDir(entry)
			csvPath, engineErr, err := engine.Run(ctx, dir)
			if err != nil {
				return nil, err
			}
			if err := geometry.CheckFatal(engineErr); err != nil {
				return nil, err
			}
			return readLoopRows(csvPath, entry)
		},
		loopStorer{},
		func(ctx context.Context, sess *store.Session, entry string) (bool, error) {
			has, err := sess.HasLoopsForPDB(entry)
			if err != nil {
				return false, err
			}
			return !has, nil
		},
		nil,
	)
}

// readLoopRows parses the geometry engine's output CSV: loop_id, type,
// ordinal, length, sequence, reversed_sequence, non_wc_sequence,
// nucleotide_ids (pipe-separated).
func readLoopRows(path, pdb string) ([]pipeline.Row, error) {
	// nolint:gosec // G304: path is produced by the configured geometry engine, not user input.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stages: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []pipeline.Row
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("stages: reading %s: %w", path, err)
		}
		if len(rec) < 8 {
			return nil, fmt.Errorf("stages: %s: row %v has fewer than 8 columns", path, rec)
		}
		ordinal, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("stages: %s: bad ordinal: %w", path, err)
		}
		length, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return nil, fmt.Errorf("stages: %s: bad length: %w", path, err)
		}
		var nts []string
		if rec[7] != "" {
			nts = strings.Split(rec[7], "|")
		}
		rows = append(rows, store.Loop{
			LoopID:           rec[0],
			Type:             store.LoopType(rec[1]),
			PDB:              pdb,
			Ordinal:          ordinal,
			Length:           length,
			Sequence:         rec[4],
			ReversedSequence: rec[5],
			NonWCSequence:    rec[6],
			NucleotideIDs:    nts,
		})
	}
	return rows, nil
}
