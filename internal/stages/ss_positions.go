// SPDX-License-Identifier: AGPL-3.0-or-later

// ss.positions and ss.position_mapping import secondary-structure
// diagram data, the Go re-expression of pymotifs/cli/commands.py's
// `ss import`/`ss align` subcommands. The real Gutell-lab postscript
// diagram format is out of scope (spec.md's external-collaborator
// boundary); both stages consume the already-normalized CSV encoding
// of nucleotide positions a preprocessing step would produce, the
// same abstraction internal/geometry draws around the real geometry
// engine's output.
package stages

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"atlas/internal/pipeline"
	"atlas/internal/store"
)

type loopPositionStorer struct{}

func (loopPositionStorer) Store(ctx context.Context, sess *store.Session, rows []pipeline.Row, merge bool) error {
	for _, row := range rows {
		lp, ok := row.(store.LoopPosition)
		if !ok {
			return fmt.Errorf("stages: ss stage produced unexpected row type %T", row)
		}
		if err := sess.InsertLoopPosition(lp); err != nil {
			return err
		}
	}
	return nil
}

// readPositionRows parses a (motif_label, loop_id, nt_id, position) CSV
// file. A row with only three columns (loop_id, nt_id, position) has no
// motif_label column and takes label instead.
func readPositionRows(path, label string) ([]pipeline.Row, error) {
	// nolint:gosec // G304: path is an operator-supplied CLI argument.
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
		if len(rec) < 3 {
			return nil, fmt.Errorf("stages: %s: row %v has fewer than 3 columns", path, rec)
		}

		motifLabel := label
		loopID, ntID, posCol := rec[0], rec[1], rec[2]
		if len(rec) >= 4 {
			motifLabel, loopID, ntID, posCol = rec[0], rec[1], rec[2], rec[3]
		}

		position, err := strconv.Atoi(strings.TrimSpace(posCol))
		if err != nil {
			return nil, fmt.Errorf("stages: %s: bad position: %w", path, err)
		}
		rows = append(rows, store.LoopPosition{MotifLabel: motifLabel, LoopID: loopID, NTID: ntID, Position: position})
	}
	return rows, nil
}

// splitEntry splits a "label:path" composite entry string, the
// convention used to thread a --ss-name (or pdb:chain) value through
// the registry factory signature, which is bound once at startup and
// never sees per-invocation CLI flags.
func splitEntry(entry string) (label, path string) {
	idx := strings.IndexByte(entry, ':')
	if idx < 0 {
		return "", entry
	}
	return entry[:idx], entry[idx+1:]
}

// newSSPositions builds the "ss import" stage: entry is "ssName:file".
func newSSPositions(deps pipeline.Deps) pipeline.Stage {
	return pipeline.NewSimpleLoader(
		&pipeline.Base{StageName: "ss.positions", MarkFlag: true},
		func(ctx context.Context, entry string) ([]pipeline.Row, error) {
			label, path := splitEntry(entry)
			return readPositionRows(path, label)
		},
		loopPositionStorer{},
		func(ctx context.Context, sess *store.Session, entry string) (bool, error) {
			return true, nil
		},
		nil,
	)
}

// newSSPositionMapping builds the "ss align" stage: entry is
// "PDB:CHAIN:FILE", the 2D-to-experimental-chain alignment.
func newSSPositionMapping(deps pipeline.Deps) pipeline.Stage {
	return pipeline.NewSimpleLoader(
		&pipeline.Base{StageName: "ss.position_mapping", DependsOn: []string{"ss.positions"}, MarkFlag: true},
		func(ctx context.Context, entry string) ([]pipeline.Row, error) {
			parts := strings.SplitN(entry, ":", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("stages: ss.position_mapping entry %q must be PDB:CHAIN:FILE", entry)
			}
			label := parts[0] + ":" + parts[1]
			return readPositionRows(parts[2], label)
		},
		loopPositionStorer{},
		func(ctx context.Context, sess *store.Session, entry string) (bool, error) {
			return true, nil
		},
		nil,
	)
}
