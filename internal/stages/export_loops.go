// SPDX-License-Identifier: AGPL-3.0-or-later

package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"atlas/internal/pipeline"
	"atlas/internal/store"
)

// newExportLoops builds the exporter stage that renders a per-PDB
// textual loop summary, grounded on pymotifs/export/loader.py's
// Exporter container shape.
func newExportLoops(deps pipeline.Deps) pipeline.Stage {
	dir := "."
	if deps.Config != nil && deps.Config.Paths.ExportDir != "" {
		dir = deps.Config.Paths.ExportDir
	}

	return &pipeline.Exporter{
		Base: &pipeline.Base{StageName: "export.loops", DependsOn: []string{"loops.extract"}, MarkFlag: true},
		Filename: func(entry string) string {
			return filepath.Join(dir, entry+".loops.txt")
		},
		Render: func(ctx context.Context, sess *store.Session, entry string) (string, error) {
			loops, err := sess.LoopsForPDB(entry)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			for _, l := range loops {
				fmt.Fprintf(&b, "%s\t%s\t%d\t%s\n", l.LoopID, l.Type, l.Length, l.Sequence)
			}
			return b.String(), nil
		},
	}
}
