// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Atlas - a Go pipeline that recomputes and releases the RNA 3D structural
motif atlas: loop extraction, motif clustering, and versioned release
bookkeeping against a relational store.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package stages registers the concrete stage realizations exercising
// C2-C5 (internal/registry, internal/planner, internal/executor,
// internal/pipeline) over the real tables in internal/store, grounded
// on pymotifs/units/info.py (SimpleLoader), pymotifs/PdbInfoLoader.py
// (MassLoader), pymotifs/export/loader.py (Exporter container), and
// update.py's MultiLoader (container aggregation). Every concrete
// stage registers itself in an init(), mirroring the teacher's
// internal/providers/migration/raw registering itself with
// migration.Register.
package stages

import (
	"time"

	"atlas/internal/pipeline"
	"atlas/internal/registry"
	"atlas/internal/store"
)

func gapDays(n int) *time.Duration {
	d := time.Duration(n) * 24 * time.Hour
	return &d
}

func init() {
	registry.Register("loops.extract", newLoopsExtract)
	registry.Register("loops.release", newLoopsRelease)
	registry.Register("export.loops", newExportLoops)
	registry.Register("motifs.release.il", newMotifsRelease(store.ReleaseTypeInternal))
	registry.Register("motifs.release.hl", newMotifsRelease(store.ReleaseTypeHairpin))
	registry.Register("motifs.release.jl", newMotifsRelease(store.ReleaseTypeJunction))
	registry.Register("ss.positions", newSSPositions)
	registry.Register("ss.position_mapping", newSSPositionMapping)

	registry.Register("update", func(deps pipeline.Deps) pipeline.Stage {
		return pipeline.NewContainer("update", []string{"loops.extract", "loops.release", "export.loops"})
	})
}
