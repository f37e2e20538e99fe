// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the relational row types and the session
// abstraction the rest of the pipeline reads and writes through.
package store

import "time"

// LoopType enumerates the three loop shapes tracked by the atlas.
type LoopType string

const (
	LoopTypeInternal LoopType = "IL"
	LoopTypeHairpin  LoopType = "HL"
	LoopTypeJunction LoopType = "JL"
)

// ReleaseType enumerates the motif release families, plus NR for the
// non-redundant set release which shares the release id allocation
// scheme but carries no motif rows of its own.
type ReleaseType string

const (
	ReleaseTypeInternal ReleaseType = "IL"
	ReleaseTypeHairpin  ReleaseType = "HL"
	ReleaseTypeJunction ReleaseType = "JL"
	ReleaseTypeNR        ReleaseType = "NR"
)

// ReleaseMode is the allocation policy for the next release id of a type.
type ReleaseMode string

const (
	ReleaseModeMajor ReleaseMode = "major"
	ReleaseModeMinor ReleaseMode = "minor"
)

// AnalysisStatus records that a stage completed for an entry at a time.
// It is the sole input to the executor's update-gap staleness check.
type AnalysisStatus struct {
	Entry string
	Stage string
	Time  time.Time
}

// Loop is a structural fragment extracted from one RNA structure.
// Immutable once observed.
type Loop struct {
	LoopID           string
	Type             LoopType
	PDB              string
	Ordinal          int
	Length           int
	Sequence         string
	ReversedSequence string
	NonWCSequence    string
	NucleotideIDs    []string
}

// Motif is one equivalence class of loops within a release.
// motif_id = Type + "_" + Handle + "." + strconv.Itoa(Version).
type Motif struct {
	MotifID   string
	ReleaseID string
	Type      ReleaseType
	Handle    string
	Version   int
	Comment   string
}

// Release is a versioned snapshot of all motifs of one type.
type Release struct {
	ID          string
	Type        ReleaseType
	Date        time.Time
	Description string
	Mode        ReleaseMode
	Graph       *string
}

// Membership relates one loop to the motif that owns it within a release.
type Membership struct {
	LoopID    string
	MotifID   string
	ReleaseID string
}

// Parent records that ParentMotifID is an ancestor of MotifID in ReleaseID.
type Parent struct {
	MotifID       string
	ReleaseID     string
	ParentMotifID string
}

// SetDiff relates two motifs with intersecting loop sets. Persisted
// symmetrically: one row per ordered (motif1, motif2) pair.
type SetDiff struct {
	MotifID1     string
	MotifID2     string
	ReleaseID    string
	Intersection []string
	Overlap      float64
	OneMinusTwo  []string
	TwoMinusOne  []string
}

// ReleaseDiff relates a new release to a prior one by set difference.
type ReleaseDiff struct {
	ReleaseID1     string
	ReleaseID2     string
	Type           ReleaseType
	DirectParent   bool
	AddedGroups    []string
	RemovedGroups  []string
	UpdatedGroups  []string
	SameGroups     []string
	AddedLoops     []string
	RemovedLoops   []string
}

// LoopOrder is one row of a motif-label's loop-order CSV.
type LoopOrder struct {
	MotifLabel      string
	LoopID          string
	OriginalOrder   int
	SimilarityOrder int
}

// LoopPosition is one row of a motif-label's loop-position CSV.
type LoopPosition struct {
	MotifLabel string
	LoopID     string
	NTID       string
	Position   int
}

// LoopDiscrepancy is one row of a mutual-discrepancy CSV.
type LoopDiscrepancy struct {
	LoopIDA    string
	Discrepancy float64
	LoopIDB    string
}

// LoopRelease is the lighter-weight release record used by loop
// ingestion stages ahead of the first motif release of a run.
type LoopRelease struct {
	ID          string
	Date        time.Time
	Description string
}

// LoopAnnotation is a curator-maintained label decoupled from any one
// release; read-only from the pipeline's point of view.
type LoopAnnotation struct {
	LoopID       string
	CommonName   string
	Reference    string
}

// ReservedHandle is a 5-digit handle set aside so it can never be
// allocated to a motif, independent of whether any motif uses it yet.
type ReservedHandle struct {
	Handle string
}
