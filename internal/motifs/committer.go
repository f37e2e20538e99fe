// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"atlas/internal/store"
	"atlas/pkg/logging"
)

// Committer turns a merge result into a committed release: one
// transactional scope holding the release row, every motif/membership/
// parent/set-diff/release-diff row it implies, and a best-effort pass
// over auxiliary artifacts.
type Committer struct {
	Sessions  store.SessionRunner
	Merger    *Merger
	Handles   *HandleAllocator
	Artifacts ArtifactStager
	Logger    logging.Logger
	Now       func() time.Time
}

// NewCommitter builds a Committer with the standard merger threshold.
func NewCommitter(sessions store.SessionRunner, handles *HandleAllocator, artifacts ArtifactStager, logger logging.Logger) *Committer {
	return &Committer{
		Sessions:  sessions,
		Merger:    NewMerger(),
		Handles:   handles,
		Artifacts: artifacts,
		Logger:    logger,
		Now:       time.Now,
	}
}

// CommitInput bundles what one release commit needs beyond the two
// collections being merged.
type CommitInput struct {
	Type         store.ReleaseType
	Mode         store.ReleaseMode
	Description  string
	New          *Collection
	Old          *Collection
	DirectParent bool

	// GraphDescriptorPath, when non-empty, names a graphml file whose
	// group-label placeholders are substituted with committed motif
	// ids and persisted on the release row.
	GraphDescriptorPath string

	// LoopOrderCSVPath, LoopPositionCSVPath, and LoopDiscrepancyCSVPath,
	// when non-empty, name the geometry engine's auxiliary CSVs keyed
	// by pre-commit group label (the same label used in in.New's
	// groups); rows are translated to the final motif id and upserted
	// alongside the rest of the commit, grounded on
	// Uploader.__process_motif_loop_order/__process_motif_loop_positions/
	// __process_mutual_discrepancy.
	LoopOrderCSVPath       string
	LoopPositionCSVPath    string
	LoopDiscrepancyCSVPath string
}

// nextReleaseID computes the next release id for prior (empty means no
// prior release exists yet).
func nextReleaseID(prior string, mode store.ReleaseMode) (string, error) {
	if prior == "" {
		return "0.1", nil
	}
	major, minor, err := splitReleaseID(prior)
	if err != nil {
		return "", err
	}
	if mode == store.ReleaseModeMajor {
		return fmt.Sprintf("%d.0", major+1), nil
	}
	return fmt.Sprintf("%d.%d", major, minor+1), nil
}

func splitReleaseID(id string) (major, minor int, err error) {
	parts := strings.SplitN(id, ".", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("motifs: malformed release id %q", id)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("motifs: malformed release id %q: %w", id, err)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("motifs: malformed release id %q: %w", id, err)
	}
	return major, minor, nil
}

// ParseMotifID splits a motif id of the form Type_Handle.Version.
func ParseMotifID(id string) (typ, handle string, version int, err error) {
	us := strings.IndexByte(id, '_')
	if us < 0 {
		return "", "", 0, fmt.Errorf("motifs: malformed motif id %q", id)
	}
	typ = id[:us]
	rest := id[us+1:]

	dot := strings.LastIndexByte(rest, '.')
	if dot < 0 {
		return "", "", 0, fmt.Errorf("motifs: malformed motif id %q", id)
	}
	handle = rest[:dot]
	version, err = strconv.Atoi(rest[dot+1:])
	if err != nil {
		return "", "", 0, fmt.Errorf("motifs: malformed motif id %q: %w", id, err)
	}
	return typ, handle, version, nil
}

// BuildMotifID composes a motif id from its parts.
func BuildMotifID(typ, handle string, version int) string {
	return fmt.Sprintf("%s_%s.%d", typ, handle, version)
}

// Commit classifies in.New against in.Old, allocates ids, composes
// every implied row, and commits them as one transaction. On failure
// it rolls back and runs a compensating delete keyed on the allocated
// release id, defensive against rows flushed before the failure.
func (c *Committer) Commit(ctx context.Context, in CommitInput) (releaseID string, err error) {
	var finalIDs map[string]string

	commitErr := c.Sessions.RunInSession(ctx, func(sess *store.Session) error {
		prior, hasPrior, err := sess.LatestRelease(in.Type)
		priorID := ""
		if hasPrior {
			priorID = prior.ID
		}
		if err != nil {
			return err
		}

		newID, err := nextReleaseID(priorID, in.Mode)
		if err != nil {
			return err
		}
		releaseID = newID

		merged := c.Merger.Merge(in.New, in.Old)
		finalIDs = make(map[string]string, len(merged.Classifications))

		var motifs []store.Motif
		var memberships []store.Membership
		var parents []store.Parent
		var addedGroups, updatedGroups, sameGroups []string

		for _, cl := range merged.Classifications {
			motif, motifParents, err := c.composeMotif(sess, releaseID, in.Type, cl)
			if err != nil {
				return err
			}
			motifs = append(motifs, motif)
			finalIDs[cl.Group] = motif.MotifID
			parents = append(parents, motifParents...)
			for _, loop := range in.New.GroupLoops(cl.Group) {
				memberships = append(memberships, store.Membership{LoopID: loop, MotifID: motif.MotifID, ReleaseID: releaseID})
			}

			switch cl.Rule {
			case RuleExactMatch:
				sameGroups = append(sameGroups, motif.MotifID)
			case RuleUpdated1Parent, RuleUpdated2Parents:
				updatedGroups = append(updatedGroups, motif.MotifID)
			default:
				addedGroups = append(addedGroups, motif.MotifID)
			}
		}

		setDiffs := c.composeSetDiffs(merged, finalIDs, releaseID)

		release := store.Release{ID: releaseID, Type: in.Type, Date: c.Now(), Description: in.Description, Mode: in.Mode}
		if c.Artifacts != nil && in.GraphDescriptorPath != "" {
			staged, err := c.Artifacts.StageGraph(in.GraphDescriptorPath, finalIDs)
			if err != nil {
				c.Logger.Warn("graph descriptor staging failed",
					logging.NewField("release", releaseID), logging.NewField("error", err.Error()))
			} else {
				release.Graph = &staged
			}
		}
		if err := sess.InsertRelease(release); err != nil {
			return err
		}
		for _, m := range motifs {
			if err := sess.InsertMotif(m); err != nil {
				return err
			}
		}
		for _, m := range memberships {
			if err := sess.InsertMembership(m); err != nil {
				return err
			}
		}
		for _, p := range parents {
			if err := sess.InsertParent(p); err != nil {
				return err
			}
		}
		for _, d := range setDiffs {
			if err := sess.InsertSetDiff(d); err != nil {
				return err
			}
		}

		if releaseID != "0.1" {
			diff := store.ReleaseDiff{
				ReleaseID1:    releaseID,
				ReleaseID2:    in.Old.Release,
				Type:          in.Type,
				DirectParent:  in.DirectParent,
				AddedGroups:   addedGroups,
				RemovedGroups: merged.RemovedGroups,
				UpdatedGroups: updatedGroups,
				SameGroups:    sameGroups,
				AddedLoops:    difference(in.New.LoopSet(), in.Old.LoopSet()),
				RemovedLoops:  difference(in.Old.LoopSet(), in.New.LoopSet()),
			}
			if err := sess.InsertReleaseDiff(diff); err != nil {
				return err
			}
		}

		if c.Artifacts != nil {
			if err := c.Artifacts.StageStructureFiles(in.Type, releaseID, finalIDs); err != nil {
				c.Logger.Warn("structure file staging failed",
					logging.NewField("release", releaseID), logging.NewField("error", err.Error()))
			}
		}

		if err := c.ingestLoopOrder(sess, in.LoopOrderCSVPath, finalIDs); err != nil {
			return err
		}
		if err := c.ingestLoopPosition(sess, in.LoopPositionCSVPath, finalIDs); err != nil {
			return err
		}
		if err := c.ingestLoopDiscrepancy(sess, in.LoopDiscrepancyCSVPath); err != nil {
			return err
		}

		return nil
	})

	if commitErr != nil {
		if releaseID != "" {
			c.compensate(ctx, releaseID, in.Type)
		}
		return "", fmt.Errorf("motifs: committing release: %w", commitErr)
	}
	return releaseID, nil
}

func (c *Committer) composeMotif(sess *store.Session, releaseID string, typ store.ReleaseType, cl Classification) (store.Motif, []store.Parent, error) {
	var motifID, handle string
	var version int
	var comment string

	switch cl.Rule {
	case RuleExactMatch:
		_, h, v, err := ParseMotifID(cl.ReuseMotifID)
		if err != nil {
			return store.Motif{}, nil, err
		}
		motifID, handle, version = cl.ReuseMotifID, h, v
		comment = "exact match"

	case RuleUpdated1Parent, RuleUpdated2Parents:
		_, h, v, err := ParseMotifID(cl.ReuseMotifID)
		if err != nil {
			return store.Motif{}, nil, err
		}
		handle = h
		version = v + 1
		motifID = BuildMotifID(string(typ), handle, version)
		comment = string(cl.Rule)

	default:
		h, err := c.Handles.Allocate(sess)
		if err != nil {
			return store.Motif{}, nil, err
		}
		handle = h
		version = 1
		motifID = BuildMotifID(string(typ), handle, version)
		comment = string(cl.Rule)
	}

	motif := store.Motif{MotifID: motifID, ReleaseID: releaseID, Type: typ, Handle: handle, Version: version, Comment: comment}

	parentRows := make([]store.Parent, 0, len(cl.Parents))
	for _, parent := range cl.Parents {
		parentRows = append(parentRows, store.Parent{MotifID: motifID, ReleaseID: releaseID, ParentMotifID: parent})
	}

	return motif, parentRows, nil
}

func (c *Committer) composeSetDiffs(merged *MergeResult, finalIDs map[string]string, releaseID string) []store.SetDiff {
	idx := merged.Overlaps()
	var out []store.SetDiff

	for _, cl := range merged.Classifications {
		finalID := finalIDs[cl.Group]
		for old, loops := range idx.Matches(cl.Group) {
			if old == finalID {
				continue
			}
			out = append(out, store.SetDiff{
				MotifID1:     finalID,
				MotifID2:     old,
				ReleaseID:    releaseID,
				Intersection: loops,
				Overlap:      idx.Overlap(cl.Group, old),
				OneMinusTwo:  idx.SetDiff(cl.Group, old),
				TwoMinusOne:  idx.SetDiff(old, cl.Group),
			})
			out = append(out, store.SetDiff{
				MotifID1:     old,
				MotifID2:     finalID,
				ReleaseID:    releaseID,
				Intersection: loops,
				Overlap:      idx.Overlap(old, cl.Group),
				OneMinusTwo:  idx.SetDiff(old, cl.Group),
				TwoMinusOne:  idx.SetDiff(cl.Group, old),
			})
		}
	}
	return out
}

// resolveMotifID translates a CSV row's motif_label to the id it was
// actually committed under. A label absent from finalIDs is assumed to
// already be a final motif id (the row references a motif untouched by
// this commit).
func resolveMotifID(label string, finalIDs map[string]string) string {
	if id, ok := finalIDs[label]; ok {
		return id
	}
	return label
}

func readCSVRows(path string) ([][]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("motifs: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("motifs: reading %s: %w", path, err)
	}
	return rows, nil
}

// ingestLoopOrder upserts the geometry engine's per-motif loop
// ordering, grounded on Uploader.__process_motif_loop_order. Columns:
// motif_label, loop_id, original_order, similarity_order.
func (c *Committer) ingestLoopOrder(sess *store.Session, path string, finalIDs map[string]string) error {
	rows, err := readCSVRows(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		original, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return fmt.Errorf("motifs: loop order %q: %w", path, err)
		}
		similarity, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return fmt.Errorf("motifs: loop order %q: %w", path, err)
		}
		lo := store.LoopOrder{
			MotifLabel:      resolveMotifID(row[0], finalIDs),
			LoopID:          row[1],
			OriginalOrder:   original,
			SimilarityOrder: similarity,
		}
		if err := sess.InsertLoopOrder(lo); err != nil {
			return err
		}
	}
	return nil
}

// ingestLoopPosition upserts per-nucleotide positions within a motif's
// common alignment, grounded on Uploader.__process_motif_loop_positions.
// Columns: motif_label, loop_id, nt_id, position.
func (c *Committer) ingestLoopPosition(sess *store.Session, path string, finalIDs map[string]string) error {
	rows, err := readCSVRows(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		position, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return fmt.Errorf("motifs: loop position %q: %w", path, err)
		}
		lp := store.LoopPosition{
			MotifLabel: resolveMotifID(row[0], finalIDs),
			LoopID:     row[1],
			NTID:       row[2],
			Position:   position,
		}
		if err := sess.InsertLoopPosition(lp); err != nil {
			return err
		}
	}
	return nil
}

// ingestLoopDiscrepancy upserts pairwise geometric discrepancies,
// grounded on Uploader.__process_mutual_discrepancy. Columns:
// loop_id_a, discrepancy, loop_id_b.
func (c *Committer) ingestLoopDiscrepancy(sess *store.Session, path string) error {
	rows, err := readCSVRows(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		discrepancy, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return fmt.Errorf("motifs: loop discrepancy %q: %w", path, err)
		}
		ld := store.LoopDiscrepancy{
			LoopIDA:     row[0],
			Discrepancy: discrepancy,
			LoopIDB:     row[2],
		}
		if err := sess.InsertLoopDiscrepancy(ld); err != nil {
			return err
		}
	}
	return nil
}

func (c *Committer) compensate(ctx context.Context, releaseID string, typ store.ReleaseType) {
	if err := c.Sessions.RunInSession(ctx, func(sess *store.Session) error {
		return sess.RemoveRelease(releaseID, typ)
	}); err != nil {
		c.Logger.Error("compensating delete failed", logging.NewField("release", releaseID), logging.NewField("error", err.Error()))
	}
}
