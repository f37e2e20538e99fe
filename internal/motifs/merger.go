// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import "sort"

// Rule names the classification a new-collection group received.
type Rule string

const (
	RuleNewNoParents    Rule = "new_no_parents"
	RuleExactMatch      Rule = "exact_match"
	RuleUpdated1Parent  Rule = "updated_1_parent"
	RuleNewID1Parent    Rule = "new_id_1_parent"
	RuleUpdated2Parents Rule = "updated_2_parents"
	RuleNewID2Parents   Rule = "new_id_2_parents"
	RuleGT2Parents      Rule = "gt_2_parents"
)

// Classification is the merger's verdict for one new-collection group.
type Classification struct {
	Group   string
	Rule    Rule
	Parents []string // old motif ids considered this group's ancestors

	// ReuseMotifID is set for RuleExactMatch and the two "updated"
	// rules: the old motif id whose handle (and, for exact match, full
	// id and version) this group reuses.
	ReuseMotifID string
}

// MergeResult is the total classification of every new-collection
// group, plus the old-collection groups no new group reused.
type MergeResult struct {
	Classifications []Classification
	RemovedGroups   []string
	overlapIndex    *overlapIndex
}

// Overlaps exposes the pairwise intersection/overlap/setdiff index the
// committer needs to emit SetDiff rows.
func (r *MergeResult) Overlaps() *overlapIndex { return r.overlapIndex }

type overlapIndex struct {
	intersection map[string]map[string][]string
	overlap      map[string]map[string]float64
	setdiff      map[string]map[string][]string
}

func (idx *overlapIndex) Intersection(a, b string) []string { return idx.intersection[a][b] }
func (idx *overlapIndex) Overlap(a, b string) float64       { return idx.overlap[a][b] }
func (idx *overlapIndex) SetDiff(a, b string) []string      { return idx.setdiff[a][b] }
func (idx *overlapIndex) Matches(a string) map[string][]string { return idx.intersection[a] }

// Merger computes new-versus-old correspondences per spec §4.7.
type Merger struct {
	// MinOverlap is the threshold both asymmetric overlaps must clear
	// for a single-parent match to be treated as an update rather than
	// a new id. Default 2/3.
	MinOverlap float64
}

// NewMerger builds a Merger with the standard 2/3 overlap threshold.
func NewMerger() *Merger {
	return &Merger{MinOverlap: 2.0 / 3.0}
}

// Merge classifies every group of newC against oldC.
func (m *Merger) Merge(newC, oldC *Collection) *MergeResult {
	idx := buildOverlapIndex(newC, oldC)

	result := &MergeResult{overlapIndex: idx}
	reused := make(map[string]struct{})

	for _, g := range newC.GroupLabels() {
		c := m.classify(g, idx)
		result.Classifications = append(result.Classifications, c)
		if c.ReuseMotifID != "" {
			reused[c.ReuseMotifID] = struct{}{}
		}
	}

	for _, old := range oldC.GroupLabels() {
		if _, ok := reused[old]; !ok {
			result.RemovedGroups = append(result.RemovedGroups, old)
		}
	}

	return result
}

func (m *Merger) classify(g string, idx *overlapIndex) Classification {
	matches := idx.intersection[g]

	switch len(matches) {
	case 0:
		return Classification{Group: g, Rule: RuleNewNoParents}

	case 1:
		var old string
		for k := range matches {
			old = k
		}
		if idx.overlap[g][old] == 1 && idx.overlap[old][g] == 1 {
			return Classification{Group: g, Rule: RuleExactMatch, ReuseMotifID: old}
		}
		if idx.overlap[g][old] >= m.MinOverlap && idx.overlap[old][g] >= m.MinOverlap {
			return Classification{Group: g, Rule: RuleUpdated1Parent, Parents: []string{old}, ReuseMotifID: old}
		}
		return Classification{Group: g, Rule: RuleNewID1Parent, Parents: []string{old}}

	case 2:
		candidates := make([]string, 0, 2)
		for k := range matches {
			candidates = append(candidates, k)
		}
		sortByCombinedOverlap(candidates, g, idx)

		for _, old := range candidates {
			if idx.overlap[g][old] >= m.MinOverlap && idx.overlap[old][g] >= m.MinOverlap {
				return Classification{Group: g, Rule: RuleUpdated2Parents, Parents: candidates, ReuseMotifID: old}
			}
		}
		return Classification{Group: g, Rule: RuleNewID2Parents, Parents: candidates}

	default:
		candidates := make([]string, 0, len(matches))
		for k := range matches {
			candidates = append(candidates, k)
		}
		sort.Strings(candidates)
		return Classification{Group: g, Rule: RuleGT2Parents, Parents: candidates}
	}
}

// sortByCombinedOverlap orders candidates by descending
// overlap[g][m]+overlap[m][g], ties broken by motif id lexicographic
// order -- the deterministic resolution of the otherwise-unordered
// two-parent qualification check.
func sortByCombinedOverlap(candidates []string, g string, idx *overlapIndex) {
	sort.Slice(candidates, func(i, j int) bool {
		ci := idx.overlap[g][candidates[i]] + idx.overlap[candidates[i]][g]
		cj := idx.overlap[g][candidates[j]] + idx.overlap[candidates[j]][g]
		if ci != cj {
			return ci > cj
		}
		return candidates[i] < candidates[j]
	})
}

func buildOverlapIndex(newC, oldC *Collection) *overlapIndex {
	idx := &overlapIndex{
		intersection: make(map[string]map[string][]string),
		overlap:      make(map[string]map[string]float64),
		setdiff:      make(map[string]map[string][]string),
	}

	for _, g := range newC.GroupLabels() {
		gs := newC.GroupLoopSet(g)
		for _, old := range oldC.GroupLabels() {
			oldSet := oldC.GroupLoopSet(old)
			inter := intersect(gs, oldSet)
			if len(inter) == 0 {
				continue
			}

			if idx.intersection[g] == nil {
				idx.intersection[g] = make(map[string][]string)
				idx.overlap[g] = make(map[string]float64)
				idx.setdiff[g] = make(map[string][]string)
			}
			if idx.intersection[old] == nil {
				idx.intersection[old] = make(map[string][]string)
				idx.overlap[old] = make(map[string]float64)
				idx.setdiff[old] = make(map[string][]string)
			}

			idx.intersection[g][old] = inter
			idx.intersection[old][g] = inter
			idx.setdiff[g][old] = difference(gs, oldSet)
			idx.setdiff[old][g] = difference(oldSet, gs)
			idx.overlap[g][old] = float64(len(inter)) / float64(len(gs))
			idx.overlap[old][g] = float64(len(inter)) / float64(len(oldSet))
		}
	}

	return idx
}
