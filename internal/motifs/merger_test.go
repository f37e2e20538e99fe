// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func classificationFor(t *testing.T, result *MergeResult, group string) Classification {
	t.Helper()
	for _, c := range result.Classifications {
		if c.Group == group {
			return c
		}
	}
	t.Fatalf("no classification for group %q", group)
	return Classification{}
}

func TestMerge_NewNoParents(t *testing.T) {
	oldC, err := NewCollection([]string{"IL_1"}, []string{"OLD_1"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection([]string{"IL_9"}, []string{"NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleNewNoParents, c.Rule)
	require.Empty(t, c.ReuseMotifID)
	require.Equal(t, []string{"OLD_1"}, result.RemovedGroups)
}

func TestMerge_ExactMatch(t *testing.T) {
	oldC, err := NewCollection([]string{"IL_1", "IL_2"}, []string{"OLD_1", "OLD_1"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection([]string{"IL_1", "IL_2"}, []string{"NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleExactMatch, c.Rule)
	require.Equal(t, "OLD_1", c.ReuseMotifID)
	require.Empty(t, result.RemovedGroups)
}

func TestMerge_Updated1Parent(t *testing.T) {
	// old has 3 loops, new has the same 3 plus one extra -- overlap from
	// new's side is 3/4, from old's side is 3/3=1, both >= 2/3.
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3"},
		[]string{"OLD_1", "OLD_1", "OLD_1"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3", "IL_4"},
		[]string{"NEW_1", "NEW_1", "NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleUpdated1Parent, c.Rule)
	require.Equal(t, "OLD_1", c.ReuseMotifID)
	require.Equal(t, []string{"OLD_1"}, c.Parents)
}

func TestMerge_NewID1Parent(t *testing.T) {
	// overlap well under 2/3 on at least one side.
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3", "IL_4", "IL_5", "IL_6"},
		[]string{"OLD_1", "OLD_1", "OLD_1", "OLD_1", "OLD_1", "OLD_1"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_9"},
		[]string{"NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleNewID1Parent, c.Rule)
	require.Equal(t, []string{"OLD_1"}, c.Parents)
	require.Empty(t, c.ReuseMotifID)
}

func TestMerge_Updated2Parents(t *testing.T) {
	// new group wholly contains two old groups. OLD_1 covers 2/3 of the
	// new group and is fully covered (1.0), so both its overlaps clear
	// the 2/3 threshold; OLD_2 covers only 1/3 of the new group.
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3"},
		[]string{"OLD_1", "OLD_1", "OLD_2"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3"},
		[]string{"NEW_1", "NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleUpdated2Parents, c.Rule)
	require.ElementsMatch(t, []string{"OLD_1", "OLD_2"}, c.Parents)
	require.Contains(t, []string{"OLD_1", "OLD_2"}, c.ReuseMotifID)
}

func TestMerge_NewID2Parents(t *testing.T) {
	// new group only partially overlaps two old groups, neither
	// qualifying under the 2/3 threshold from both sides.
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3", "IL_4"},
		[]string{"OLD_1", "OLD_1", "OLD_2", "OLD_2"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_3", "IL_9", "IL_10"},
		[]string{"NEW_1", "NEW_1", "NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleNewID2Parents, c.Rule)
	require.ElementsMatch(t, []string{"OLD_1", "OLD_2"}, c.Parents)
	require.Empty(t, c.ReuseMotifID)
}

func TestMerge_GT2Parents(t *testing.T) {
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3"},
		[]string{"OLD_1", "OLD_2", "OLD_3"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3"},
		[]string{"NEW_1", "NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	c := classificationFor(t, result, "NEW_1")
	require.Equal(t, RuleGT2Parents, c.Rule)
	require.Equal(t, []string{"OLD_1", "OLD_2", "OLD_3"}, c.Parents)
}

func TestMerge_TwoParentTieBreakIsDeterministic(t *testing.T) {
	// Both old groups are identical to new's loop set, so their
	// combined overlap scores tie exactly; sortByCombinedOverlap must
	// fall back to lexicographic order so repeated runs pick the same
	// ReuseMotifID rather than one determined by map iteration order.
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_1", "IL_2"},
		[]string{"OLD_B", "OLD_B", "OLD_A", "OLD_A"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_2"},
		[]string{"NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		result := NewMerger().Merge(newC, oldC)
		c := classificationFor(t, result, "NEW_1")
		require.Equal(t, RuleUpdated2Parents, c.Rule)
		require.Equal(t, []string{"OLD_A", "OLD_B"}, c.Parents)
		require.Equal(t, "OLD_A", c.ReuseMotifID)
	}
}

func TestMerge_RemovedGroupsExcludesReused(t *testing.T) {
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2"},
		[]string{"OLD_1", "OLD_2"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1"},
		[]string{"NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	require.Equal(t, "OLD_1", classificationFor(t, result, "NEW_1").ReuseMotifID)
	require.Equal(t, []string{"OLD_2"}, result.RemovedGroups)
}

func TestMerge_OverlapsExposesSetDiff(t *testing.T) {
	oldC, err := NewCollection(
		[]string{"IL_1", "IL_2"},
		[]string{"OLD_1", "OLD_1"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection(
		[]string{"IL_1", "IL_3"},
		[]string{"NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	result := NewMerger().Merge(newC, oldC)

	require.Equal(t, []string{"IL_1"}, result.Overlaps().Intersection("NEW_1", "OLD_1"))
	require.Equal(t, []string{"IL_3"}, result.Overlaps().SetDiff("NEW_1", "OLD_1"))
	require.Equal(t, []string{"IL_2"}, result.Overlaps().SetDiff("OLD_1", "NEW_1"))
}
