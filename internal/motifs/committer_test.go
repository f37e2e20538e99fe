// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/internal/store"
)

func TestNextReleaseID_FirstReleaseIsZeroDotOne(t *testing.T) {
	id, err := nextReleaseID("", store.ReleaseModeMinor)
	require.NoError(t, err)
	require.Equal(t, "0.1", id)
}

func TestNextReleaseID_MinorBumpsMinorComponent(t *testing.T) {
	id, err := nextReleaseID("1.3", store.ReleaseModeMinor)
	require.NoError(t, err)
	require.Equal(t, "1.4", id)
}

func TestNextReleaseID_MajorResetsMinor(t *testing.T) {
	id, err := nextReleaseID("1.3", store.ReleaseModeMajor)
	require.NoError(t, err)
	require.Equal(t, "2.0", id)
}

func TestNextReleaseID_RejectsMalformedPrior(t *testing.T) {
	_, err := nextReleaseID("bogus", store.ReleaseModeMinor)
	require.Error(t, err)
}

func TestParseMotifID_RoundTrips(t *testing.T) {
	typ, handle, version, err := ParseMotifID("IL_00001.2")
	require.NoError(t, err)
	require.Equal(t, "IL", typ)
	require.Equal(t, "00001", handle)
	require.Equal(t, 2, version)
	require.Equal(t, "IL_00001.2", BuildMotifID(typ, handle, version))
}

func TestParseMotifID_RejectsMalformed(t *testing.T) {
	_, _, _, err := ParseMotifID("no-underscore-or-dot")
	require.Error(t, err)

	_, _, _, err = ParseMotifID("IL_00001")
	require.Error(t, err)

	_, _, _, err = ParseMotifID("IL_00001.notanumber")
	require.Error(t, err)
}

func TestResolveMotifID_UsesMappingWhenPresent(t *testing.T) {
	finalIDs := map[string]string{"Group_1": "IL_00001.1"}
	require.Equal(t, "IL_00001.1", resolveMotifID("Group_1", finalIDs))
}

func TestResolveMotifID_FallsBackToLabelWhenAbsent(t *testing.T) {
	finalIDs := map[string]string{"Group_1": "IL_00001.1"}
	require.Equal(t, "IL_00002.3", resolveMotifID("IL_00002.3", finalIDs))
}

func TestReadCSVRows_EmptyPathIsNoOp(t *testing.T) {
	rows, err := readCSVRows("")
	require.NoError(t, err)
	require.Nil(t, rows)
}

func TestReadCSVRows_MissingFile(t *testing.T) {
	_, err := readCSVRows("/no/such/file.csv")
	require.Error(t, err)
}

func TestReadCSVRows_ParsesRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("Group_1,IL_1,0,1\nGroup_1,IL_2,1,0\n"), 0o644))

	rows, err := readCSVRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"Group_1", "IL_1", "0", "1"}, rows[0])
}

func TestComposeMotif_ExactMatchReusesFullID(t *testing.T) {
	c := &Committer{}
	cl := Classification{Group: "Group_1", Rule: RuleExactMatch, ReuseMotifID: "IL_00007.3"}

	motif, parents, err := c.composeMotif(nil, "1.2", store.ReleaseTypeInternal, cl)
	require.NoError(t, err)
	require.Equal(t, "IL_00007.3", motif.MotifID)
	require.Equal(t, "00007", motif.Handle)
	require.Equal(t, 3, motif.Version)
	require.Equal(t, "exact match", motif.Comment)
	require.Empty(t, parents)
}

func TestComposeMotif_UpdatedBumpsVersionKeepsHandle(t *testing.T) {
	c := &Committer{}
	cl := Classification{Group: "Group_1", Rule: RuleUpdated1Parent, Parents: []string{"IL_00007.3"}, ReuseMotifID: "IL_00007.3"}

	motif, parents, err := c.composeMotif(nil, "1.2", store.ReleaseTypeInternal, cl)
	require.NoError(t, err)
	require.Equal(t, "IL_00007.4", motif.MotifID)
	require.Equal(t, "00007", motif.Handle)
	require.Equal(t, 4, motif.Version)
	require.Len(t, parents, 1)
	require.Equal(t, "IL_00007.3", parents[0].ParentMotifID)
	require.Equal(t, "IL_00007.4", parents[0].MotifID)
}

func TestComposeMotif_RejectsMalformedReuseID(t *testing.T) {
	c := &Committer{}
	cl := Classification{Group: "Group_1", Rule: RuleExactMatch, ReuseMotifID: "not-a-motif-id"}

	_, _, err := c.composeMotif(nil, "1.2", store.ReleaseTypeInternal, cl)
	require.Error(t, err)
}

func TestComposeSetDiffs_EmitsBothDirectionsExcludingSelf(t *testing.T) {
	oldC, err := NewCollection([]string{"IL_1", "IL_2"}, []string{"OLD_1", "OLD_1"}, "1.0")
	require.NoError(t, err)
	newC, err := NewCollection([]string{"IL_1", "IL_3"}, []string{"NEW_1", "NEW_1"}, "1.1")
	require.NoError(t, err)

	merged := NewMerger().Merge(newC, oldC)
	finalIDs := map[string]string{"NEW_1": "IL_00001.1"}

	c := &Committer{}
	diffs := c.composeSetDiffs(merged, finalIDs, "1.1")
	require.Len(t, diffs, 2)

	var forward, backward *store.SetDiff
	for i := range diffs {
		switch diffs[i].MotifID1 {
		case "IL_00001.1":
			forward = &diffs[i]
		case "OLD_1":
			backward = &diffs[i]
		}
	}
	require.NotNil(t, forward)
	require.NotNil(t, backward)
	require.Equal(t, []string{"IL_1"}, forward.Intersection)
	require.Equal(t, []string{"IL_3"}, forward.OneMinusTwo)
	require.Equal(t, []string{"IL_2"}, forward.TwoMinusOne)
	require.Equal(t, forward.Intersection, backward.Intersection)
}
