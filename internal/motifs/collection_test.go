// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCollection_RejectsMismatchedLengths(t *testing.T) {
	_, err := NewCollection([]string{"a", "b"}, []string{"g1"}, "1.0")
	require.Error(t, err)
}

func TestNewCollection_IndexesGroupsAndLoops(t *testing.T) {
	c, err := NewCollection(
		[]string{"IL_1", "IL_2", "IL_3"},
		[]string{"Group_1", "Group_1", "Group_2"},
		"1.0",
	)
	require.NoError(t, err)

	require.Equal(t, []string{"Group_1", "Group_2"}, c.GroupLabels())
	require.ElementsMatch(t, []string{"IL_1", "IL_2"}, c.GroupLoops("Group_1"))
	require.True(t, c.HasLoop("IL_3"))
	require.False(t, c.HasLoop("IL_4"))
	require.Len(t, c.LoopSet(), 3)
}

func TestFromCSV_ReadsLoopGroupPairs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.csv")
	require.NoError(t, os.WriteFile(path, []byte("IL_1,Group_1\nIL_2,Group_1\nIL_3,Group_2\n"), 0o644))

	c, err := FromCSV(path, "1.0")
	require.NoError(t, err)
	require.Equal(t, []string{"Group_1", "Group_2"}, c.GroupLabels())
}

func TestFromCSV_RejectsShortRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "groups.csv")
	require.NoError(t, os.WriteFile(path, []byte("IL_1\n"), 0o644))

	_, err := FromCSV(path, "1.0")
	require.Error(t, err)
}

func TestFromCSV_MissingFile(t *testing.T) {
	_, err := FromCSV("/no/such/file.csv", "1.0")
	require.Error(t, err)
}

