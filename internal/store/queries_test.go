// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "testing"

func TestPqStringArray_NilBecomesEmptySlice(t *testing.T) {
	got := pqStringArray(nil)
	if got == nil {
		t.Fatal("pqStringArray(nil) = nil, want non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("pqStringArray(nil) length = %d, want 0", len(got))
	}
}

func TestPqStringArray_PassesThroughNonNilValues(t *testing.T) {
	in := []string{"a", "b"}
	got := pqStringArray(in)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("pqStringArray(%v) = %v, want unchanged", in, got)
	}
}
