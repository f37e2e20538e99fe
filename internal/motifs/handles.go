// SPDX-License-Identifier: AGPL-3.0-or-later

package motifs

import (
	"fmt"
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"

	"atlas/internal/store"
)

// handleSpace is the size of the zero-padded 5-digit handle space.
const handleSpace = 100000

// negativeCacheSize bounds the in-process memory of handles already
// observed in use, so repeated collisions within one release's batch
// of allocations don't re-probe the database for the same handle.
const negativeCacheSize = 4096

// HandleAllocator draws 5-digit handles, retrying on collision against
// both committed motifs and reserved handles, and reserves the winner
// atomically within the calling session.
type HandleAllocator struct {
	rand  *rand.Rand
	taken *lru.Cache[string, struct{}]
}

// NewHandleAllocator builds an allocator seeded for reproducible runs;
// seed 0 still produces a valid (if predictable) sequence, matching
// the CLI's --seed flag semantics.
func NewHandleAllocator(seed int64) *HandleAllocator {
	cache, _ := lru.New[string, struct{}](negativeCacheSize)
	return &HandleAllocator{rand: rand.New(rand.NewSource(seed)), taken: cache}
}

// Allocate draws and reserves a new handle within sess's transaction.
func (h *HandleAllocator) Allocate(sess *store.Session) (string, error) {
	for {
		handle := fmt.Sprintf("%05d", h.rand.Intn(handleSpace))
		if _, seen := h.taken.Get(handle); seen {
			continue
		}

		inUse, err := sess.HandleInUse(handle)
		if err != nil {
			return "", err
		}
		if inUse {
			h.taken.Add(handle, struct{}{})
			continue
		}

		if err := sess.ReserveHandle(handle); err != nil {
			return "", err
		}
		h.taken.Add(handle, struct{}{})
		return handle, nil
	}
}
