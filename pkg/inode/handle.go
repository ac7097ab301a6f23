package inode

import (
	"fmt"
	"sync"

	. "github.com/weberc2/blockfs/pkg/types"
)

// Handle is the in-memory representation of an open inode, shared by
// every opener of the same metadata sector. The mutex serializes
// reference-count changes, deny/allow toggling, and length mutation
// (resize); it does not serialize data-sector I/O.
type Handle struct {
	sector     Sector
	mu         sync.Mutex
	openCount  int
	removed    bool
	denyWrites int
}

// Sector returns the metadata sector number identifying the inode.
func (h *Handle) Sector() Sector { return h.sector }

// DenyWrite disables writes through any handle of this inode. Callers
// pair every DenyWrite with exactly one AllowWrite before closing; a
// deny count exceeding the open count is a caller bug.
func (h *Handle) DenyWrite() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.denyWrites++
	if h.denyWrites > h.openCount {
		panic(fmt.Sprintf(
			"inode sector %d: deny-write count %d exceeds open count %d",
			h.sector,
			h.denyWrites,
			h.openCount,
		))
	}
}

// AllowWrite undoes one DenyWrite.
func (h *Handle) AllowWrite() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.denyWrites == 0 {
		panic(fmt.Sprintf(
			"inode sector %d: AllowWrite without matching DenyWrite",
			h.sector,
		))
	}
	h.denyWrites--
}

// Remove marks the inode for deferred deletion: data stays accessible to
// existing openers, and the last Close reclaims every sector.
func (h *Handle) Remove() {
	h.mu.Lock()
	h.removed = true
	h.mu.Unlock()
}
