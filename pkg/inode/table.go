package inode

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/cache"
	. "github.com/weberc2/blockfs/pkg/types"

	"sync"
)

// Table is the process-wide directory of open inode handles, keyed by
// metadata sector so that every opener of a sector shares one handle.
//
// Lock order: table mutex, then handle mutex, then the cache's locks.
type Table struct {
	mu      sync.Mutex
	handles map[Sector]*Handle
	mapping Mapping
}

func NewTable(c *cache.Cache, a alloc.SectorAllocator) *Table {
	return &Table{
		handles: make(map[Sector]*Handle),
		mapping: NewMapping(c, a),
	}
}

// Mapping exposes the table's indexed block mapping (diagnostic tools
// use it to inspect layout without opening handles).
func (t *Table) Mapping() Mapping { return t.mapping }

// Create writes fresh metadata for a new inode of the given length at
// the given sector. Nothing is committed if the initial allocation
// fails.
func (t *Table) Create(sector Sector, length Byte) error {
	var meta Meta
	if err := t.mapping.Resize(&meta, length); err != nil {
		return fmt.Errorf("creating inode at sector `%d`: %w", sector, err)
	}
	if err := t.mapping.writeMeta(sector, &meta); err != nil {
		return fmt.Errorf("creating inode at sector `%d`: %w", sector, err)
	}
	return nil
}

// Open returns the handle for the inode at the given sector, creating
// one if no opener exists yet.
func (t *Table) Open(sector Sector) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.handles[sector]; ok {
		h.mu.Lock()
		h.openCount++
		h.mu.Unlock()
		return h
	}

	h := &Handle{sector: sector, openCount: 1}
	t.handles[sector] = h
	return h
}

// Reopen takes an additional reference on an already-open handle.
func (t *Table) Reopen(h *Handle) *Handle {
	h.mu.Lock()
	h.openCount++
	h.mu.Unlock()
	return h
}

// Close releases one reference. The last close removes the handle from
// the table and, if the inode was marked removed, reclaims every data
// and index sector and finally the metadata sector itself.
func (t *Table) Close(h *Handle) error {
	t.mu.Lock()
	h.mu.Lock()
	h.openCount--
	last := h.openCount == 0
	removed := h.removed
	if last {
		delete(t.handles, h.sector)
	}
	h.mu.Unlock()
	t.mu.Unlock()

	if !last || !removed {
		return nil
	}

	var meta Meta
	if err := t.mapping.readMeta(h.sector, &meta); err != nil {
		return fmt.Errorf("deleting inode at sector `%d`: %w", h.sector, err)
	}
	// shrinking to zero releases every referenced sector; it can't fail
	// for want of allocation
	if err := t.mapping.Resize(&meta, 0); err != nil {
		return fmt.Errorf("deleting inode at sector `%d`: %w", h.sector, err)
	}
	t.mapping.alloc.Release(h.sector, 1)
	return nil
}

// Length returns the inode's current byte length.
func (t *Table) Length(h *Handle) (Byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var meta Meta
	if err := t.mapping.readMeta(h.sector, &meta); err != nil {
		return 0, err
	}
	return meta.Length, nil
}

// OpenCount reports the number of live handles (diagnostics).
func (t *Table) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
