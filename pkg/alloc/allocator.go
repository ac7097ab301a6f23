package alloc

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// SectorAllocator hands out free sectors for inode growth and takes them
// back on shrink and delete. AllocBatch is all-or-nothing: it returns
// every requested sector (not necessarily contiguous) or none at all.
type SectorAllocator interface {
	AllocBatch(count int) ([]Sector, bool)
	Release(sector Sector, count int)
}

var _ SectorAllocator = (*FreeMap)(nil)
