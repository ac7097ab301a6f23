package alloc

import (
	"sync"

	. "github.com/weberc2/blockfs/pkg/types"
)

// BitmapStore persists a free map; see the store subpackage for the
// device-backed implementation.
type BitmapStore interface {
	Put(Bitmap) error
}

// FreeMap is a mutex-guarded bitmap allocator. The zero store is valid:
// a FreeMap built with NewFreeMap never flushes anywhere and lives only
// in memory (tests, scratch devices).
type FreeMap struct {
	mutex  sync.Mutex
	bitmap Bitmap
	store  BitmapStore
	dirty  bool
}

func NewFreeMap(sectors Sector) *FreeMap {
	return &FreeMap{bitmap: NewBitmap(sectors)}
}

func NewStoredFreeMap(sectors Sector, store BitmapStore) *FreeMap {
	return &FreeMap{bitmap: NewBitmap(sectors), store: store}
}

// AllocBatch allocates exactly count sectors or none: on exhaustion the
// partial prefix is rolled back so a failed resize leaves the free map
// untouched.
func (fm *FreeMap) AllocBatch(count int) ([]Sector, bool) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()

	sectors := make([]Sector, 0, count)
	for i := 0; i < count; i++ {
		sector, ok := fm.bitmap.Alloc()
		if !ok {
			for _, s := range sectors {
				fm.bitmap.Free(s)
			}
			return nil, false
		}
		sectors = append(sectors, sector)
	}
	fm.dirty = true
	return sectors, true
}

// Release returns count consecutive sectors starting at sector.
func (fm *FreeMap) Release(sector Sector, count int) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	for i := 0; i < count; i++ {
		fm.bitmap.Free(sector + Sector(i))
	}
	fm.dirty = true
}

// Reserve marks count consecutive sectors as in use (mkfs reserves the
// header, free-map, and metadata sectors this way).
func (fm *FreeMap) Reserve(sector Sector, count int) {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	for i := 0; i < count; i++ {
		fm.bitmap.Reserve(sector + Sector(i))
	}
	fm.dirty = true
}

// InUse reports whether a sector is currently allocated.
func (fm *FreeMap) InUse(sector Sector) bool {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	return fm.bitmap.InUse(sector)
}

// Flush persists the free map through the store, if any.
func (fm *FreeMap) Flush() error {
	fm.mutex.Lock()
	defer fm.mutex.Unlock()
	if fm.store == nil || !fm.dirty {
		return nil
	}
	if err := fm.store.Put(fm.bitmap); err != nil {
		return err
	}
	fm.dirty = false
	return nil
}
