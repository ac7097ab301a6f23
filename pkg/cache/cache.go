package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/device"
	. "github.com/weberc2/blockfs/pkg/types"
)

// slot holds at most one sector's contents. Identity fields (sector,
// valid, dirty) and the content array are written only while the slot
// lock is held exclusively; recency links are guarded by the cache's
// directory mutex; counters are atomic so a lookup can record its
// outcome while holding only a shared slot lock.
type slot struct {
	mu     sync.RWMutex
	data   [SectorSize]byte
	sector Sector
	valid  bool
	dirty  bool
	hits   uint64
	misses uint64
	prev   int
	next   int
}

// Cache is a fixed-capacity, write-back LRU cache of device sectors. It
// is the single arbitration point between all readers and writers of
// device contents: concurrent readers of one sector share its slot lock,
// writers hold it exclusively, and strict LRU eviction (dirty victims
// written back, never skipped) reconciles capacity.
type Cache struct {
	dev device.BlockDevice

	mu    sync.Mutex     // directory lock: index, recency order, counters
	slots []slot         // fixed at construction
	index map[Sector]int // sector -> slot, for claimed slots only
	head  int            // most recently used
	tail  int            // eviction candidate
}

// DefaultSlots is the cache capacity used when none is configured.
const DefaultSlots = 64

func New(dev device.BlockDevice, numSlots int) *Cache {
	if numSlots < 1 {
		panic(fmt.Sprintf("cache needs at least one slot; got %d", numSlots))
	}
	c := &Cache{
		dev:   dev,
		slots: make([]slot, numSlots),
		index: make(map[Sector]int, numSlots),
		head:  0,
		tail:  numSlots - 1,
	}
	for i := range c.slots {
		c.slots[i].prev = i - 1
		c.slots[i].next = i + 1
	}
	c.slots[numSlots-1].next = -1
	return c
}

// Read copies the sector's contents into dest, which must be exactly one
// sector long. The device is only touched on a miss.
func (c *Cache) Read(dest []byte, sector Sector) error {
	if Byte(len(dest)) != SectorSize {
		return fmt.Errorf("cache read of sector `%d`: %w",
			sector, device.ShortSectorBufferErr)
	}
	s, err := c.acquire(sector, false)
	if err != nil {
		return fmt.Errorf("cache read of sector `%d`: %w", sector, err)
	}
	copy(dest, s.data[:])
	s.mu.RUnlock()
	return nil
}

// Write stores new contents for the sector and marks the slot dirty; the
// device write happens later, on eviction or flush.
func (c *Cache) Write(src []byte, sector Sector) error {
	if Byte(len(src)) != SectorSize {
		return fmt.Errorf("cache write of sector `%d`: %w",
			sector, device.ShortSectorBufferErr)
	}
	s, err := c.acquire(sector, true)
	if err != nil {
		return fmt.Errorf("cache write of sector `%d`: %w", sector, err)
	}
	copy(s.data[:], src)
	s.dirty = true
	s.mu.Unlock()
	return nil
}

// acquire returns the slot holding the sector, locked in the requested
// mode. The directory mutex is held only across lookup, victim
// selection, and recency bookkeeping; eviction write-back and the fetch
// run with it released so slow device I/O never blocks unrelated
// lookups.
//
// A lookup records exactly one hit or miss, at the point it succeeds;
// iterations that lose a revalidation race count nothing.
func (c *Cache) acquire(sector Sector, exclusive bool) (*slot, error) {
	for {
		c.mu.Lock()
		if idx, ok := c.index[sector]; ok {
			s := &c.slots[idx]
			c.moveFront(idx)
			c.mu.Unlock()

			// The slot lock is taken after the directory lock is
			// released, so the slot may have been evicted in the window;
			// re-validate its identity and redo the lookup if so.
			if exclusive {
				s.mu.Lock()
				if s.valid && s.sector == sector {
					atomic.AddUint64(&s.hits, 1)
					return s, nil
				}
				s.mu.Unlock()
			} else {
				s.mu.RLock()
				if s.valid && s.sector == sector {
					atomic.AddUint64(&s.hits, 1)
					return s, nil
				}
				s.mu.RUnlock()
			}
			continue
		}

		// Miss: claim the LRU tail as victim. Remapping the directory
		// entry before releasing the directory lock makes concurrent
		// requests for the same sector converge on this slot (they block
		// on the slot lock until the fetch finishes) instead of
		// fetching twice.
		idx := c.tail
		s := &c.slots[idx]
		if !s.mu.TryLock() {
			// the victim is mid-flight on another lookup; wait for it
			// without holding the directory lock, then redo the lookup
			c.mu.Unlock()
			s.mu.Lock()
			s.mu.Unlock()
			continue
		}
		// An invalidated or error-unclaimed slot keeps a stale sector
		// number; its directory entry may belong to another slot by now.
		// Unmap only if the directory still points here.
		if i, ok := c.index[s.sector]; ok && i == idx {
			delete(c.index, s.sector)
		}
		c.index[sector] = idx
		c.moveFront(idx)
		oldSector, writeBack := s.sector, s.valid && s.dirty
		s.sector = sector
		s.valid = false
		s.dirty = false
		c.mu.Unlock()

		if writeBack {
			if err := c.dev.WriteSector(oldSector, s.data[:]); err != nil {
				s.sector = SectorNil
				s.mu.Unlock()
				c.unclaim(sector, idx)
				return nil, fmt.Errorf(
					"writing back evicted sector `%d`: %w", oldSector, err)
			}
		}
		if err := c.dev.ReadSector(sector, s.data[:]); err != nil {
			s.sector = SectorNil
			s.mu.Unlock()
			c.unclaim(sector, idx)
			return nil, err
		}
		s.valid = true
		if exclusive {
			atomic.AddUint64(&s.misses, 1)
			return s, nil
		}

		// Downgrade for readers: drop the exclusive lock and take the
		// shared one, re-validating in case of an eviction in between.
		s.mu.Unlock()
		s.mu.RLock()
		if s.valid && s.sector == sector {
			atomic.AddUint64(&s.misses, 1)
			return s, nil
		}
		s.mu.RUnlock()
	}
}

// unclaim undoes a failed claim: the directory entry is removed and the
// slot demoted to eviction candidate. Callers must have released the
// slot lock already (the slot stays invalid, so racing lookups that find
// the stale entry re-validate and retry).
func (c *Cache) unclaim(sector Sector, idx int) {
	c.mu.Lock()
	if i, ok := c.index[sector]; ok && i == idx {
		delete(c.index, sector)
		c.moveBack(idx)
	}
	c.mu.Unlock()
}

// Flush drains every dirty, valid slot to the device. Only slot locks
// are taken, so lookups on other slots proceed during the writes.
func (c *Cache) Flush() error {
	flushed := 0
	for i := range c.slots {
		s := &c.slots[i]
		s.mu.Lock()
		if s.valid && s.dirty {
			if err := c.dev.WriteSector(s.sector, s.data[:]); err != nil {
				s.mu.Unlock()
				return fmt.Errorf(
					"flushing dirty sector `%d`: %w", s.sector, err)
			}
			s.dirty = false
			flushed++
		}
		s.mu.Unlock()
	}
	if flushed > 0 {
		logrus.WithField("sectors", flushed).Debug("flushed dirty cache slots")
	}
	return nil
}

// Reset flushes all dirty slots, then invalidates every slot and zeroes
// the hit/miss counters (shutdown/reinitialization).
func (c *Cache) Reset() error {
	if err := c.Flush(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		s := &c.slots[i]
		s.mu.Lock()
		s.valid = false
		s.dirty = false
		s.sector = SectorNil
		atomic.StoreUint64(&s.hits, 0)
		atomic.StoreUint64(&s.misses, 0)
		s.mu.Unlock()
	}
	c.index = make(map[Sector]int, len(c.slots))
	return nil
}

// HitCount returns the cumulative number of lookups served from the
// cache.
func (c *Cache) HitCount() uint64 {
	var total uint64
	for i := range c.slots {
		total += atomic.LoadUint64(&c.slots[i].hits)
	}
	return total
}

// MissCount returns the cumulative number of lookups that had to fetch
// from the device.
func (c *Cache) MissCount() uint64 {
	var total uint64
	for i := range c.slots {
		total += atomic.LoadUint64(&c.slots[i].misses)
	}
	return total
}

// moveFront promotes a slot to most-recently-used. Directory mutex held.
func (c *Cache) moveFront(idx int) {
	if c.head == idx {
		return
	}
	s := &c.slots[idx]
	if s.prev >= 0 {
		c.slots[s.prev].next = s.next
	}
	if s.next >= 0 {
		c.slots[s.next].prev = s.prev
	}
	if c.tail == idx {
		c.tail = s.prev
	}
	s.prev = -1
	s.next = c.head
	c.slots[c.head].prev = idx
	c.head = idx
}

// moveBack demotes a slot to least-recently-used. Directory mutex held.
func (c *Cache) moveBack(idx int) {
	if c.tail == idx {
		return
	}
	s := &c.slots[idx]
	if s.prev >= 0 {
		c.slots[s.prev].next = s.next
	}
	if s.next >= 0 {
		c.slots[s.next].prev = s.prev
	}
	if c.head == idx {
		c.head = s.next
	}
	s.next = -1
	s.prev = c.tail
	c.slots[c.tail].next = idx
	c.tail = idx
}
