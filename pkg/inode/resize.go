package inode

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

// Resize reconciles the inode's allocated sector set with newLength,
// growing or shrinking as needed. The positive block-count delta is
// requested from the allocator in one batch up front, so a resize either
// gets everything it needs or mutates nothing. Newly covered data
// sectors are zero-filled; uncovered sectors are released; index sectors
// materialize lazily and are released once the last data sector they
// address is freed. Concurrent resizes of the same inode must be
// excluded by the caller (the handle lock does this).
//
// Resize updates meta in memory only; persisting the metadata sector is
// the caller's job.
func (m Mapping) Resize(meta *Meta, newLength Byte) error {
	if newLength > MaxLength {
		return fmt.Errorf(
			"resizing to `%d` bytes (max `%d`): %w",
			newLength,
			MaxLength,
			OutOfRangeErr,
		)
	}

	oldBlocks := BlockCount(meta.Length)
	newBlocks := BlockCount(newLength)

	var pool []Sector
	if newBlocks > oldBlocks {
		var ok bool
		if pool, ok = m.alloc.AllocBatch(int(newBlocks - oldBlocks)); !ok {
			return fmt.Errorf(
				"resizing from `%d` to `%d` bytes (`%d` new sectors): %w",
				meta.Length,
				newLength,
				newBlocks-oldBlocks,
				AllocationExhaustedErr,
			)
		}
	}

	// take consumes the next pre-allocated sector. Exhausting the pool
	// means BlockCount disagrees with the walk below, which is a bug
	// worth dying for.
	next := 0
	take := func() Sector {
		if next >= len(pool) {
			panic(fmt.Sprintf(
				"resize to %d bytes consumed more than the %d "+
					"pre-allocated sectors",
				newLength,
				len(pool),
			))
		}
		s := pool[next]
		next++
		return s
	}

	for i := Byte(0); i < DirectCount; i++ {
		covered := newLength > i*SectorSize
		switch {
		case !covered && meta.Direct[i] != SectorNil:
			m.alloc.Release(meta.Direct[i], 1)
			meta.Direct[i] = SectorNil
		case covered && meta.Direct[i] == SectorNil:
			meta.Direct[i] = take()
			if err := m.zeroFill(meta.Direct[i]); err != nil {
				return fmt.Errorf("resizing to `%d` bytes: %w",
					newLength, err)
			}
		}
	}

	if meta.Indirect != SectorNil || newLength > DirectCap {
		if err := m.resizeTable(
			&meta.Indirect,
			DirectCap,
			newLength,
			take,
		); err != nil {
			return fmt.Errorf("resizing to `%d` bytes: %w", newLength, err)
		}
	}

	if meta.DoubleIndirect != SectorNil || newLength > IndirectCap {
		if err := m.resizeDoubleTable(
			&meta.DoubleIndirect,
			IndirectCap,
			newLength,
			take,
		); err != nil {
			return fmt.Errorf("resizing to `%d` bytes: %w", newLength, err)
		}
	}

	if next != len(pool) {
		panic(fmt.Sprintf(
			"resize to %d bytes consumed %d of %d pre-allocated sectors",
			newLength,
			next,
			len(pool),
		))
	}

	meta.Length = newLength
	return nil
}

// resizeTable grows/shrinks one single-level index table of data
// pointers covering the byte range [base, base+128*SectorSize). Callers
// only invoke it when the table exists or the new length reaches into
// its range.
func (m Mapping) resizeTable(
	ptr *Sector,
	base Byte,
	newLength Byte,
	take func() Sector,
) error {
	var table IndexSector
	if *ptr == SectorNil {
		*ptr = take()
	} else if err := m.readIndex(*ptr, &table); err != nil {
		return fmt.Errorf("index table at base `%d`: %w", base, err)
	}

	for i := Byte(0); i < PointersPerSector; i++ {
		covered := newLength > base+i*SectorSize
		switch {
		case !covered && table[i] != SectorNil:
			m.alloc.Release(table[i], 1)
			table[i] = SectorNil
		case covered && table[i] == SectorNil:
			table[i] = take()
			if err := m.zeroFill(table[i]); err != nil {
				return fmt.Errorf("index table at base `%d`: %w", base, err)
			}
		}
	}

	if newLength <= base {
		// the table no longer addresses any data sector
		m.alloc.Release(*ptr, 1)
		*ptr = SectorNil
		return nil
	}
	if err := m.writeIndex(*ptr, &table); err != nil {
		return fmt.Errorf("index table at base `%d`: %w", base, err)
	}
	return nil
}

// resizeDoubleTable grows/shrinks the double-indirect structure: an
// outer table whose slots each point at a second-level table covering
// 128 data sectors.
func (m Mapping) resizeDoubleTable(
	ptr *Sector,
	base Byte,
	newLength Byte,
	take func() Sector,
) error {
	var outer IndexSector
	if *ptr == SectorNil {
		*ptr = take()
	} else if err := m.readIndex(*ptr, &outer); err != nil {
		return fmt.Errorf("double-indirect table: %w", err)
	}

	for i := Byte(0); i < PointersPerSector; i++ {
		childBase := base + i*PointersPerSector*SectorSize
		if outer[i] == SectorNil && newLength <= childBase {
			continue
		}
		if err := m.resizeTable(&outer[i], childBase, newLength, take); err != nil {
			return fmt.Errorf("double-indirect slot `%d`: %w", i, err)
		}
	}

	if newLength <= base {
		m.alloc.Release(*ptr, 1)
		*ptr = SectorNil
		return nil
	}
	if err := m.writeIndex(*ptr, &outer); err != nil {
		return fmt.Errorf("double-indirect table: %w", err)
	}
	return nil
}
