package inode

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/cache"
	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
)

// SectorCount returns the number of data sectors needed to hold length
// bytes, excluding metadata and index sectors.
func SectorCount(length Byte) Byte {
	return math.DivRoundUp(length, SectorSize)
}

// BlockCount returns the total sectors a file of the given length
// occupies: data sectors, the metadata sector, and any index sectors.
func BlockCount(length Byte) Byte {
	data := SectorCount(length)
	switch {
	case data <= DirectCount:
		return data + 1
	case data <= DirectCount+PointersPerSector:
		return data + 2
	default:
		secondLevel := math.DivRoundUp(
			data-(DirectCount+PointersPerSector),
			PointersPerSector,
		)
		return data + 3 + secondLevel
	}
}

// Mapping resolves byte offsets to physical sectors through the
// direct/indirect/double-indirect index structure and reconciles the
// allocated sector set with a new length on resize.
type Mapping struct {
	cache *cache.Cache
	alloc alloc.SectorAllocator
}

func NewMapping(c *cache.Cache, a alloc.SectorAllocator) Mapping {
	return Mapping{cache: c, alloc: a}
}

// Translate returns the physical sector holding the byte at off.
// Callers must bound-check off against the file's logical length first;
// an unallocated slot inside the length is corrupt state.
func (m Mapping) Translate(meta *Meta, off Byte) (Sector, error) {
	if off >= meta.Length {
		return SectorNil, fmt.Errorf(
			"translating offset `%d` in file of length `%d`: %w",
			off,
			meta.Length,
			OutOfRangeErr,
		)
	}

	idx := off / SectorSize

	if idx < DirectCount {
		return m.checkSlot(meta.Direct[idx], off)
	}

	if idx < DirectCount+PointersPerSector {
		var table IndexSector
		if err := m.readIndex(meta.Indirect, &table); err != nil {
			return SectorNil, fmt.Errorf(
				"translating offset `%d`: single-indirect table: %w",
				off,
				err,
			)
		}
		return m.checkSlot(table[idx-DirectCount], off)
	}

	// outer index selects a second-level table, inner index selects the
	// data sector
	rel := idx - (DirectCount + PointersPerSector)
	var outer, inner IndexSector
	if err := m.readIndex(meta.DoubleIndirect, &outer); err != nil {
		return SectorNil, fmt.Errorf(
			"translating offset `%d`: double-indirect table: %w",
			off,
			err,
		)
	}
	second := outer[rel/PointersPerSector]
	if err := m.readIndex(second, &inner); err != nil {
		return SectorNil, fmt.Errorf(
			"translating offset `%d`: second-level table `%d`: %w",
			off,
			rel/PointersPerSector,
			err,
		)
	}
	return m.checkSlot(inner[rel%PointersPerSector], off)
}

func (m Mapping) checkSlot(sector Sector, off Byte) (Sector, error) {
	if sector == SectorNil {
		return SectorNil, fmt.Errorf(
			"translating offset `%d`: unallocated sector slot: %w",
			off,
			OutOfRangeErr,
		)
	}
	return sector, nil
}

func (m Mapping) readIndex(sector Sector, table *IndexSector) error {
	if sector == SectorNil {
		return fmt.Errorf("index sector unallocated: %w", OutOfRangeErr)
	}
	var buf [SectorSize]byte
	if err := m.cache.Read(buf[:], sector); err != nil {
		return err
	}
	encode.DecodeIndex(table, &buf)
	return nil
}

func (m Mapping) writeIndex(sector Sector, table *IndexSector) error {
	var buf [SectorSize]byte
	encode.EncodeIndex(table, &buf)
	return m.cache.Write(buf[:], sector)
}

func (m Mapping) readMeta(sector Sector, meta *Meta) error {
	var buf [SectorSize]byte
	if err := m.cache.Read(buf[:], sector); err != nil {
		return fmt.Errorf("loading inode metadata sector `%d`: %w",
			sector, err)
	}
	if err := encode.DecodeMeta(meta, &buf); err != nil {
		return fmt.Errorf("loading inode metadata sector `%d`: %w",
			sector, err)
	}
	return nil
}

func (m Mapping) writeMeta(sector Sector, meta *Meta) error {
	var buf [SectorSize]byte
	encode.EncodeMeta(meta, &buf)
	if err := m.cache.Write(buf[:], sector); err != nil {
		return fmt.Errorf("storing inode metadata sector `%d`: %w",
			sector, err)
	}
	return nil
}

var zeroSector [SectorSize]byte

func (m Mapping) zeroFill(sector Sector) error {
	return m.cache.Write(zeroSector[:], sector)
}
