package types

// Sector is the number of a fixed-size addressable unit on the block
// device. Sector pointers are stored on disk as little-endian uint32s;
// zero means "unallocated".
type Sector uint32

// Byte is a byte count or byte offset within a file. File lengths are
// 32-bit on disk.
type Byte uint32

const (
	SectorSize  Byte = 512
	PointerSize Byte = 4

	// PointersPerSector is the fan-out of every index sector.
	PointersPerSector = Byte(SectorSize / PointerSize)

	SectorNil Sector = 0
)

// IndexSector is the decoded form of an index sector: a raw array of 128
// sector pointers.
type IndexSector [PointersPerSector]Sector
