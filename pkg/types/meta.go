package types

const (
	// DirectCount is the number of direct sector pointers held in the
	// metadata sector itself.
	DirectCount = 12

	// MetaMagic tags a valid metadata sector ("INOD").
	MetaMagic uint32 = 0x494e4f44

	// DirectCap and IndirectCap are the largest byte lengths reachable
	// without the single- and double-indirect levels respectively.
	DirectCap   = Byte(DirectCount) * SectorSize
	IndirectCap = (Byte(DirectCount) + PointersPerSector) * SectorSize

	// MaxLength is the total addressable file size: 12 direct sectors,
	// 128 single-indirect sectors, and 128*128 double-indirect sectors.
	MaxLength = (Byte(DirectCount) + PointersPerSector +
		PointersPerSector*PointersPerSector) * SectorSize
)

// Meta is the decoded on-disk inode metadata. The encoded form fills
// exactly one sector; see pkg/encode.
type Meta struct {
	Direct         [DirectCount]Sector
	Indirect       Sector
	DoubleIndirect Sector
	Length         Byte
}
