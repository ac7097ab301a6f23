package encode

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// EncodeIndex encodes an index sector: 128 raw sector pointers.
func EncodeIndex(index *IndexSector, b *[SectorSize]byte) {
	for i := Byte(0); i < PointersPerSector; i++ {
		putSector(b[:], i*PointerSize, index[i])
	}
}

// DecodeIndex decodes an index sector.
func DecodeIndex(index *IndexSector, b *[SectorSize]byte) {
	for i := Byte(0); i < PointersPerSector; i++ {
		index[i] = getSector(b[:], i*PointerSize)
	}
}
