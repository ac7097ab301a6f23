package encode

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

// EncodeMeta encodes inode metadata into exactly one sector. The
// reserved tail of the sector is zeroed.
func EncodeMeta(meta *Meta, b *[SectorSize]byte) {
	p := b[:]
	for i := range p[metaReservedStart:] {
		p[metaReservedStart+Byte(i)] = 0
	}

	for i := Byte(0); i < DirectCount; i++ {
		putSector(p, metaDirectStart+i*PointerSize, meta.Direct[i])
	}
	putSector(p, metaIndirectStart, meta.Indirect)
	putSector(p, metaDoubleIndirectStart, meta.DoubleIndirect)
	putByteCount(p, metaLengthStart, meta.Length)
	putU32(p, metaMagicStart, MetaMagic)
}

// DecodeMeta decodes a metadata sector, refusing sectors whose magic tag
// doesn't match.
func DecodeMeta(meta *Meta, b *[SectorSize]byte) error {
	p := b[:]

	// validate before mutating the output; a sector that doesn't carry
	// the magic tag is not inode metadata at all.
	if magic := getU32(p, metaMagicStart); magic != MetaMagic {
		return fmt.Errorf(
			"decoding inode metadata: magic `%#x`: %w",
			magic,
			CorruptMetaErr,
		)
	}

	for i := Byte(0); i < DirectCount; i++ {
		meta.Direct[i] = getSector(p, metaDirectStart+i*PointerSize)
	}
	meta.Indirect = getSector(p, metaIndirectStart)
	meta.DoubleIndirect = getSector(p, metaDoubleIndirectStart)
	meta.Length = getByteCount(p, metaLengthStart)
	return nil
}

const (
	metaDirectStart = 0
	metaDirectSize  = Byte(DirectCount) * PointerSize
	metaDirectEnd   = metaDirectStart + metaDirectSize

	metaIndirectStart = metaDirectEnd
	metaIndirectSize  = PointerSize
	metaIndirectEnd   = metaIndirectStart + metaIndirectSize

	metaDoubleIndirectStart = metaIndirectEnd
	metaDoubleIndirectSize  = PointerSize
	metaDoubleIndirectEnd   = metaDoubleIndirectStart + metaDoubleIndirectSize

	metaLengthStart = metaDoubleIndirectEnd
	metaLengthSize  = 4
	metaLengthEnd   = metaLengthStart + metaLengthSize

	metaMagicStart = metaLengthEnd
	metaMagicSize  = 4
	metaMagicEnd   = metaMagicStart + metaMagicSize

	metaReservedStart = metaMagicEnd
)
