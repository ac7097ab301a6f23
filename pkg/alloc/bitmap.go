package alloc

import (
	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
)

const bitsPerByte = 8

// Bitmap tracks one bit per sector; a high bit means "in use". It is not
// safe for concurrent use; see FreeMap.
type Bitmap struct {
	bytes   []byte
	sectors Sector
}

func NewBitmap(sectors Sector) Bitmap {
	return Bitmap{
		bytes:   make([]byte, math.DivRoundUp(uint64(sectors), bitsPerByte)),
		sectors: sectors,
	}
}

func (bm Bitmap) Alloc() (Sector, bool) {
	i, bit, ok := bytesFirstZero(bm.bytes)
	if !ok {
		return SectorNil, false
	}
	sector := Sector(i*bitsPerByte) + Sector(bit)
	if sector >= bm.sectors {
		// the final byte can address bits past the device's end
		return SectorNil, false
	}
	bm.bytes[i] = byteSetHigh(bm.bytes[i], bit)
	return sector, true
}

func (bm Bitmap) Free(sector Sector) {
	b := &bm.bytes[sector/bitsPerByte]
	*b = byteSetLow(*b, uint8(sector%bitsPerByte))
}

func (bm Bitmap) Reserve(sector Sector) {
	b := &bm.bytes[sector/bitsPerByte]
	*b = byteSetHigh(*b, uint8(sector%bitsPerByte))
}

func (bm Bitmap) InUse(sector Sector) bool {
	return !byteIsZero(bm.bytes[sector/bitsPerByte], uint8(sector%bitsPerByte))
}

func (bm Bitmap) Bytes() []byte { return bm.bytes }

func bytesFirstZero(bytes []byte) (int, uint8, bool) {
	for i, byt := range bytes {
		if bit := byteFirstZero(byt); bit != 0xff {
			return i, bit, true
		}
	}
	return 0, 0, false
}

func byteIsZero(byt byte, bit uint8) bool {
	return byt&(0b1000_0000>>bit) == 0
}

func byteSetHigh(byt byte, bit uint8) byte {
	return byt | (0b1000_0000 >> bit)
}

func byteSetLow(byt byte, bit uint8) byte {
	return byt & ^(0b1000_0000 >> bit)
}

func byteFirstZero(byt byte) uint8 {
	for bit := uint8(0); bit < 8; bit++ {
		if byteIsZero(byt, bit) {
			return bit
		}
	}
	return 0xff
}
