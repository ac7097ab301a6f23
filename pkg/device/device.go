package device

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// BlockDevice is sector-granular storage. Implementations do no buffering
// of their own; the cache above them is the only buffering layer. Both
// buffers must be exactly one sector long.
type BlockDevice interface {
	ReadSector(sector Sector, dest []byte) error
	WriteSector(sector Sector, src []byte) error
	SectorCount() Sector
}

const (
	SectorOutOfBoundsErr ConstError = "sector out of device bounds"
	ShortSectorBufferErr ConstError = "buffer is not exactly one sector"
)
