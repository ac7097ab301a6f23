package device

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

// MemDevice is an in-memory block device backed by a single byte slice.
type MemDevice struct {
	data []byte
}

func NewMemDevice(sectors Sector) *MemDevice {
	return &MemDevice{data: make([]byte, Byte(sectors)*SectorSize)}
}

func (d *MemDevice) SectorCount() Sector {
	return Sector(Byte(len(d.data)) / SectorSize)
}

func (d *MemDevice) ReadSector(sector Sector, dest []byte) error {
	start, err := d.check(sector, dest)
	if err != nil {
		return fmt.Errorf("reading sector `%d`: %w", sector, err)
	}
	copy(dest, d.data[start:start+SectorSize])
	return nil
}

func (d *MemDevice) WriteSector(sector Sector, src []byte) error {
	start, err := d.check(sector, src)
	if err != nil {
		return fmt.Errorf("writing sector `%d`: %w", sector, err)
	}
	copy(d.data[start:start+SectorSize], src)
	return nil
}

func (d *MemDevice) check(sector Sector, buf []byte) (Byte, error) {
	if Byte(len(buf)) != SectorSize {
		return 0, ShortSectorBufferErr
	}
	if sector >= d.SectorCount() {
		return 0, SectorOutOfBoundsErr
	}
	return Byte(sector) * SectorSize, nil
}
