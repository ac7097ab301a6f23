package store

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/device"
	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
)

var _ alloc.BitmapStore = DeviceBitmapStore{}

// DeviceBitmapStore persists a free map into consecutive sectors of the
// block device, starting at a fixed sector.
type DeviceBitmapStore struct {
	dev   device.BlockDevice
	start Sector
}

func NewDeviceBitmapStore(
	dev device.BlockDevice,
	start Sector,
) DeviceBitmapStore {
	return DeviceBitmapStore{dev: dev, start: start}
}

// Sectors returns the number of sectors a free map for the given device
// size occupies on disk.
func Sectors(deviceSectors Sector) Sector {
	bytes := math.DivRoundUp(uint64(deviceSectors), 8)
	return Sector(math.DivRoundUp(bytes, uint64(SectorSize)))
}

func (store DeviceBitmapStore) Put(bitmap alloc.Bitmap) error {
	var buf [SectorSize]byte
	data := bitmap.Bytes()
	for i := Sector(0); len(data) > 0; i++ {
		n := copy(buf[:], data)
		for j := n; j < int(SectorSize); j++ {
			buf[j] = 0
		}
		if err := store.dev.WriteSector(store.start+i, buf[:]); err != nil {
			return fmt.Errorf("storing free map: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// Load reads a previously stored free map back into memory and rebuilds
// a FreeMap from it.
func (store DeviceBitmapStore) Load(deviceSectors Sector) (*alloc.FreeMap, error) {
	fm := alloc.NewStoredFreeMap(deviceSectors, store)
	var buf [SectorSize]byte
	for i := Sector(0); i < Sectors(deviceSectors); i++ {
		if err := store.dev.ReadSector(store.start+i, buf[:]); err != nil {
			return nil, fmt.Errorf("loading free map: %w", err)
		}
		base := Sector(Byte(i) * SectorSize * 8)
		for bit := Sector(0); bit < Sector(SectorSize)*8; bit++ {
			sector := base + bit
			if sector >= deviceSectors {
				return fm, nil
			}
			if buf[bit/8]&(0b1000_0000>>uint8(bit%8)) != 0 {
				fm.Reserve(sector, 1)
			}
		}
	}
	return fm, nil
}
