package volume

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/alloc/store"
	"github.com/weberc2/blockfs/pkg/device"
	. "github.com/weberc2/blockfs/pkg/types"
)

const (
	// HeaderSector is where the volume header lives; the free map
	// follows immediately after it.
	HeaderSector Sector = 0

	headerMagic uint32 = 0x42465356 // "BFSV"

	BadHeaderErr ConstError = "bad volume header"
)

// Header describes a formatted volume: identity and the free map's
// on-disk extent.
type Header struct {
	Label          uuid.UUID
	Sectors        Sector
	FreeMapStart   Sector
	FreeMapSectors Sector
}

// Volume is a formatted block device: header, persistent free map, and
// the data region the engine allocates from.
type Volume struct {
	Header  Header
	FreeMap *alloc.FreeMap
}

// Format writes a fresh header and free map onto the device, reserving
// the sectors they occupy. Everything else starts free.
func Format(dev device.BlockDevice) (*Volume, error) {
	sectors := dev.SectorCount()
	header := Header{
		Label:          uuid.New(),
		Sectors:        sectors,
		FreeMapStart:   HeaderSector + 1,
		FreeMapSectors: store.Sectors(sectors),
	}

	var buf [SectorSize]byte
	encodeHeader(&header, &buf)
	if err := dev.WriteSector(HeaderSector, buf[:]); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}

	bitmapStore := store.NewDeviceBitmapStore(dev, header.FreeMapStart)
	freeMap := alloc.NewStoredFreeMap(sectors, bitmapStore)
	freeMap.Reserve(HeaderSector, int(1+header.FreeMapSectors))
	if err := freeMap.Flush(); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}

	return &Volume{Header: header, FreeMap: freeMap}, nil
}

// Load reads the header and free map of a previously formatted volume.
func Load(dev device.BlockDevice) (*Volume, error) {
	var buf [SectorSize]byte
	if err := dev.ReadSector(HeaderSector, buf[:]); err != nil {
		return nil, fmt.Errorf("loading volume: %w", err)
	}

	var header Header
	if err := decodeHeader(&header, &buf); err != nil {
		return nil, fmt.Errorf("loading volume: %w", err)
	}
	if header.Sectors != dev.SectorCount() {
		return nil, fmt.Errorf(
			"loading volume: header says `%d` sectors but device has "+
				"`%d`: %w",
			header.Sectors,
			dev.SectorCount(),
			BadHeaderErr,
		)
	}

	bitmapStore := store.NewDeviceBitmapStore(dev, header.FreeMapStart)
	freeMap, err := bitmapStore.Load(header.Sectors)
	if err != nil {
		return nil, fmt.Errorf("loading volume: %w", err)
	}

	return &Volume{Header: header, FreeMap: freeMap}, nil
}
