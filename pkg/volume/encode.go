package volume

import (
	"encoding/binary"
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

func encodeHeader(header *Header, b *[SectorSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	binary.LittleEndian.PutUint32(p[headerMagicStart:], headerMagic)
	copy(p[headerLabelStart:headerLabelEnd], header.Label[:])
	binary.LittleEndian.PutUint32(p[headerSectorsStart:],
		uint32(header.Sectors))
	binary.LittleEndian.PutUint32(p[headerFreeMapStartStart:],
		uint32(header.FreeMapStart))
	binary.LittleEndian.PutUint32(p[headerFreeMapSectorsStart:],
		uint32(header.FreeMapSectors))
}

func decodeHeader(header *Header, b *[SectorSize]byte) error {
	p := b[:]
	if magic := binary.LittleEndian.Uint32(p[headerMagicStart:]); magic != headerMagic {
		return fmt.Errorf("magic `%#x`: %w", magic, BadHeaderErr)
	}
	copy(header.Label[:], p[headerLabelStart:headerLabelEnd])
	header.Sectors = Sector(
		binary.LittleEndian.Uint32(p[headerSectorsStart:]))
	header.FreeMapStart = Sector(
		binary.LittleEndian.Uint32(p[headerFreeMapStartStart:]))
	header.FreeMapSectors = Sector(
		binary.LittleEndian.Uint32(p[headerFreeMapSectorsStart:]))
	return nil
}

const (
	headerMagicStart = 0
	headerMagicSize  = 4
	headerMagicEnd   = headerMagicStart + headerMagicSize

	headerLabelStart = headerMagicEnd
	headerLabelSize  = 16
	headerLabelEnd   = headerLabelStart + headerLabelSize

	headerSectorsStart = headerLabelEnd
	headerSectorsSize  = 4
	headerSectorsEnd   = headerSectorsStart + headerSectorsSize

	headerFreeMapStartStart = headerSectorsEnd
	headerFreeMapStartSize  = 4
	headerFreeMapStartEnd   = headerFreeMapStartStart + headerFreeMapStartSize

	headerFreeMapSectorsStart = headerFreeMapStartEnd
	headerFreeMapSectorsSize  = 4
	headerFreeMapSectorsEnd   = headerFreeMapSectorsStart +
		headerFreeMapSectorsSize
)
