package device

import (
	"fmt"
	"os"

	. "github.com/weberc2/blockfs/pkg/types"
)

// FileDevice is a block device backed by an image file on the host.
type FileDevice struct {
	file    *os.File
	sectors Sector
}

// OpenFileDevice opens an existing image file. The file size must be a
// whole number of sectors.
func OpenFileDevice(path string) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening device image: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("opening device image: %w", err)
	}
	if info.Size()%int64(SectorSize) != 0 {
		file.Close()
		return nil, fmt.Errorf(
			"opening device image: size `%d` is not a whole number of "+
				"sectors",
			info.Size(),
		)
	}

	return &FileDevice{
		file:    file,
		sectors: Sector(info.Size() / int64(SectorSize)),
	}, nil
}

// CreateFileDevice creates (or truncates) an image file sized to the
// given sector count.
func CreateFileDevice(path string, sectors Sector) (*FileDevice, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating device image: %w", err)
	}
	if err := file.Truncate(int64(sectors) * int64(SectorSize)); err != nil {
		file.Close()
		return nil, fmt.Errorf("creating device image: %w", err)
	}
	return &FileDevice{file: file, sectors: sectors}, nil
}

func (d *FileDevice) SectorCount() Sector { return d.sectors }

func (d *FileDevice) ReadSector(sector Sector, dest []byte) error {
	if err := d.check(sector, dest); err != nil {
		return fmt.Errorf("reading sector `%d`: %w", sector, err)
	}
	if _, err := d.file.ReadAt(
		dest,
		int64(sector)*int64(SectorSize),
	); err != nil {
		return fmt.Errorf("reading sector `%d`: %w", sector, err)
	}
	return nil
}

func (d *FileDevice) WriteSector(sector Sector, src []byte) error {
	if err := d.check(sector, src); err != nil {
		return fmt.Errorf("writing sector `%d`: %w", sector, err)
	}
	if _, err := d.file.WriteAt(
		src,
		int64(sector)*int64(SectorSize),
	); err != nil {
		return fmt.Errorf("writing sector `%d`: %w", sector, err)
	}
	return nil
}

func (d *FileDevice) Close() error { return d.file.Close() }

func (d *FileDevice) check(sector Sector, buf []byte) error {
	if Byte(len(buf)) != SectorSize {
		return ShortSectorBufferErr
	}
	if sector >= d.sectors {
		return SectorOutOfBoundsErr
	}
	return nil
}
