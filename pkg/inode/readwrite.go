package inode

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
)

// ReadAt reads up to len(p) bytes starting at byte offset off, returning
// the number of bytes read. Reads past the current length are clamped;
// a short count otherwise means device or metadata failure.
func (t *Table) ReadAt(h *Handle, p []byte, off Byte) (int, error) {
	h.mu.Lock()
	var meta Meta
	err := t.mapping.readMeta(h.sector, &meta)
	h.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if off >= meta.Length {
		return 0, nil
	}
	n := math.Min(Byte(len(p)), meta.Length-off)

	var read Byte
	for read < n {
		pos := off + read
		sector, err := t.mapping.Translate(&meta, pos)
		if err != nil {
			return int(read), fmt.Errorf(
				"reading `%d` bytes at offset `%d`: %w", n, off, err)
		}

		sectorOff := pos % SectorSize
		chunk := math.Min(n-read, SectorSize-sectorOff)

		if sectorOff == 0 && chunk == SectorSize {
			err = t.mapping.cache.Read(p[read:read+SectorSize], sector)
		} else {
			// partial sector: bounce through a scratch buffer since the
			// cache's unit is a whole sector
			var bounce [SectorSize]byte
			if err = t.mapping.cache.Read(bounce[:], sector); err == nil {
				copy(p[read:read+chunk], bounce[sectorOff:sectorOff+chunk])
			}
		}
		if err != nil {
			return int(read), fmt.Errorf(
				"reading `%d` bytes at offset `%d`: %w", n, off, err)
		}
		read += chunk
	}
	return int(read), nil
}

// WriteAt writes len(p) bytes at byte offset off, growing the inode
// first when the write extends past the current length. While the
// inode's deny-write count is non-zero the write is refused with a zero
// count and WriteDeniedErr. If growth fails the write is confined to the
// current length and the short count is returned along with the
// allocation error; length always reflects fully committed growth, so
// end-of-file is never a short-write condition.
func (t *Table) WriteAt(h *Handle, p []byte, off Byte) (int, error) {
	h.mu.Lock()
	if h.denyWrites > 0 {
		h.mu.Unlock()
		return 0, WriteDeniedErr
	}

	var meta Meta
	if err := t.mapping.readMeta(h.sector, &meta); err != nil {
		h.mu.Unlock()
		return 0, err
	}

	var growErr error
	end := off + Byte(len(p))
	if end > meta.Length {
		if err := t.mapping.Resize(&meta, end); err != nil {
			// no partial mutation was committed; write what fits
			growErr = err
		} else if err := t.mapping.writeMeta(h.sector, &meta); err != nil {
			h.mu.Unlock()
			return 0, fmt.Errorf(
				"writing `%d` bytes at offset `%d`: %w", len(p), off, err)
		}
	}
	h.mu.Unlock()

	limit := math.Min(end, meta.Length)
	var written Byte
	for off+written < limit {
		pos := off + written
		sector, err := t.mapping.Translate(&meta, pos)
		if err != nil {
			return int(written), fmt.Errorf(
				"writing `%d` bytes at offset `%d`: %w", len(p), off, err)
		}

		sectorOff := pos % SectorSize
		chunk := math.Min(limit-pos, SectorSize-sectorOff)

		if sectorOff == 0 && chunk == SectorSize {
			err = t.mapping.cache.Write(p[written:written+SectorSize], sector)
		} else {
			// read-modify-write through a scratch buffer for partial
			// sectors
			var bounce [SectorSize]byte
			if err = t.mapping.cache.Read(bounce[:], sector); err == nil {
				copy(bounce[sectorOff:sectorOff+chunk],
					p[written:written+chunk])
				err = t.mapping.cache.Write(bounce[:], sector)
			}
		}
		if err != nil {
			return int(written), fmt.Errorf(
				"writing `%d` bytes at offset `%d`: %w", len(p), off, err)
		}
		written += chunk
	}

	if growErr != nil {
		return int(written), fmt.Errorf(
			"writing `%d` bytes at offset `%d`: %w", len(p), off, growErr)
	}
	return int(written), nil
}
