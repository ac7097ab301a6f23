package types

// ConstError is an error type whose values can be declared as constants.
type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	// AllocationExhaustedErr is returned when the allocator cannot supply
	// the sector delta a resize needs. The resize commits nothing.
	AllocationExhaustedErr ConstError = "free-space allocation exhausted"

	// OutOfRangeErr is returned when a byte offset beyond the file's
	// logical length is translated to a sector.
	OutOfRangeErr ConstError = "offset out of range"

	// WriteDeniedErr is returned (with a zero byte count) when a write is
	// attempted while the inode's deny-write count is non-zero.
	WriteDeniedErr ConstError = "writes denied"

	// CorruptMetaErr is returned when a metadata sector's magic tag
	// doesn't match; the engine refuses to operate on the inode.
	CorruptMetaErr ConstError = "corrupt inode metadata"
)
