package yaffsfmt

import "encoding/binary"

// Geometry is the on-flash shape needed to decode any chunk: page and
// spare sizes, byte order, and which of the two spare-area layouts is
// in effect (spec.md §3).
type Geometry struct {
	PageSize  int
	SpareSize int
	Endian    binary.ByteOrder
	ECCLayout bool

	// BlockSize is the number of chunks per erase-block. Zero means
	// "unknown" — checkpoint skipping degrades to per-chunk
	// (spec.md §4.E). Bad blocks are not detected at any block size.
	BlockSize int
}

// ChunkSize is the combined size of one page + its spare record.
func (g Geometry) ChunkSize() int {
	return g.PageSize + g.SpareSize
}

// spareSkip is the number of leading filler bytes before the spare
// record's four u32 fields: 2 for the no-ECC layout, 0 for ECC layout
// (spec.md §3).
func (g Geometry) spareSkip() int {
	if g.ECCLayout {
		return 0
	}
	return 2
}
