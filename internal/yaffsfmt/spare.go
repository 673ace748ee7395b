package yaffsfmt

import (
	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// Spare is the decoded OOB record beside every page (spec.md §3).
type Spare struct {
	SeqNumber   uint32
	ObjectID    uint32
	ChunkID     uint32
	NumberBytes uint32
}

// IsHeaderChunk reports whether this spare names an object-header page
// (chunk_id == 0) rather than a data chunk.
func (s Spare) IsHeaderChunk() bool {
	return s.ChunkID == 0
}

// IsCheckpointMarker reports whether this spare marks the start of a
// checkpoint block, which must be skipped in its entirety.
func (s Spare) IsCheckpointMarker() bool {
	return s.SeqNumber == CheckpointSeqNumber
}

// allErased reports whether b is entirely 0xFF, the NAND-erased state.
func allErased(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// IsErased reports whether a raw spare slice is the all-0xFF erased
// state, meaning no chunk was ever written here.
func IsErased(raw []byte) bool {
	return allErased(raw)
}

// DecodeSpare parses a raw spare-area slice per the geometry's layout
// variant (spec.md §4.C): skip 2 filler bytes when !ECCLayout, then
// four fields in order seq_number, obj_id, chunk_id, n_bytes.
func DecodeSpare(raw []byte, g Geometry) (Spare, error) {
	skip := g.spareSkip()
	if len(raw) < skip+16 {
		return Spare{}, xerrors.Errorf("%w: spare record needs %d bytes, have %d", yerrors.ErrMalformedSpare, skip+16, len(raw))
	}

	c := NewCursor(raw)
	if err := c.Skip(skip); err != nil {
		return Spare{}, xerrors.Errorf("%w: %v", yerrors.ErrMalformedSpare, err)
	}

	seq, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Spare{}, xerrors.Errorf("%w: seq_number: %v", yerrors.ErrMalformedSpare, err)
	}
	objID, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Spare{}, xerrors.Errorf("%w: obj_id: %v", yerrors.ErrMalformedSpare, err)
	}
	chunkID, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Spare{}, xerrors.Errorf("%w: chunk_id: %v", yerrors.ErrMalformedSpare, err)
	}
	nBytes, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Spare{}, xerrors.Errorf("%w: n_bytes: %v", yerrors.ErrMalformedSpare, err)
	}

	return Spare{
		SeqNumber:   seq,
		ObjectID:    objID,
		ChunkID:     chunkID,
		NumberBytes: nBytes,
	}, nil
}
