// Package yaffstest builds synthetic YAFFS2 chunk streams for tests
// across the geometry, scan, reconstruct, and materialize packages, so
// each package's tests don't have to hand-roll binary fixtures.
package yaffstest

import (
	"encoding/binary"

	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
)

// HeaderSpec describes one object-header page to encode. Zero-value
// fields decode to zero except FileSizeHigh, whose natural "unused"
// value is 0xFFFFFFFF; callers that care about FileSize() should set
// it explicitly.
type HeaderSpec struct {
	Type        yaffsfmt.ObjectType
	ParentObjID uint32
	Name        string
	Mode        uint32
	UID         uint32
	GID         uint32
	ATime       uint32
	MTime       uint32
	CTime       uint32
	FileSizeLow uint32
	EquivID     uint32
	Alias       string
	RDev        uint32
	// FileSizeHigh of 0 here is encoded as 0xFFFFFFFF unless
	// UseFileSizeHigh is set, matching "unused" on real flash.
	FileSizeHigh    uint32
	UseFileSizeHigh bool
}

func putUint32(b []byte, order binary.ByteOrder, v uint32) {
	order.PutUint32(b, v)
}

// EncodeHeader renders spec as a full geo.PageSize page.
func EncodeHeader(spec HeaderSpec, geo yaffsfmt.Geometry) []byte {
	page := make([]byte, geo.PageSize)
	for i := range page {
		page[i] = 0xFF
	}

	off := 0
	put32 := func(v uint32) {
		putUint32(page[off:off+4], geo.Endian, v)
		off += 4
	}

	put32(uint32(spec.Type))
	put32(spec.ParentObjID)
	page[off] = 0xFF // legacy checksum, unused
	page[off+1] = 0xFF
	off += 2

	nameField := make([]byte, yaffsfmt.MaxNameLength+1)
	for i := range nameField {
		nameField[i] = 0
	}
	copy(nameField, spec.Name)
	copy(page[off:off+len(nameField)], nameField)
	off += len(nameField)

	put32(0xFFFFFFFF) // filler
	put32(spec.Mode)
	put32(spec.UID)
	put32(spec.GID)
	put32(spec.ATime)
	put32(spec.MTime)
	put32(spec.CTime)
	put32(spec.FileSizeLow)
	put32(spec.EquivID)

	aliasField := make([]byte, yaffsfmt.MaxAliasLength+1)
	for i := range aliasField {
		aliasField[i] = 0
	}
	copy(aliasField, spec.Alias)
	copy(page[off:off+len(aliasField)], aliasField)
	off += len(aliasField)

	put32(spec.RDev)
	for i := 0; i < 6; i++ { // WinCE timestamp halves, ignored
		put32(0)
	}
	put32(0) // inband_shadowed_obj_id
	put32(0) // inband_is_shrink

	if spec.UseFileSizeHigh {
		put32(spec.FileSizeHigh)
	} else {
		put32(0xFFFFFFFF)
	}
	put32(0) // reserved
	put32(0) // shadows_obj
	put32(0) // is_shrink

	return page
}

// EncodeSpare renders the four spare fields as a full geo.SpareSize
// record, including the two leading filler bytes when !geo.ECCLayout.
func EncodeSpare(seq, objID, chunkID, nBytes uint32, geo yaffsfmt.Geometry) []byte {
	spare := make([]byte, geo.SpareSize)
	for i := range spare {
		spare[i] = 0xFF
	}

	off := 0
	if !geo.ECCLayout {
		off = 2
	}
	geo.Endian.PutUint32(spare[off:off+4], seq)
	geo.Endian.PutUint32(spare[off+4:off+8], objID)
	geo.Endian.PutUint32(spare[off+8:off+12], chunkID)
	geo.Endian.PutUint32(spare[off+12:off+16], nBytes)

	return spare
}

// EncodeDataPage renders a data-chunk page of geo.PageSize bytes,
// containing data at the front and zero-padded beyond it.
func EncodeDataPage(data []byte, geo yaffsfmt.Geometry) []byte {
	page := make([]byte, geo.PageSize)
	copy(page, data)
	return page
}

// ErasedChunk returns a full page+spare pair in the NAND-erased (all
// 0xFF) state.
func ErasedChunk(geo yaffsfmt.Geometry) []byte {
	chunk := make([]byte, geo.ChunkSize())
	for i := range chunk {
		chunk[i] = 0xFF
	}
	return chunk
}

// CheckpointChunk returns a chunk whose spare marks the start of a
// checkpoint block (spec.md §3); its page contents are irrelevant since
// the whole block is skipped.
func CheckpointChunk(geo yaffsfmt.Geometry) []byte {
	page := make([]byte, geo.PageSize)
	for i := range page {
		page[i] = 0xAA
	}
	spare := EncodeSpare(yaffsfmt.CheckpointSeqNumber, 0, 0, 0, geo)
	return Chunk(page, spare)
}

// Chunk concatenates a page and its spare into one on-flash chunk.
func Chunk(page, spare []byte) []byte {
	out := make([]byte, 0, len(page)+len(spare))
	out = append(out, page...)
	out = append(out, spare...)
	return out
}

// Image concatenates a sequence of chunks into a full image buffer.
func Image(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
