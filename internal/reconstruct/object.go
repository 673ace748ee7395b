// Package reconstruct applies the sequence-number merge rule across a
// scanned chunk stream to build the live object set and per-file chunk
// maps (spec.md §4.F).
package reconstruct

import "github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"

// ChunkRef names the physical location of the winning version of one
// data chunk.
type ChunkRef struct {
	Seq       uint32
	NandIndex int
}

// Object is the in-memory record for one obj_id: its latest-winning
// header, the sequence number that header chunk carried, a sparse
// chunk_id -> ChunkRef map for file data, and the set of children
// (populated for directories during the scan).
type Object struct {
	ObjID     uint32
	Header    *yaffsfmt.Header
	HeaderSeq uint32
	Chunks    map[uint32]ChunkRef
	Children  map[uint32]struct{}

	// Path is the resolved logical path (components, root-relative),
	// filled in by Finalize. Nil until finalization succeeds for this
	// object.
	Path []string

	// Unreachable is set by Finalize when an object's ancestry never
	// reaches a well-known root, its header never arrived, or it's a
	// hardlink whose equiv_id fails validation; such objects are
	// excluded from Finalize's return value and, defensively, skipped
	// again by Materialize.
	Unreachable bool
}

func newObject(id uint32) *Object {
	return &Object{
		ObjID:    id,
		Chunks:   make(map[uint32]ChunkRef),
		Children: make(map[uint32]struct{}),
	}
}

// ScanStats accumulates run totals purely for the human-readable
// summary printed at the end of a scan (SPEC_FULL.md §3 supplement).
type ScanStats struct {
	Chunks     int
	Skipped    int
	Checkpoint int
	Objects    int
}
