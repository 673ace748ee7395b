// Package scan walks a YAFFS2 image chunk by chunk, skipping
// checkpoint blocks, erased chunks and malformed spares, and yielding
// decoded (spare, page) events to the reconstructor. Bad blocks are
// not detected.
package scan

import (
	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
)

// Event is one surviving (page, spare) pair, tagged with its physical
// chunk index within the image.
type Event struct {
	NandChunkIndex int
	Spare          yaffsfmt.Spare
	Page           []byte
}

// Scanner is a pull-style iterator over an image's chunk stream
// (spec.md §4.E). It holds no state beyond its cursor, next chunk
// index and checkpoint-skip count; restartability is not required, so a fresh Scanner is cheap
// to build per geometry-oracle retry.
type Scanner struct {
	image []byte
	geo   yaffsfmt.Geometry

	offset   int
	chunkIdx int

	checkpointSkips int
}

// New builds a scanner over image using the given geometry.
func New(image []byte, geo yaffsfmt.Geometry) *Scanner {
	return &Scanner{image: image, geo: geo}
}

// Next returns the next surviving event, or ok=false once the image is
// exhausted. Malformed chunks (logged at debug level) and erased chunks
// (not logged) are skipped internally and never surfaced to the caller, per spec.md §4.E's
// "skip the chunk but advance the index" rule — the scanner never
// returns an error for a single bad chunk.
func (s *Scanner) Next() (ev Event, ok bool) {
	for {
		chunkSize := s.geo.ChunkSize()
		if s.offset+chunkSize > len(s.image) {
			return Event{}, false
		}

		page := s.image[s.offset : s.offset+s.geo.PageSize]
		spareRaw := s.image[s.offset+s.geo.PageSize : s.offset+chunkSize]

		if yaffsfmt.IsErased(spareRaw) {
			s.advanceChunk()
			continue
		}

		spare, decodeErr := yaffsfmt.DecodeSpare(spareRaw, s.geo)
		if decodeErr != nil {
			idx := s.chunkIdx
			s.advanceChunk()
			logging.Log.WithField("chunk", idx).WithError(decodeErr).Debug("skipping chunk: malformed spare")
			continue
		}

		if spare.IsCheckpointMarker() {
			logging.Log.WithField("chunk", s.chunkIdx).Debug("skipping checkpoint block")
			s.skipCheckpointBlock()
			continue
		}

		ev = Event{
			NandChunkIndex: s.chunkIdx,
			Spare:          spare,
			Page:           page,
		}
		s.advanceChunk()
		return ev, true
	}
}

func (s *Scanner) advanceChunk() {
	s.offset += s.geo.ChunkSize()
	s.chunkIdx++
}

// skipCheckpointBlock advances past the remainder of the erase-block
// containing a checkpoint marker. When block size is unknown (zero),
// skipping degrades to a single chunk (spec.md §4.E step 3).
func (s *Scanner) skipCheckpointBlock() {
	s.checkpointSkips++
	if s.geo.BlockSize <= 0 {
		s.advanceChunk()
		return
	}
	remaining := s.geo.BlockSize - 1
	s.offset += remaining * s.geo.ChunkSize()
	s.chunkIdx += remaining
	s.advanceChunk()
}

// CheckpointSkips reports how many checkpoint-marked erase blocks have
// been skipped so far, for ScanStats.Checkpoint (SPEC_FULL.md §3).
func (s *Scanner) CheckpointSkips() int {
	return s.checkpointSkips
}
