package reconstruct

import (
	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/scan"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
)

// Reconstructor merges scanner events into a live object set, applying
// the sequence-number rule from spec.md §4.F. The object map is the
// only mutable shared state in the system; it is mutated by Apply,
// called from a single driver loop (spec.md §5), and then by Finalize.
type Reconstructor struct {
	objects map[uint32]*Object
	geo     yaffsfmt.Geometry
	stats   ScanStats
}

// New builds an empty reconstructor for the given geometry (needed to
// decode header pages as they arrive).
func New(geo yaffsfmt.Geometry) *Reconstructor {
	return &Reconstructor{
		objects: make(map[uint32]*Object),
		geo:     geo,
	}
}

func (r *Reconstructor) ensure(id uint32) *Object {
	obj, ok := r.objects[id]
	if !ok {
		obj = newObject(id)
		r.objects[id] = obj
	}
	return obj
}

// Apply folds one scanner event into the object map per spec.md §4.F.
func (r *Reconstructor) Apply(ev scan.Event) {
	r.stats.Chunks++
	obj := r.ensure(ev.Spare.ObjectID)

	if ev.Spare.IsHeaderChunk() {
		r.applyHeader(obj, ev)
		return
	}

	prev, had := obj.Chunks[ev.Spare.ChunkID]
	if !had || ev.Spare.SeqNumber > prev.Seq {
		obj.Chunks[ev.Spare.ChunkID] = ChunkRef{
			Seq:       ev.Spare.SeqNumber,
			NandIndex: ev.NandChunkIndex,
		}
	}
}

func (r *Reconstructor) applyHeader(obj *Object, ev scan.Event) {
	header, err := yaffsfmt.DecodeHeader(ev.Page, r.geo)
	if err != nil {
		logging.Log.WithField("chunk", ev.NandChunkIndex).WithError(err).Warn("skipping malformed header")
		r.stats.Skipped++
		return
	}

	if obj.Header == nil || ev.Spare.SeqNumber > obj.HeaderSeq {
		oldParent := uint32(0)
		hadOldParent := obj.Header != nil
		if hadOldParent {
			oldParent = obj.Header.ParentObjID
		}

		obj.Header = &header
		obj.HeaderSeq = ev.Spare.SeqNumber

		if hadOldParent && oldParent != header.ParentObjID {
			if oldParentObj, ok := r.objects[oldParent]; ok {
				delete(oldParentObj.Children, obj.ObjID)
			}
		}
		parentObj := r.ensure(header.ParentObjID)
		parentObj.Children[obj.ObjID] = struct{}{}
	}
}

// Objects returns the raw object map, keyed by obj_id. Intended for
// tests and for Finalize; callers wanting the finalized, materializable
// set should use Finalize's return value instead.
func (r *Reconstructor) Objects() map[uint32]*Object {
	return r.objects
}

// Stats returns the running scan counters.
func (r *Reconstructor) Stats() ScanStats {
	return r.stats
}
