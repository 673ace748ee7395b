package reconstruct

import (
	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

type reachState int

const (
	stateUnknown reachState = iota
	stateResolving
	stateReachable
	stateUnreachable
)

// Finalize resolves every object's logical path by walking parent links
// up to a well-known root, drops objects with no surviving header or
// with no finite path to root, validates hardlink targets, and returns
// the surviving, path-resolved object set (spec.md §4.F finalization).
func (r *Reconstructor) Finalize() ([]*Object, ScanStats) {
	r.seedWellKnown()

	state := make(map[uint32]reachState, len(r.objects))
	for id, obj := range r.objects {
		if obj.Header == nil {
			if !isWellKnown(id) {
				logging.Log.WithError(errUnreachable(id)).Debug("dropping object: no surviving header")
				obj.Unreachable = true
				state[id] = stateUnreachable
			}
			continue
		}
		r.resolvePath(id, state)
	}

	var live []*Object
	for id, obj := range r.objects {
		if obj.Unreachable {
			continue
		}
		if obj.Header == nil && !isWellKnown(id) {
			continue
		}
		live = append(live, obj)
	}

	r.validateHardlinks(live)

	kept := live[:0]
	for _, obj := range live {
		if !obj.Unreachable {
			kept = append(kept, obj)
		}
	}
	live = kept

	r.stats.Objects = len(live)
	return live, r.stats
}

// seedWellKnown fixes the paths of the four pseudo-objects (spec.md
// §3, §6) regardless of whether their headers were ever observed on
// flash: object id 1 is the output root itself, and 2/3/4 are fixed
// sibling directory names.
func (r *Reconstructor) seedWellKnown() {
	root := r.ensure(yaffsfmt.ObjectIDRoot)
	root.Path = []string{}

	lostNFound := r.ensure(yaffsfmt.ObjectIDLostNFound)
	lostNFound.Path = []string{"lost_n_found"}

	unlinked := r.ensure(yaffsfmt.ObjectIDUnlinked)
	unlinked.Path = []string{"unlinked"}

	deleted := r.ensure(yaffsfmt.ObjectIDDeleted)
	deleted.Path = []string{"deleted"}
}

func isWellKnown(id uint32) bool {
	switch id {
	case yaffsfmt.ObjectIDRoot, yaffsfmt.ObjectIDLostNFound, yaffsfmt.ObjectIDUnlinked, yaffsfmt.ObjectIDDeleted:
		return true
	}
	return false
}

// resolvePath walks id's parent chain, memoizing the outcome in state
// so that (a) a cycle is detected as soon as we revisit a node still
// being resolved, and (b) every object's ancestry is walked at most
// once overall (spec.md §9 bounded-walk cycle defense).
func (r *Reconstructor) resolvePath(id uint32, state map[uint32]reachState) bool {
	if isWellKnown(id) {
		return true
	}

	switch state[id] {
	case stateReachable:
		return true
	case stateUnreachable:
		return false
	case stateResolving:
		// Revisiting a node still on the walk stack means a cycle.
		return false
	}

	obj, ok := r.objects[id]
	if !ok || obj.Header == nil {
		state[id] = stateUnreachable
		return false
	}

	state[id] = stateResolving

	parentID := obj.Header.ParentObjID
	if parentID == yaffsfmt.ObjectIDUnlinked || parentID == yaffsfmt.ObjectIDDeleted {
		logging.Log.WithField("obj_id", id).Debug("dropping object: ancestry reaches unlinked/deleted before root")
		obj.Unreachable = true
		state[id] = stateUnreachable
		return false
	}

	if !r.resolvePath(parentID, state) {
		obj.Unreachable = true
		state[id] = stateUnreachable
		return false
	}

	parentObj := r.objects[parentID]
	obj.Path = append(append([]string(nil), parentObj.Path...), string(obj.Header.Name))
	state[id] = stateReachable
	return true
}

// validateHardlinks drops any hardlink whose equiv_id does not name a
// live, non-hardlink object (spec.md §3 invariant, §4.F finalization).
func (r *Reconstructor) validateHardlinks(live []*Object) {
	byID := make(map[uint32]*Object, len(live))
	for _, obj := range live {
		byID[obj.ObjID] = obj
	}

	for _, obj := range live {
		if obj.Header == nil || obj.Header.Type != yaffsfmt.ObjectTypeHardlink {
			continue
		}
		target, ok := byID[obj.Header.EquivID]
		if !ok || target.Header == nil || target.Header.Type == yaffsfmt.ObjectTypeHardlink {
			logging.Log.WithField("obj_id", obj.ObjID).WithField("equiv_id", obj.Header.EquivID).
				Warn("dropping hardlink: target is not a live non-hardlink object")
			obj.Unreachable = true
		}
	}
}

// errUnreachable returns a wrapped ErrUnreachable for logging callers that want
// a stable error value for an unreachable object rather than a bool.
func errUnreachable(id uint32) error {
	return xerrors.Errorf("%w: obj_id %d", yerrors.ErrUnreachable, id)
}
