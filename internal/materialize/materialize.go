// Package materialize writes a finalized YAFFS object set to an output
// directory, in the strict ordering discipline of spec.md §4.G:
// directories by depth, then regular files and special nodes, then
// symlinks and hardlinks.
package materialize

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/reconstruct"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// Options controls permission preservation, matching -o/--ownership
// and the implicit always-on mode preservation of spec.md §4.G.
type Options struct {
	PreserveMode  bool
	PreserveOwner bool
}

// Result reports how many entries of each kind were actually created.
type Result struct {
	Directories int
	Files       int
	Links       int
}

// Materialize writes objs to outDir, reading file payload chunks out of
// image using geo to locate each physical chunk.
func Materialize(objs []*reconstruct.Object, image []byte, geo yaffsfmt.Geometry, outDir string, opts Options) (Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, xerrors.Errorf("%w: create output directory: %v", yerrors.ErrFatal, err)
	}

	rejected := make(map[uint32]bool)
	var result Result

	live := make([]*reconstruct.Object, 0, len(objs))
	for _, obj := range objs {
		if obj.Unreachable {
			continue
		}
		live = append(live, obj)
	}

	materializeDirectories(live, outDir, opts, rejected, &result)
	materializeFilesAndSpecials(live, image, geo, outDir, opts, rejected, &result)
	materializeLinks(live, outDir, rejected, &result)

	return result, nil
}

// resolvedPath joins an object's logical path to outDir, rejecting any
// object with a ".." component or an embedded separator in any name,
// per spec.md §4.G's path-traversal defense. A rejected object's
// dependents (anything under it) are cascaded as rejected too, since
// their own resolvedPath calls walk through the same hostile component.
func resolvedPath(obj *reconstruct.Object, outDir string) (string, bool) {
	for _, comp := range obj.Path {
		flat := flattenComponent(comp)
		if flat != comp || comp == ".." || comp == "." || comp == "" {
			err := xerrors.Errorf("%w: obj_id %d component %q", yerrors.ErrHostilePath, obj.ObjID, comp)
			logging.Log.WithField("obj_id", obj.ObjID).WithField("component", comp).WithError(err).
				Warn("refusing to materialize: hostile path component")
			return "", false
		}
	}
	parts := append([]string{outDir}, obj.Path...)
	return filepath.Join(parts...), true
}

// flattenComponent collapses any embedded path separator in a YAFFS
// name into something that can never escape outDir; names legitimately
// cannot contain '/' on a real YAFFS volume, so any occurrence here is
// treated as hostile input (spec.md §4.G).
func flattenComponent(comp string) string {
	if strings.ContainsAny(comp, "/\\") {
		return strings.Map(func(r rune) rune {
			if r == '/' || r == '\\' {
				return '_'
			}
			return r
		}, comp)
	}
	return comp
}

func materializeDirectories(objs []*reconstruct.Object, outDir string, opts Options, rejected map[uint32]bool, result *Result) {
	dirs := make([]*reconstruct.Object, 0, len(objs))
	for _, obj := range objs {
		if obj.ObjID == yaffsfmt.ObjectIDRoot {
			continue // root is outDir itself, already created
		}
		if isDirectory(obj) {
			dirs = append(dirs, obj)
		}
	}

	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i].Path) < len(dirs[j].Path)
	})

	for _, obj := range dirs {
		path, ok := resolvedPath(obj, outDir)
		if !ok {
			rejected[obj.ObjID] = true
			continue
		}
		if parentRejected(obj, rejected) {
			rejected[obj.ObjID] = true
			continue
		}

		mode := os.FileMode(0o755)
		if obj.Header != nil {
			mode = os.FileMode(obj.Header.Mode & 0o7777)
		}
		if err := os.Mkdir(path, mode); err != nil && !os.IsExist(err) {
			logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: create directory %q: %v", yerrors.ErrIOError, path, err)).
				Warn("failed to create directory")
			rejected[obj.ObjID] = true
			continue
		}
		applyPermissions(path, obj, opts)
		result.Directories++
	}
}

func materializeFilesAndSpecials(objs []*reconstruct.Object, image []byte, geo yaffsfmt.Geometry, outDir string, opts Options, rejected map[uint32]bool, result *Result) {
	for _, obj := range objs {
		if obj.Header == nil {
			continue
		}
		switch obj.Header.Type {
		case yaffsfmt.ObjectTypeFile:
			materializeFile(obj, image, geo, outDir, opts, rejected, result)
		case yaffsfmt.ObjectTypeSpecial:
			materializeSpecial(obj, outDir, rejected, result)
		}
	}
}

func materializeFile(obj *reconstruct.Object, image []byte, geo yaffsfmt.Geometry, outDir string, opts Options, rejected map[uint32]bool, result *Result) {
	path, ok := resolvedPath(obj, outDir)
	if !ok {
		rejected[obj.ObjID] = true
		return
	}
	if parentRejected(obj, rejected) {
		rejected[obj.ObjID] = true
		return
	}

	var buf bytes.Buffer
	size := obj.Header.FileSize()

	chunkIDs := make([]uint32, 0, len(obj.Chunks))
	for id := range obj.Chunks {
		chunkIDs = append(chunkIDs, id)
	}
	sort.Slice(chunkIDs, func(i, j int) bool { return chunkIDs[i] < chunkIDs[j] })

	for _, id := range chunkIDs {
		ref := obj.Chunks[id]
		pageStart := ref.NandIndex * geo.ChunkSize()
		pageEnd := pageStart + geo.PageSize
		if pageEnd > len(image) {
			err := xerrors.Errorf("%w: chunk %d of %q out of image bounds", yerrors.ErrIOError, id, path)
			logging.Log.WithField("path", path).WithField("chunk_id", id).WithError(err).
				Warn("failed to read chunk: out of image bounds")
			continue
		}
		buf.Write(image[pageStart:pageEnd])
	}

	data := buf.Bytes()
	if uint64(len(data)) > size {
		data = data[:size]
	}

	if err := renameio.WriteFile(path, data, os.FileMode(obj.Header.Mode&0o7777)); err != nil {
		logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: write file %q: %v", yerrors.ErrIOError, path, err)).
			Warn("failed to create file")
		rejected[obj.ObjID] = true
		return
	}
	applyPermissions(path, obj, opts)
	result.Files++
}

func materializeSpecial(obj *reconstruct.Object, outDir string, rejected map[uint32]bool, result *Result) {
	path, ok := resolvedPath(obj, outDir)
	if !ok {
		rejected[obj.ObjID] = true
		return
	}
	if parentRejected(obj, rejected) {
		rejected[obj.ObjID] = true
		return
	}

	mode := uint32(obj.Header.Mode)
	if err := unix.Mknod(path, mode, int(obj.Header.RDev)); err != nil {
		logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: mknod %q: %v", yerrors.ErrIOError, path, err)).
			Warn("failed to create special device node")
		rejected[obj.ObjID] = true
		return
	}
	result.Files++
}

func materializeLinks(objs []*reconstruct.Object, outDir string, rejected map[uint32]bool, result *Result) {
	byID := make(map[uint32]*reconstruct.Object, len(objs))
	for _, obj := range objs {
		byID[obj.ObjID] = obj
	}

	for _, obj := range objs {
		if obj.Header == nil || obj.Header.Type != yaffsfmt.ObjectTypeSymlink {
			continue
		}
		materializeSymlink(obj, outDir, rejected, result)
	}

	for _, obj := range objs {
		if obj.Header == nil || obj.Header.Type != yaffsfmt.ObjectTypeHardlink {
			continue
		}
		materializeHardlink(obj, byID, outDir, rejected, result)
	}
}

func materializeSymlink(obj *reconstruct.Object, outDir string, rejected map[uint32]bool, result *Result) {
	path, ok := resolvedPath(obj, outDir)
	if !ok {
		rejected[obj.ObjID] = true
		return
	}
	if parentRejected(obj, rejected) {
		rejected[obj.ObjID] = true
		return
	}

	target := string(obj.Header.Alias)
	if err := os.Symlink(target, path); err != nil {
		logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: symlink %q -> %q: %v", yerrors.ErrIOError, path, target, err)).
			Warn("failed to create symlink")
		rejected[obj.ObjID] = true
		return
	}
	result.Links++
}

func materializeHardlink(obj *reconstruct.Object, byID map[uint32]*reconstruct.Object, outDir string, rejected map[uint32]bool, result *Result) {
	path, ok := resolvedPath(obj, outDir)
	if !ok {
		rejected[obj.ObjID] = true
		return
	}
	if parentRejected(obj, rejected) {
		rejected[obj.ObjID] = true
		return
	}

	target, ok := byID[obj.Header.EquivID]
	if !ok || rejected[target.ObjID] {
		err := xerrors.Errorf("%w: hardlink %q target equiv_id %d was not materialized", yerrors.ErrIOError, path, obj.Header.EquivID)
		logging.Log.WithField("path", path).WithField("equiv_id", obj.Header.EquivID).WithError(err).
			Warn("failed to create hardlink: target was not materialized")
		rejected[obj.ObjID] = true
		return
	}
	targetPath, ok := resolvedPath(target, outDir)
	if !ok {
		rejected[obj.ObjID] = true
		return
	}

	if err := os.Link(targetPath, path); err != nil {
		logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: hardlink %q -> %q: %v", yerrors.ErrIOError, path, targetPath, err)).
			Warn("failed to create hardlink")
		rejected[obj.ObjID] = true
		return
	}
	result.Links++
}

func isDirectory(obj *reconstruct.Object) bool {
	return obj.Header != nil && obj.Header.Type == yaffsfmt.ObjectTypeDirectory
}

// parentRejected cascades a rejection down to every dependent: if the
// immediate parent was refused, this object cannot be created either.
// Directories are materialized in depth-ascending order, so by the
// time a child is considered, any rejected ancestor has already
// propagated its rejection to its direct children one level at a time
// (spec.md §4.G).
func parentRejected(obj *reconstruct.Object, rejected map[uint32]bool) bool {
	if obj.Header == nil {
		return false
	}
	return rejected[obj.Header.ParentObjID]
}

// applyPermissions applies mode/ownership per Options to a newly
// created directory or regular file; special nodes, symlinks and
// hardlinks are not passed through it. Failures are warnings, not
// fatal (spec.md §4.G, §7).
func applyPermissions(path string, obj *reconstruct.Object, opts Options) {
	if obj.Header == nil {
		return
	}
	if opts.PreserveMode {
		if err := os.Chmod(path, os.FileMode(obj.Header.Mode&0o7777)); err != nil {
			logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: chmod %q: %v", yerrors.ErrIOError, path, err)).Warn("chmod failed")
		}
	}
	if opts.PreserveOwner {
		if err := unix.Lchown(path, int(obj.Header.UID), int(obj.Header.GID)); err != nil {
			logging.Log.WithField("path", path).WithError(xerrors.Errorf("%w: chown %q: %v", yerrors.ErrIOError, path, err)).Warn("chown failed")
		}
	}
}
