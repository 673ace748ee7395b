package materialize_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/materialize"
	"github.com/lambertdev/yaffs-extractor/internal/reconstruct"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

func testGeo() yaffsfmt.Geometry {
	return yaffsfmt.Geometry{PageSize: 32, SpareSize: 16, Endian: binary.LittleEndian, ECCLayout: true}
}

func buildImage(geo yaffsfmt.Geometry, pages map[int][]byte) []byte {
	maxIdx := 0
	for idx := range pages {
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	image := make([]byte, (maxIdx+1)*geo.ChunkSize())
	for idx, data := range pages {
		start := idx * geo.ChunkSize()
		copy(image[start:start+len(data)], data)
	}
	return image
}

func TestMaterializeSingleFile(t *testing.T) {
	geo := testGeo()
	content := []byte("hello world")
	page := make([]byte, geo.PageSize)
	copy(page, content)
	image := buildImage(geo, map[int][]byte{0: page})

	file := &reconstruct.Object{
		ObjID:  10,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("hello.txt"), Mode: 0o100644, FileSizeLow: uint32(len(content))},
		Path:   []string{"hello.txt"},
		Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
	}

	outDir := t.TempDir()
	result, err := materialize.Materialize([]*reconstruct.Object{file}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)

	got, err := os.ReadFile(filepath.Join(outDir, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMaterializeOverwriteExisting(t *testing.T) {
	geo := testGeo()
	first := make([]byte, geo.PageSize)
	copy(first, []byte("version one"))
	second := make([]byte, geo.PageSize)
	copy(second, []byte("version two, newer"))

	file := func(page []byte, size int) *reconstruct.Object {
		return &reconstruct.Object{
			ObjID:  10,
			Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("f.txt"), Mode: 0o100644, FileSizeLow: uint32(size)},
			Path:   []string{"f.txt"},
			Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
		}
	}

	outDir := t.TempDir()
	image1 := buildImage(geo, map[int][]byte{0: first})
	_, err := materialize.Materialize([]*reconstruct.Object{file(first, len("version one"))}, image1, geo, outDir, materialize.Options{})
	require.NoError(t, err)

	image2 := buildImage(geo, map[int][]byte{0: second})
	_, err = materialize.Materialize([]*reconstruct.Object{file(second, len("version two, newer"))}, image2, geo, outDir, materialize.Options{})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(outDir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "version two, newer", string(got))
}

func TestMaterializeRejectsHostileName(t *testing.T) {
	geo := testGeo()
	image := buildImage(geo, map[int][]byte{0: make([]byte, geo.PageSize)})

	hostile := &reconstruct.Object{
		ObjID:  10,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("../escape"), Mode: 0o100644},
		Path:   []string{"..", "escape"},
		Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
	}

	outDir := t.TempDir()
	result, err := materialize.Materialize([]*reconstruct.Object{hostile}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Files)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(outDir), "escape"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMaterializeHardlinkScannedBeforeTarget(t *testing.T) {
	geo := testGeo()
	content := []byte("target data")
	page := make([]byte, geo.PageSize)
	copy(page, content)
	image := buildImage(geo, map[int][]byte{0: page})

	link := &reconstruct.Object{
		ObjID:  20,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeHardlink, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("link"), EquivID: 21},
		Path:   []string{"link"},
	}
	target := &reconstruct.Object{
		ObjID:  21,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("target"), Mode: 0o100644, FileSizeLow: uint32(len(content))},
		Path:   []string{"target"},
		Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
	}

	outDir := t.TempDir()
	// link appears before its target in the finalized slice, mirroring
	// an on-flash scan order where the hardlink chunk precedes its
	// target's header chunk.
	result, err := materialize.Materialize([]*reconstruct.Object{link, target}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 1, result.Links)

	got, err := os.ReadFile(filepath.Join(outDir, "link"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMaterializeTruncatesPartialLastChunk(t *testing.T) {
	geo := testGeo()
	full := make([]byte, geo.PageSize)
	copy(full, []byte("0123456789"))
	partial := make([]byte, geo.PageSize)
	copy(partial, []byte("abc"))
	image := buildImage(geo, map[int][]byte{0: full, 1: partial})

	size := uint64(geo.PageSize + 3) // full chunk plus 3 bytes of the partial tail
	file := &reconstruct.Object{
		ObjID:  30,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("big.bin"), Mode: 0o100644, FileSizeLow: uint32(size)},
		Path:   []string{"big.bin"},
		Chunks: map[uint32]reconstruct.ChunkRef{
			0: {Seq: 1, NandIndex: 0},
			1: {Seq: 1, NandIndex: 1},
		},
	}

	outDir := t.TempDir()
	_, err := materialize.Materialize([]*reconstruct.Object{file}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(outDir, "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, int(size), len(got))
	assert.Equal(t, "abc", string(got[geo.PageSize:]))
}

func TestMaterializeHostilePathLogsWrappedSentinel(t *testing.T) {
	hook := test.NewLocal(logging.Log)
	defer logging.Log.ReplaceHooks(nil)

	geo := testGeo()
	image := buildImage(geo, map[int][]byte{0: make([]byte, geo.PageSize)})
	hostile := &reconstruct.Object{
		ObjID:  11,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("../escape"), Mode: 0o100644},
		Path:   []string{"..", "escape"},
		Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
	}

	outDir := t.TempDir()
	_, err := materialize.Materialize([]*reconstruct.Object{hostile}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)

	require.NotEmpty(t, hook.Entries)
	logged, ok := hook.LastEntry().Data["error"].(error)
	require.True(t, ok, "warning entry must carry a wrapped error")
	assert.True(t, errors.Is(logged, yerrors.ErrHostilePath))
}

func TestMaterializeIOFailureLogsWrappedSentinel(t *testing.T) {
	hook := test.NewLocal(logging.Log)
	defer logging.Log.ReplaceHooks(nil)

	geo := testGeo()
	// No page data backs chunk 0, so the file's single chunk read runs
	// past the end of the image and must be logged as an IO failure.
	image := make([]byte, 0)
	file := &reconstruct.Object{
		ObjID:  12,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("short.bin"), Mode: 0o100644, FileSizeLow: 4},
		Path:   []string{"short.bin"},
		Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
	}

	outDir := t.TempDir()
	_, err := materialize.Materialize([]*reconstruct.Object{file}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)

	require.NotEmpty(t, hook.Entries)
	logged, ok := hook.LastEntry().Data["error"].(error)
	require.True(t, ok, "warning entry must carry a wrapped error")
	assert.True(t, errors.Is(logged, yerrors.ErrIOError))
}

func TestMaterializeSkipsUnreachableObjects(t *testing.T) {
	geo := testGeo()
	content := []byte("should not be written")
	page := make([]byte, geo.PageSize)
	copy(page, content)
	image := buildImage(geo, map[int][]byte{0: page})

	dropped := &reconstruct.Object{
		ObjID:       50,
		Header:      &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("dropped.txt"), Mode: 0o100644, FileSizeLow: uint32(len(content))},
		Path:        []string{"dropped.txt"},
		Chunks:      map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
		Unreachable: true,
	}

	outDir := t.TempDir()
	result, err := materialize.Materialize([]*reconstruct.Object{dropped}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Files)

	_, statErr := os.Stat(filepath.Join(outDir, "dropped.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMaterializeNestedDirectory(t *testing.T) {
	geo := testGeo()
	image := buildImage(geo, map[int][]byte{0: make([]byte, geo.PageSize)})

	dir := &reconstruct.Object{
		ObjID:  40,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeDirectory, ParentObjID: yaffsfmt.ObjectIDRoot, Name: []byte("sub"), Mode: 0o40755},
		Path:   []string{"sub"},
	}
	file := &reconstruct.Object{
		ObjID:  41,
		Header: &yaffsfmt.Header{Type: yaffsfmt.ObjectTypeFile, ParentObjID: 40, Name: []byte("inner.txt"), Mode: 0o100644},
		Path:   []string{"sub", "inner.txt"},
		Chunks: map[uint32]reconstruct.ChunkRef{0: {Seq: 1, NandIndex: 0}},
	}

	outDir := t.TempDir()
	result, err := materialize.Materialize([]*reconstruct.Object{dir, file}, image, geo, outDir, materialize.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Directories)
	assert.Equal(t, 1, result.Files)

	_, err = os.Stat(filepath.Join(outDir, "sub", "inner.txt"))
	require.NoError(t, err)
}
