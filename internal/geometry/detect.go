// Package geometry infers on-flash layout (page size, spare size, byte
// order, ECC-layout variant) from a raw image sample, and orchestrates
// the auto-detect / user-supplied / brute-force policy used to settle
// on a geometry before the log scanner runs.
package geometry

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// magic identifies one of the four (endian, ecclayout) combinations by
// the bytes that begin the spare area immediately following the first
// object header's page (spec.md §4.B step 1).
type magic struct {
	prefix    []byte
	endian    binary.ByteOrder
	ecclayout bool
}

var magics = []magic{
	{prefix: []byte{0x00, 0x10, 0x00, 0x00}, endian: binary.LittleEndian, ecclayout: true},
	{prefix: []byte{0xFF, 0xFF, 0x00, 0x10, 0x00, 0x00}, endian: binary.LittleEndian, ecclayout: false},
	{prefix: []byte{0x00, 0x00, 0x10, 0x00}, endian: binary.BigEndian, ecclayout: true},
	{prefix: []byte{0xFF, 0xFF, 0x00, 0x00, 0x10, 0x00}, endian: binary.BigEndian, ecclayout: false},
}

// Detect infers {page_size, spare_size, endianness, ecclayout} from a
// sample prefix of the image (10 KiB is sufficient), per spec.md §4.B.
func Detect(sample []byte) (yaffsfmt.Geometry, error) {
	var (
		pageSize  int
		endian    binary.ByteOrder
		ecc       bool
		found     bool
	)

	for _, ps := range yaffsfmt.PageSizes {
		if ps >= len(sample) {
			break
		}
		tail := sample[ps:]
		for _, m := range magics {
			if bytes.HasPrefix(tail, m.prefix) {
				pageSize = ps
				endian = m.endian
				ecc = m.ecclayout
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	if !found {
		return yaffsfmt.Geometry{}, xerrors.Errorf("%w: no magic prefix matched", yerrors.ErrDetectFailed)
	}

	offset := 4
	if !ecc {
		offset = 6
	}

	if pageSize+offset+4 > len(sample) {
		return yaffsfmt.Geometry{}, xerrors.Errorf("%w: sample too short to locate spare end", yerrors.ErrDetectFailed)
	}

	// The spare record for the first object carries the first object's
	// id; the next page's header begins with its type followed by its
	// parent_obj_id, which equals the root's obj_id for the root's
	// first child. So [obj_id field] ++ 0xFFFF repeats across the
	// spare/page boundary; find it to locate the spare size.
	needle := append(append([]byte(nil), sample[pageSize+offset:pageSize+offset+4]...), 0xFF, 0xFF)

	tail := sample[pageSize:]
	idx := bytes.Index(tail, needle)
	if idx < 0 {
		return yaffsfmt.Geometry{}, xerrors.Errorf("%w: could not locate end of spare section", yerrors.ErrDetectFailed)
	}

	spareSize := idx - 4
	if !validSpareSize(spareSize) {
		return yaffsfmt.Geometry{}, xerrors.Errorf("%w: unlikely spare size %d", yerrors.ErrDetectFailed, spareSize)
	}

	return yaffsfmt.Geometry{
		PageSize:  pageSize,
		SpareSize: spareSize,
		Endian:    endian,
		ECCLayout: ecc,
	}, nil
}

func validSpareSize(n int) bool {
	for _, s := range yaffsfmt.SpareSizes {
		if s == n {
			return true
		}
	}
	return false
}
