package geometry

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/logging"
	"github.com/lambertdev/yaffs-extractor/internal/reconstruct"
	"github.com/lambertdev/yaffs-extractor/internal/scan"
	"github.com/lambertdev/yaffs-extractor/internal/yaffsfmt"
	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// detectSampleSize is the prefix length handed to Detect; 10 KiB is
// sufficient to reach the first object header and its following chunk
// (spec.md §4.B).
const detectSampleSize = 10 * 1024

// Request carries every user-facing geometry knob (spec.md §6's -p/-s/
// -e/-n/-B/-a/-b flags) plus the policy switches.
type Request struct {
	Auto       bool
	BruteForce bool

	// UserPageSize/UserSpareSize of 0 mean "unset, use default."
	UserPageSize  int
	UserSpareSize int
	// UserEndian of nil means "unset, use default (little)."
	UserEndian binary.ByteOrder
	// UserECCLayout of nil means "unset, use default (true)."
	UserECCLayout *bool

	// BlockSize of 0 means "unknown" (spec.md §4.E).
	BlockSize int
}

// Result bundles the accepted geometry with the object set produced by
// the parse attempt that accepted it, so callers don't need to re-scan.
type Result struct {
	Geometry yaffsfmt.Geometry
	Objects  []*reconstruct.Object
	Stats    reconstruct.ScanStats
}

// defaultGeometry returns the fallback settings used by mkyaffs and by
// this tool when no override and no successful auto-detect apply
// (spec.md §4.H step 2).
func defaultGeometry() yaffsfmt.Geometry {
	return yaffsfmt.Geometry{
		PageSize:  2048,
		SpareSize: 64,
		Endian:    binary.LittleEndian,
		ECCLayout: true,
	}
}

func userGeometry(req Request) yaffsfmt.Geometry {
	geo := defaultGeometry()
	if req.UserPageSize != 0 {
		geo.PageSize = req.UserPageSize
	}
	if req.UserSpareSize != 0 {
		geo.SpareSize = req.UserSpareSize
	}
	if req.UserEndian != nil {
		geo.Endian = req.UserEndian
	}
	if req.UserECCLayout != nil {
		geo.ECCLayout = *req.UserECCLayout
	}
	geo.BlockSize = req.BlockSize
	return geo
}

// Resolve implements the geometry oracle policy of spec.md §4.H: try
// auto-detect (if requested), else user-supplied/defaults; accept that
// attempt if it decodes at least one chunk (see tryParse); otherwise, if brute
// force is requested, search the full (endian, ecclayout, page, spare)
// Cartesian product and keep whichever configuration recovers the most
// objects.
func Resolve(image []byte, req Request) (Result, error) {
	geo, ok := initialGeometry(image, req)
	if ok {
		if res, accepted := tryParse(image, geo); accepted {
			return res, nil
		}
	}

	if req.BruteForce {
		if res, found := bruteForce(image, req.BlockSize); found {
			return res, nil
		}
	}

	return Result{}, xerrors.Errorf("%w: zero chunks recovered under any candidate geometry", yerrors.ErrFatal)
}

func initialGeometry(image []byte, req Request) (yaffsfmt.Geometry, bool) {
	if req.Auto {
		sample := image
		if len(sample) > detectSampleSize {
			sample = sample[:detectSampleSize]
		}
		detected, err := Detect(sample)
		if err == nil {
			detected.BlockSize = req.BlockSize
			logging.Log.WithField("geometry", detected).Info("using auto-detected geometry")
			return detected, true
		}
		logging.Log.WithError(err).Warn("auto-detect failed, falling back to user-supplied/default settings")
	}

	geo := userGeometry(req)
	return geo, true
}

// tryParse runs one full scan+reconstruct pass and accepts it only if
// the scanner decoded at least one real chunk under this geometry
// (spec.md §4.H step 3). Object count alone can't be the signal: the
// four well-known pseudo-objects are always present in Finalize's
// output regardless of whether anything on the image actually matched,
// so a wrong geometry guess would otherwise always look "successful".
func tryParse(image []byte, geo yaffsfmt.Geometry) (Result, bool) {
	s := scan.New(image, geo)
	r := reconstruct.New(geo)

	for {
		ev, ok := s.Next()
		if !ok {
			break
		}
		r.Apply(ev)
	}

	objs, stats := r.Finalize()
	stats.Checkpoint = s.CheckpointSkips()
	if stats.Chunks == 0 {
		return Result{}, false
	}
	return Result{Geometry: geo, Objects: objs, Stats: stats}, true
}

func bruteForce(image []byte, blockSize int) (Result, bool) {
	var best Result
	found := false

	for _, endian := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, ecc := range []bool{true, false} {
			for _, page := range yaffsfmt.PageSizes {
				for _, spare := range yaffsfmt.SpareSizes {
					if spare > page {
						continue
					}
					geo := yaffsfmt.Geometry{
						PageSize:  page,
						SpareSize: spare,
						Endian:    endian,
						ECCLayout: ecc,
						BlockSize: blockSize,
					}
					res, ok := tryParse(image, geo)
					if !ok {
						continue
					}
					if !found || len(res.Objects) > len(best.Objects) {
						best = res
						found = true
					}
				}
			}
		}
	}

	if found {
		logging.Log.WithField("geometry", best.Geometry).
			WithField("objects", len(best.Objects)).
			Info("brute-force search settled on geometry")
	}
	return best, found
}
