package yaffsfmt

import (
	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// Header is a decoded object-header page (spec.md §3, §4.D). Name and
// Alias are kept as raw byte strings internally; UTF-8 validation is a
// materialization-boundary concern, not a decode concern.
type Header struct {
	Type         ObjectType
	ParentObjID  uint32
	Name         []byte
	Mode         uint32
	UID          uint32
	GID          uint32
	ATime        uint32
	MTime        uint32
	CTime        uint32
	FileSizeLow  uint32
	EquivID      uint32
	Alias        []byte
	RDev         uint32
	FileSizeHigh uint32
}

// FileSize computes the 64-bit size from the low/high halves, mirroring
// the original extractor's rule: combine when the high half is used,
// otherwise fall back to the low half alone, otherwise zero.
func (h Header) FileSize() uint64 {
	switch {
	case h.FileSizeHigh != 0xFFFFFFFF:
		return uint64(h.FileSizeLow) | (uint64(h.FileSizeHigh) << 32)
	case h.FileSizeLow != 0xFFFFFFFF:
		return uint64(h.FileSizeLow)
	default:
		return 0
	}
}

func nullTerminate(b []byte) []byte {
	for i, v := range b {
		if v == 0 {
			return b[:i]
		}
	}
	return b
}

// DecodeHeader parses a page slice into a Header per spec.md §3/§4.D.
func DecodeHeader(page []byte, g Geometry) (Header, error) {
	c := NewCursor(page)

	rawType, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: type: %v", yerrors.ErrMalformedHeader, err)
	}
	t := ObjectType(rawType)
	if !t.Valid() {
		return Header{}, xerrors.Errorf("%w: unknown object type 0x%x", yerrors.ErrMalformedHeader, rawType)
	}

	parentID, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: parent_obj_id: %v", yerrors.ErrMalformedHeader, err)
	}

	// 2-byte legacy name checksum, ignored.
	if err := c.Skip(2); err != nil {
		return Header{}, xerrors.Errorf("%w: checksum: %v", yerrors.ErrMalformedHeader, err)
	}

	rawName, err := c.ReadBytes(MaxNameLength + 1)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: name: %v", yerrors.ErrMalformedHeader, err)
	}
	name := append([]byte(nil), nullTerminate(rawName)...)

	// 4 bytes of 0xFFFFFFFF filler.
	if err := c.Skip(4); err != nil {
		return Header{}, xerrors.Errorf("%w: filler: %v", yerrors.ErrMalformedHeader, err)
	}

	mode, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: mode: %v", yerrors.ErrMalformedHeader, err)
	}
	uid, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: uid: %v", yerrors.ErrMalformedHeader, err)
	}
	gid, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: gid: %v", yerrors.ErrMalformedHeader, err)
	}
	atime, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: atime: %v", yerrors.ErrMalformedHeader, err)
	}
	mtime, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: mtime: %v", yerrors.ErrMalformedHeader, err)
	}
	ctime, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: ctime: %v", yerrors.ErrMalformedHeader, err)
	}

	fileSizeLow, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: file_size_low: %v", yerrors.ErrMalformedHeader, err)
	}
	equivID, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: equiv_id: %v", yerrors.ErrMalformedHeader, err)
	}

	rawAlias, err := c.ReadBytes(MaxAliasLength + 1)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: alias: %v", yerrors.ErrMalformedHeader, err)
	}
	alias := append([]byte(nil), nullTerminate(rawAlias)...)

	rdev, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: rdev: %v", yerrors.ErrMalformedHeader, err)
	}

	// Six 32-bit WinCE timestamp halves, ignored.
	if err := c.Skip(6 * 4); err != nil {
		return Header{}, xerrors.Errorf("%w: wince times: %v", yerrors.ErrMalformedHeader, err)
	}

	// Inband shadow fields, ignored except file_size_high.
	if err := c.Skip(4); err != nil { // inband_shadowed_obj_id
		return Header{}, xerrors.Errorf("%w: inband_shadowed_obj_id: %v", yerrors.ErrMalformedHeader, err)
	}
	if err := c.Skip(4); err != nil { // inband_is_shrink
		return Header{}, xerrors.Errorf("%w: inband_is_shrink: %v", yerrors.ErrMalformedHeader, err)
	}

	fileSizeHigh, err := c.ReadUint32(g.Endian)
	if err != nil {
		return Header{}, xerrors.Errorf("%w: file_size_high: %v", yerrors.ErrMalformedHeader, err)
	}

	// reserved, shadows_obj, is_shrink: three more trailing u32s, ignored.
	if err := c.Skip(3 * 4); err != nil {
		return Header{}, xerrors.Errorf("%w: reserved/shadow fields: %v", yerrors.ErrMalformedHeader, err)
	}

	return Header{
		Type:         t,
		ParentObjID:  parentID,
		Name:         name,
		Mode:         mode,
		UID:          uid,
		GID:          gid,
		ATime:        atime,
		MTime:        mtime,
		CTime:        ctime,
		FileSizeLow:  fileSizeLow,
		EquivID:      equivID,
		Alias:        alias,
		RDev:         rdev,
		FileSizeHigh: fileSizeHigh,
	}, nil
}
