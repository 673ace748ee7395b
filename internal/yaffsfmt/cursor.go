// Package yaffsfmt decodes the on-flash YAFFS2 wire format: the spare
// (OOB) record and the object header page, over an explicit, borrowed
// byte cursor.
package yaffsfmt

import (
	"encoding/binary"

	"golang.org/x/xerrors"

	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

// Cursor is a read-only walk over a borrowed byte slice. It never
// allocates or copies its input; every read returns a sub-slice of the
// original backing array.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor wraps b for sequential reads starting at offset 0.
func NewCursor(b []byte) *Cursor {
	return &Cursor{data: b}
}

// Position reports the current read offset.
func (c *Cursor) Position() int {
	return c.pos
}

// Len reports the number of unread bytes remaining.
func (c *Cursor) Len() int {
	return len(c.data) - c.pos
}

func (c *Cursor) require(n int) error {
	if c.Len() < n {
		return xerrors.Errorf("%w: need %d bytes at offset %d, have %d", yerrors.ErrShortRead, n, c.pos, c.Len())
	}
	return nil
}

// ReadUint16 decodes the next two bytes as a u16 in the given byte order.
func (c *Cursor) ReadUint16(order binary.ByteOrder) (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := order.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

// ReadUint32 decodes the next four bytes as a u32 in the given byte order.
func (c *Cursor) ReadUint32(order binary.ByteOrder) (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := order.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

// ReadBytes returns the next n bytes as a slice into the cursor's backing
// array, and advances the cursor. The caller must not mutate the result.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	if err := c.require(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}
