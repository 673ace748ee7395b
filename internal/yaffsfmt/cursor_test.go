package yaffsfmt

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambertdev/yaffs-extractor/internal/yerrors"
)

func TestCursorReadUint32LittleEndian(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x00, 0x00, 0x00, 0xAA})
	v, err := c.ReadUint32(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
	assert.Equal(t, 4, c.Position())
	assert.Equal(t, 1, c.Len())
}

func TestCursorReadUint32BigEndian(t *testing.T) {
	c := NewCursor([]byte{0x00, 0x00, 0x00, 0x01})
	v, err := c.ReadUint32(binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)
}

func TestCursorReadUint16(t *testing.T) {
	c := NewCursor([]byte{0x34, 0x12})
	v, err := c.ReadUint16(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)
}

func TestCursorShortRead(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02})
	_, err := c.ReadUint32(binary.LittleEndian)
	require.Error(t, err)
	assert.True(t, errors.Is(err, yerrors.ErrShortRead))
}

func TestCursorReadBytesAndSkip(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3, 4, 5})
	b, err := c.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	require.NoError(t, c.Skip(1))
	assert.Equal(t, 3, c.Position())

	rest, err := c.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, rest)
}

func TestCursorSkipShortRead(t *testing.T) {
	c := NewCursor([]byte{1})
	err := c.Skip(5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, yerrors.ErrShortRead))
}
