package cli

import (
	"encoding/binary"
	"strings"
)

// flags mirrors the command-line surface of spec.md §6 exactly: one
// struct field per flag, bound to both its short and long form by
// cobra's *VarP methods in NewRootCmd.
type flags struct {
	file       string
	dir        string
	pageSize   int
	spareSize  int
	blockSize  int
	endianess  string
	noECC      bool
	auto       bool
	bruteForce bool
	ownership  bool
	ls         bool
	debug      bool
}

// endian parses -e/--endianess per the original tool's rule: only the
// first letter matters, and anything other than a leading 'b' means
// little-endian.
func (f flags) endian() (binary.ByteOrder, bool) {
	if f.endianess == "" {
		return nil, false
	}
	lower := strings.ToLower(f.endianess)
	if strings.HasPrefix(lower, "b") {
		return binary.BigEndian, true
	}
	return binary.LittleEndian, true
}
