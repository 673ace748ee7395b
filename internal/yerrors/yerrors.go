// Package yerrors defines the sentinel error classes shared by every
// decoding and reconstruction stage, so callers can errors.Is against a
// stable class regardless of how many times the error was wrapped.
package yerrors

import "errors"

var (
	// ErrShortRead means fewer bytes remained than a read requested.
	ErrShortRead = errors.New("short read")

	// ErrMalformedSpare means a spare-area record failed structural decode.
	ErrMalformedSpare = errors.New("malformed spare")

	// ErrMalformedHeader means an object-header page failed structural decode.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrDetectFailed means geometry auto-detection found no candidate match.
	ErrDetectFailed = errors.New("geometry detection failed")

	// ErrUnreachable means an object's parent chain never reaches a well-known root.
	ErrUnreachable = errors.New("object unreachable from root")

	// ErrHostilePath means a name contains ".." or an embedded separator.
	ErrHostilePath = errors.New("hostile path component")

	// ErrIOError means a filesystem operation during materialization failed.
	ErrIOError = errors.New("materialization io error")

	// ErrFatal marks the terminal conditions in which the process must exit
	// non-zero: a missing required flag, unreadable image, uncreatable
	// output directory, or no chunk decoded under any geometry tried.
	ErrFatal = errors.New("fatal")
)
