package core

import (
	"errors"
)

var (
	// Malformed scene document, container or buffer.
	ErrParse = errors.New("parse error")
	// A required vertex attribute (positions or indices) is absent.
	ErrMissingAttribute = errors.New("missing attribute")
	// Image bytes could not be decoded.
	ErrDecode = errors.New("decode error")
	// Unrecognized MIME or image type.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// File open/read failure.
	ErrIO = errors.New("io error")
	// Windowing transport or protocol failure.
	ErrProtocol = errors.New("protocol error")
	// GPU resource exhaustion or allocation failure.
	ErrAllocation = errors.New("allocation error")
	// Buffer content submitted before the surface acknowledged its first configure.
	ErrNotConfigured = errors.New("surface not configured")
	ErrUnknown       = errors.New("unknown")
)
