package mirage

import (
	"errors"

	"github.com/samcharles93/mirage/pkg/vertex"
)

var (
	// ErrOutOfMemory is returned when a declared count or size cannot fit in
	// the blob that claims to hold it, before anything is allocated.
	ErrOutOfMemory = errors.New("mirage: declared size exceeds container")

	// ErrCorruptContainer covers bad magic, truncated data, bad node sizes and
	// out-of-range header fields.
	ErrCorruptContainer = errors.New("mirage: corrupt container")

	// ErrUnsupportedVersion is returned for recognized but unimplemented versions.
	ErrUnsupportedVersion = errors.New("mirage: unsupported version")

	// ErrInvalidOffset is returned when a relocation would point outside the
	// container or before its base.
	ErrInvalidOffset = errors.New("mirage: invalid offset")

	// ErrUnsupportedData is returned for well-formed data this toolkit cannot
	// represent, such as non-empty integer material parameters.
	ErrUnsupportedData = errors.New("mirage: unsupported data")

	// ErrAlreadyFixed is returned when Fix runs a second time on one blob.
	ErrAlreadyFixed = errors.New("mirage: blob already fixed")

	// ErrNotFixed is returned when a view is requested from an unfixed blob.
	ErrNotFixed = errors.New("mirage: blob not fixed")

	// ErrReleased is returned by views used after their blob was released.
	ErrReleased = errors.New("mirage: blob released")
)

// Errors re-exported from vertex.
var (
	// ErrUnsupportedVertexFormat is returned for unknown vertex format ids.
	ErrUnsupportedVertexFormat = vertex.ErrUnsupportedFormat

	// ErrUnsupportedVertexSemantic is returned for unknown vertex semantics or
	// semantics a format cannot carry.
	ErrUnsupportedVertexSemantic = vertex.ErrUnsupportedSemantic
)
