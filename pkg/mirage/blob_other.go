//go:build !unix

package mirage

import (
	"fmt"
	"os"
)

// OpenBlob reads a container file into memory.
func OpenBlob(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxContainerSize {
		return nil, fmt.Errorf("%w: file size %d", ErrCorruptContainer, len(data))
	}
	return NewBlob(data), nil
}
