//go:build unix

package mirage

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// OpenBlob maps a container file privately. Fix rewrites the mapping in place
// and the copy-on-write mapping keeps those writes out of the file.
// If mmap is unavailable, it falls back to ReadAt-based loading.
// The returned blob must be released to drop the mapping.
func OpenBlob(path string) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < 0 || size64 > MaxContainerSize {
		return nil, fmt.Errorf("%w: file size %d", ErrCorruptContainer, size64)
	}
	size := int(size64)
	if size == 0 {
		return NewBlob([]byte{}), nil
	}

	data, err := unix.Mmap(
		int(f.Fd()),
		0,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE,
	)
	if err == nil {
		b := NewBlob(data)
		b.release = unix.Munmap
		return b, nil
	}

	data, err = readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return NewBlob(data), nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}
