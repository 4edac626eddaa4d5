package mirage

import (
	"fmt"
	"io"

	"github.com/samcharles93/mirage/pkg/compress"
)

// Blob is an owned byte buffer holding one container. Views into it (Node,
// Cursor, Swapper) record the blob generation they were created under and fail
// with ErrReleased once the blob has been released.
type Blob struct {
	data    []byte
	gen     uint64
	fixed   bool
	release func([]byte) error
}

// NewBlob takes ownership of data.
func NewBlob(data []byte) *Blob {
	return &Blob{data: data, gen: 1}
}

// ReadBlob reads r to EOF into a new blob.
func ReadBlob(r io.Reader) (*Blob, error) {
	if r == nil {
		return nil, fmt.Errorf("mirage: nil reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("mirage: read blob: %w", err)
	}
	return NewBlob(data), nil
}

// LoadCompressed reads a compressed stream and decompresses it into a blob of
// exactly dstLen bytes.
func LoadCompressed(r io.Reader, kind compress.Kind, dstLen int) (*Blob, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("mirage: read compressed blob: %w", err)
	}
	data, err := compress.Decompress(kind, src, dstLen)
	if err != nil {
		return nil, err
	}
	return NewBlob(data), nil
}

// Len returns the blob size, or 0 after release.
func (b *Blob) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Fixed reports whether Fix has run on this blob.
func (b *Blob) Fixed() bool { return b != nil && b.fixed }

// Bytes returns the live buffer. The slice must not be retained past Release.
func (b *Blob) Bytes() ([]byte, error) {
	if b == nil || b.data == nil {
		return nil, ErrReleased
	}
	return b.data, nil
}

// Release drops the buffer (unmapping it if mapped) and invalidates every view.
func (b *Blob) Release() error {
	if b == nil || b.data == nil {
		return nil
	}
	var err error
	if b.release != nil {
		err = b.release(b.data)
		b.release = nil
	}
	b.data = nil
	b.gen++
	return err
}

type blobRef struct {
	b   *Blob
	gen uint64
}

func (b *Blob) ref() (blobRef, error) {
	if b == nil || b.data == nil {
		return blobRef{}, ErrReleased
	}
	return blobRef{b: b, gen: b.gen}, nil
}

func (r blobRef) bytes() ([]byte, error) {
	if r.b == nil || r.b.data == nil || r.b.gen != r.gen {
		return nil, ErrReleased
	}
	return r.b.data, nil
}
