package mirage

import (
	"errors"
	"io"
)

// Buffer is an in-memory io.WriteSeeker for building containers without a file.
type Buffer struct {
	buf []byte
	pos int
}

// Bytes returns the written bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len returns the buffer size.
func (b *Buffer) Len() int { return len(b.buf) }

func (b *Buffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, max(end, 2*cap(b.buf)))
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("mirage: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("mirage: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
