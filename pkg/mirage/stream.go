package mirage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/samcharles93/mirage/pkg/endian"
)

const streamPadBufSize = 256

// Stream is a position-tracking sink for container bytes. It owns no buffer:
// every write goes straight to the underlying WriteSeeker in the stream's byte
// order, and seeks back are used to patch placeholders once their values are
// known.
type Stream struct {
	ws    io.WriteSeeker
	order binary.ByteOrder
	pos   int64
	end   int64

	scratch [8]byte
	padBuf  [streamPadBufSize]byte
}

// NewStream wraps ws, starting at its current position. A nil order means
// big-endian, the order Mirage files are authored in.
func NewStream(ws io.WriteSeeker, order binary.ByteOrder) (*Stream, error) {
	if ws == nil {
		return nil, errors.New("mirage: nil stream")
	}
	if order == nil {
		order = binary.BigEndian
	}
	pos, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	return &Stream{ws: ws, order: order, pos: pos, end: pos}, nil
}

// Order returns the byte order values are written in.
func (s *Stream) Order() binary.ByteOrder { return s.order }

// Swapped reports whether written values are swapped relative to the host.
func (s *Stream) Swapped() bool { return endian.NeedsSwap(s.order) }

// Tell returns the current absolute position.
func (s *Stream) Tell() int64 { return s.pos }

// End returns the furthest position written so far.
func (s *Stream) End() int64 { return s.end }

// Seek moves to an absolute position.
func (s *Stream) Seek(pos int64) error {
	if pos == s.pos {
		return nil
	}
	if _, err := s.ws.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	s.pos = pos
	return nil
}

// SeekEnd moves back to the furthest position written.
func (s *Stream) SeekEnd() error { return s.Seek(s.end) }

// Write writes p in full.
func (s *Stream) Write(p []byte) (int, error) {
	for written := 0; written < len(p); {
		n, err := s.ws.Write(p[written:])
		written += n
		s.advance(int64(n))
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return len(p), nil
}

func (s *Stream) advance(n int64) {
	s.pos += n
	if s.pos > s.end {
		s.end = s.pos
	}
}

func (s *Stream) writeScratch(n int) error {
	_, err := s.Write(s.scratch[:n])
	return err
}

func (s *Stream) WriteU8(v uint8) error {
	s.scratch[0] = v
	return s.writeScratch(1)
}

func (s *Stream) WriteU16(v uint16) error {
	s.order.PutUint16(s.scratch[:], v)
	return s.writeScratch(2)
}

func (s *Stream) WriteU32(v uint32) error {
	s.order.PutUint32(s.scratch[:], v)
	return s.writeScratch(4)
}

func (s *Stream) WriteI32(v int32) error { return s.WriteU32(uint32(v)) }

func (s *Stream) WriteF32(v float32) error { return s.WriteU32(math.Float32bits(v)) }

// WriteF32s writes each value of v in order.
func (s *Stream) WriteF32s(v ...float32) error {
	for _, f := range v {
		if err := s.WriteF32(f); err != nil {
			return err
		}
	}
	return nil
}

// WriteString writes str followed by a terminating zero byte.
func (s *Stream) WriteString(str string) error {
	if _, err := io.WriteString(s, str); err != nil {
		return err
	}
	return s.WriteU8(0)
}

// WriteNulls writes n zero bytes.
func (s *Stream) WriteNulls(n int64) error {
	for n > 0 {
		chunk := min(n, int64(len(s.padBuf)))
		if _, err := s.Write(s.padBuf[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Pad writes zero padding until the absolute position is aligned to n bytes.
func (s *Stream) Pad(n int64) error {
	if n <= 1 {
		return nil
	}
	mod := s.pos % n
	if mod == 0 {
		return nil
	}
	return s.WriteNulls(n - mod)
}

// WriteU32At patches a 32-bit value at pos and returns to the current position.
func (s *Stream) WriteU32At(pos int64, v uint32) error {
	back := s.pos
	if err := s.Seek(pos); err != nil {
		return err
	}
	if err := s.WriteU32(v); err != nil {
		return err
	}
	return s.Seek(back)
}

// ReserveOffset writes a zero placeholder for an offset and returns its position.
func (s *Stream) ReserveOffset() (int64, error) {
	pos := s.pos
	if err := s.WriteU32(0); err != nil {
		return 0, err
	}
	return pos, nil
}

// WriteOffset records the current position in ot and writes target-base.
func (s *Stream) WriteOffset(base, target int64, ot *OffsetTable) error {
	rel, err := relOffset(base, target)
	if err != nil {
		return err
	}
	ot.Add(s.pos)
	return s.WriteU32(rel)
}

// FixOffset points the placeholder at fieldPos to the current position,
// relative to base, and records fieldPos in ot. The stream is left where it was.
func (s *Stream) FixOffset(base, fieldPos int64, ot *OffsetTable) error {
	rel, err := relOffset(base, s.pos)
	if err != nil {
		return err
	}
	if fieldPos < base || fieldPos+4 > s.end {
		return fmt.Errorf("%w: placeholder at %d outside [%d,%d)", ErrInvalidOffset, fieldPos, base, s.end)
	}
	if err := s.WriteU32At(fieldPos, rel); err != nil {
		return err
	}
	ot.Add(fieldPos)
	return nil
}

func relOffset(base, target int64) (uint32, error) {
	d := target - base
	if d < 0 {
		return 0, fmt.Errorf("%w: target %d precedes base %d", ErrInvalidOffset, target, base)
	}
	if d > math.MaxUint32 {
		return 0, fmt.Errorf("%w: offset %d overflows 32 bits", ErrInvalidOffset, d)
	}
	return uint32(d), nil
}
