package mirage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

var native = binary.NativeEndian

// Cursor reads host-order values from a fixed blob. The first failed read
// sticks: later reads return zero values and Err reports the failure.
type Cursor struct {
	ref  blobRef
	data []byte
	pos  int
	err  error
}

// Cursor returns a cursor at pos. The blob must already be fixed.
func (b *Blob) Cursor(pos int) (*Cursor, error) {
	ref, err := b.ref()
	if err != nil {
		return nil, err
	}
	if !b.fixed {
		return nil, ErrNotFixed
	}
	if pos < 0 || pos > len(b.data) {
		return nil, fmt.Errorf("%w: cursor at %d beyond %d bytes", ErrInvalidOffset, pos, len(b.data))
	}
	return &Cursor{ref: ref, data: b.data, pos: pos}, nil
}

// Err returns the first error encountered.
func (c *Cursor) Err() error { return c.err }

// Pos returns the absolute position.
func (c *Cursor) Pos() int { return c.pos }

func (c *Cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if _, err := c.ref.bytes(); err != nil {
		c.fail(err)
		return nil
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.fail(fmt.Errorf("%w: read of %d bytes at %d beyond %d", ErrCorruptContainer, n, c.pos, len(c.data)))
		return nil
	}
	p := c.data[c.pos : c.pos+n]
	c.pos += n
	return p
}

func (c *Cursor) Skip(n int) { c.take(n) }

func (c *Cursor) U8() uint8 {
	if p := c.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (c *Cursor) U16() uint16 {
	if p := c.take(2); p != nil {
		return native.Uint16(p)
	}
	return 0
}

func (c *Cursor) U32() uint32 {
	if p := c.take(4); p != nil {
		return native.Uint32(p)
	}
	return 0
}

func (c *Cursor) I32() int32 { return int32(c.U32()) }

func (c *Cursor) F32() float32 { return math.Float32frombits(c.U32()) }

func (c *Cursor) Off() Off32 { return Off32(c.U32()) }

// Bytes returns a copy of the next n bytes.
func (c *Cursor) Bytes(n int) []byte {
	p := c.take(n)
	if p == nil {
		return nil
	}
	return bytes.Clone(p)
}

// At returns a cursor at the target of o.
func (c *Cursor) At(o Off32) *Cursor {
	sub := &Cursor{ref: c.ref, data: c.data, err: c.err}
	if sub.err != nil {
		return sub
	}
	pos, err := o.Resolve(len(c.data), 0)
	if err != nil {
		c.fail(err)
		sub.err = c.err
		return sub
	}
	sub.pos = pos
	return sub
}

// Array returns a cursor over count elements of size bytes at the target of o.
// The claimed extent is checked against the blob before anything is read, so
// a bogus count fails with ErrOutOfMemory instead of driving an allocation.
func (c *Cursor) Array(o Off32, count uint32, size int) *Cursor {
	sub := c.At(o)
	if sub.err != nil {
		return sub
	}
	need := uint64(count) * uint64(size)
	if need > uint64(len(c.data)-sub.pos) {
		c.fail(fmt.Errorf("%w: %d x %d bytes at %#x", ErrOutOfMemory, count, size, uint32(o)))
		sub.err = c.err
	}
	return sub
}

// String reads a zero-terminated string at the cursor position.
func (c *Cursor) String() string {
	if c.err != nil {
		return ""
	}
	if _, err := c.ref.bytes(); err != nil {
		c.fail(err)
		return ""
	}
	rest := c.data[c.pos:]
	n := bytes.IndexByte(rest, 0)
	if n < 0 {
		c.fail(fmt.Errorf("%w: unterminated string at %d", ErrCorruptContainer, c.pos))
		return ""
	}
	c.pos += n + 1
	return string(rest[:n])
}

// StringAt reads the zero-terminated string o points at; null yields "".
func (c *Cursor) StringAt(o Off32) string {
	if o.IsNull() {
		return ""
	}
	sub := c.At(o)
	s := sub.String()
	c.fail(sub.err)
	return s
}

// Field is one primitive in a raw struct layout.
type Field uint8

const (
	FieldU8 Field = iota
	FieldU16
	FieldU32
	FieldF32
	FieldOff
)

func (f Field) size() int {
	switch f {
	case FieldU8:
		return 1
	case FieldU16:
		return 2
	default:
		return 4
	}
}

// Layout describes a raw struct field by field. Offset fields are swapped by
// the offset-table pass, so Swap skips them.
type Layout []Field

// Size returns the byte size of the layout.
func (l Layout) Size() int {
	n := 0
	for _, f := range l {
		n += f.size()
	}
	return n
}

// Swapper performs in-place byte swaps on an unfixed or partially fixed blob.
// Like Cursor, its first failure sticks.
type Swapper struct {
	ref  blobRef
	data []byte
	swap bool
	err  error
}

// Swapper returns a swapper over the blob. When active is false every swap is
// a bounds-checked no-op, so callers can walk the same structures either way.
func (b *Blob) Swapper(active bool) (*Swapper, error) {
	ref, err := b.ref()
	if err != nil {
		return nil, err
	}
	return &Swapper{ref: ref, data: b.data, swap: active}, nil
}

// Err returns the first error encountered.
func (s *Swapper) Err() error { return s.err }

// Active reports whether swaps change bytes.
func (s *Swapper) Active() bool { return s.swap }

func (s *Swapper) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Swapper) span(pos, n int) []byte {
	if s.err != nil {
		return nil
	}
	if _, err := s.ref.bytes(); err != nil {
		s.fail(err)
		return nil
	}
	if pos < 0 || n < 0 || pos+n > len(s.data) {
		s.fail(fmt.Errorf("%w: swap of %d bytes at %d beyond %d", ErrCorruptContainer, n, pos, len(s.data)))
		return nil
	}
	return s.data[pos : pos+n]
}

// Words swaps count words of width bytes starting at pos.
func (s *Swapper) Words(pos, count, width int) {
	if count < 0 || uint64(count)*uint64(width) > uint64(len(s.data)) {
		s.fail(fmt.Errorf("%w: %d x %d bytes at %d", ErrOutOfMemory, count, width, pos))
		return
	}
	p := s.span(pos, count*width)
	if p == nil || !s.swap || width <= 1 {
		return
	}
	for i := 0; i < len(p); i += width {
		w := p[i : i+width]
		for l, r := 0, width-1; l < r; l, r = l+1, r-1 {
			w[l], w[r] = w[r], w[l]
		}
	}
}

// Layout swaps every non-offset field of l at pos.
func (s *Swapper) Layout(pos int, l Layout) {
	if s.span(pos, l.Size()) == nil {
		return
	}
	for _, f := range l {
		if f != FieldOff {
			s.Words(pos, 1, f.size())
		}
		pos += f.size()
	}
}

// U32 reads a host-order value at pos; call it after the field was swapped.
func (s *Swapper) U32(pos int) uint32 {
	if p := s.span(pos, 4); p != nil {
		return native.Uint32(p)
	}
	return 0
}

// U16 reads a host-order value at pos.
func (s *Swapper) U16(pos int) uint16 {
	if p := s.span(pos, 2); p != nil {
		return native.Uint16(p)
	}
	return 0
}

// Array resolves the offset at pos as count elements of size bytes. A null
// offset or zero count yields ok=false without error.
func (s *Swapper) Array(pos int, count uint32, size int) (int, bool) {
	if count == 0 {
		return 0, false
	}
	need := uint64(count) * uint64(size)
	if need > uint64(len(s.data)) {
		s.fail(fmt.Errorf("%w: %d x %d bytes at %d", ErrOutOfMemory, count, size, pos))
		return 0, false
	}
	return s.Off(pos, int(need))
}

// Off reads a fixed offset at pos and resolves it, requiring size bytes.
func (s *Swapper) Off(pos, size int) (int, bool) {
	o := Off32(s.U32(pos))
	if s.err != nil || o.IsNull() {
		return 0, false
	}
	p, err := o.Resolve(len(s.data), size)
	if err != nil {
		s.fail(err)
		return 0, false
	}
	return p, true
}
