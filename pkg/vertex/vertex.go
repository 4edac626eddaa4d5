// Package vertex decodes and encodes packed vertex attributes.
//
// A vertex buffer is described by an array of Elements, each naming a byte
// offset within a vertex record, a packed Format and a Semantic. Formats are
// resolved through a single lookup table mapping the format id to its size,
// swap width and codec, so an unknown id is always reported and never decoded
// as zeros.
package vertex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnsupportedFormat is returned for format ids missing from the table.
	ErrUnsupportedFormat = errors.New("vertex: unsupported format")

	// ErrUnsupportedSemantic is returned for unknown semantics, or for a
	// semantic the element's format cannot carry.
	ErrUnsupportedSemantic = errors.New("vertex: unsupported semantic")
)

// Semantic is the meaning of a vertex attribute.
type Semantic uint8

const (
	Position Semantic = iota
	BlendWeight
	BlendIndices
	Normal
	PSize
	TexCoord
	Tangent
	Binormal
	TessFactor
	PositionT
	Color
	Fog
	Depth
	Sample
	semanticCount
)

var semanticNames = [semanticCount]string{
	"POSITION", "BLENDWEIGHT", "BLENDINDICES", "NORMAL", "PSIZE", "TEXCOORD",
	"TANGENT", "BINORMAL", "TESSFACTOR", "POSITIONT", "COLOR", "FOG", "DEPTH", "SAMPLE",
}

func (s Semantic) String() string {
	if s < semanticCount {
		return semanticNames[s]
	}
	return fmt.Sprintf("semantic(%d)", uint8(s))
}

// Valid reports whether s is a known semantic.
func (s Semantic) Valid() bool { return s < semanticCount }

// Value is one decoded attribute. Index mirrors Vec as integers for
// BLENDINDICES elements and is zero otherwise.
type Value struct {
	Vec   mgl32.Vec4 `json:"vec"`
	Index [4]int32   `json:"index"`
}

// ElementSize is the on-disk size of an Element record.
const ElementSize = 12

// EndStream marks the terminating element of an element array.
const EndStream = 0xFF

// Element describes one attribute of a vertex record.
type Element struct {
	Stream   uint16   `json:"stream"`
	Offset   uint16   `json:"offset"`
	Format   Format   `json:"format"`
	Method   uint8    `json:"method"`
	Semantic Semantic `json:"semantic"`
	Index    uint8    `json:"index"`
}

// End is the terminator appended to every element array.
var End = Element{Stream: EndStream, Format: FormatUnused}

// IsEnd reports whether e terminates an element array.
func (e Element) IsEnd() bool { return e.Stream == EndStream || e.Format == FormatUnused }

// Validate checks that e can be decoded.
func (e Element) Validate() error {
	c, err := lookup(e.Format)
	if err != nil {
		return fmt.Errorf("element %s%d: %w", e.Semantic, e.Index, err)
	}
	if !e.Semantic.Valid() {
		return fmt.Errorf("%w: %d", ErrUnsupportedSemantic, uint8(e.Semantic))
	}
	if e.Semantic == BlendIndices && !c.integer {
		return fmt.Errorf("%w: %s carried as %s", ErrUnsupportedSemantic, e.Semantic, c.name)
	}
	return nil
}

// Put encodes e into b[:ElementSize].
func (e Element) Put(b []byte, o binary.ByteOrder) {
	o.PutUint16(b[0:], e.Stream)
	o.PutUint16(b[2:], e.Offset)
	o.PutUint32(b[4:], uint32(e.Format))
	b[8] = e.Method
	b[9] = uint8(e.Semantic)
	b[10] = e.Index
	b[11] = 0
}

// ReadElement decodes one element record.
func ReadElement(b []byte, o binary.ByteOrder) Element {
	return Element{
		Stream:   o.Uint16(b[0:]),
		Offset:   o.Uint16(b[2:]),
		Format:   Format(o.Uint32(b[4:])),
		Method:   b[8],
		Semantic: Semantic(b[9]),
		Index:    b[10],
	}
}

// ReadElements decodes elements up to and excluding the terminator. It returns
// the number of bytes consumed, terminator included.
func ReadElements(b []byte, o binary.ByteOrder) ([]Element, int, error) {
	var out []Element
	for n := 0; n+ElementSize <= len(b); n += ElementSize {
		e := ReadElement(b[n:], o)
		if e.IsEnd() {
			return out, n + ElementSize, nil
		}
		out = append(out, e)
	}
	return nil, 0, errors.New("vertex: element array has no terminator")
}

// Span returns the extent of e inside a vertex record.
func (e Element) Span() (int, error) {
	size, err := e.Format.Size()
	if err != nil {
		return 0, err
	}
	return int(e.Offset) + size, nil
}

// Decode reads e from one vertex record laid out in o. Lanes the format does
// not store keep their DefaultVec value.
func (e Element) Decode(rec []byte, o binary.ByteOrder) (Value, error) {
	if err := e.Validate(); err != nil {
		return Value{}, err
	}
	c := formats[e.Format]
	end := int(e.Offset) + c.size
	if end > len(rec) {
		return Value{}, fmt.Errorf("vertex: %s at %d overruns %d-byte record", c.name, e.Offset, len(rec))
	}
	v := Value{Vec: DefaultVec}
	c.decode(rec[e.Offset:end], o, &v.Vec)
	if e.Semantic == BlendIndices {
		for i := range c.lanes {
			v.Index[i] = int32(v.Vec[i])
		}
	}
	return v, nil
}

// Encode writes v as e into one vertex record laid out in o. Lanes the format
// does not store are ignored.
func (e Element) Encode(rec []byte, o binary.ByteOrder, v Value) error {
	if err := e.Validate(); err != nil {
		return err
	}
	c := formats[e.Format]
	end := int(e.Offset) + c.size
	if end > len(rec) {
		return fmt.Errorf("vertex: %s at %d overruns %d-byte record", c.name, e.Offset, len(rec))
	}
	vec := v.Vec
	if e.Semantic == BlendIndices {
		for i := range c.lanes {
			vec[i] = float32(v.Index[i])
		}
	}
	c.encode(rec[e.Offset:end], o, vec)
	return nil
}

// Decode decodes a single value of format f from b.
func Decode(f Format, b []byte, o binary.ByteOrder) (mgl32.Vec4, error) {
	c, err := lookup(f)
	if err != nil {
		return mgl32.Vec4{}, err
	}
	if len(b) < c.size {
		return mgl32.Vec4{}, fmt.Errorf("vertex: %s needs %d bytes, have %d", c.name, c.size, len(b))
	}
	v := DefaultVec
	c.decode(b, o, &v)
	return v, nil
}

// Encode encodes v as format f into b.
func Encode(f Format, b []byte, o binary.ByteOrder, v mgl32.Vec4) error {
	c, err := lookup(f)
	if err != nil {
		return err
	}
	if len(b) < c.size {
		return fmt.Errorf("vertex: %s needs %d bytes, have %d", c.name, c.size, len(b))
	}
	c.encode(b, o, v)
	return nil
}
