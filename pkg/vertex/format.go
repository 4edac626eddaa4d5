package vertex

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// Format is a packed vertex format id, as stored in a vertex element.
type Format uint32

// Xbox 360 declaration types.
const (
	FormatFloat1 Format = 0x2c83a4
	FormatFloat2 Format = 0x2c23a5
	FormatFloat3 Format = 0x2a23b9
	FormatFloat4 Format = 0x1a23a6

	FormatInt1 Format = 0x2c83a1
	FormatInt2 Format = 0x2c23a2
	FormatInt4 Format = 0x1a23a0

	FormatUint1 Format = 0x2c82a1
	FormatUint2 Format = 0x2c22a2
	FormatUint4 Format = 0x1a22a0

	FormatInt1N Format = 0x2c81a1
	FormatInt2N Format = 0x2c21a2
	FormatInt4N Format = 0x1a21a0

	FormatUint1N Format = 0x2c80a1
	FormatUint2N Format = 0x2c20a2
	FormatUint4N Format = 0x1a20a0

	FormatD3DColor Format = 0x182886

	FormatUbyte4  Format = 0x1a2286
	FormatByte4   Format = 0x1a2386
	FormatUbyte4N Format = 0x1a2086
	FormatByte4N  Format = 0x1a2186

	FormatShort2   Format = 0x2c2359
	FormatShort4   Format = 0x1a235a
	FormatUshort2  Format = 0x2c2259
	FormatUshort4  Format = 0x1a225a
	FormatShort2N  Format = 0x2c2159
	FormatShort4N  Format = 0x1a215a
	FormatUshort2N Format = 0x2c2059
	FormatUshort4N Format = 0x1a205a

	FormatUdec3  Format = 0x2a2287
	FormatDec3   Format = 0x2a2387
	FormatUdec3N Format = 0x2a2087
	FormatDec3N  Format = 0x2a2187

	FormatUdec4  Format = 0x1a2287
	FormatDec4   Format = 0x1a2387
	FormatUdec4N Format = 0x1a2087
	FormatDec4N  Format = 0x1a2187

	FormatUhend3  Format = 0x2a2290
	FormatHend3   Format = 0x2a2390
	FormatUhend3N Format = 0x2a2090
	FormatHend3N  Format = 0x2a2190

	FormatUdhen3  Format = 0x2a2291
	FormatDhen3   Format = 0x2a2391
	FormatUdhen3N Format = 0x2a2091
	FormatDhen3N  Format = 0x2a2191

	FormatFloat16x2 Format = 0x2c235f
	FormatFloat16x4 Format = 0x1a2360

	FormatUnused Format = 0xffffffff
)

// codec is one row of the format table. Every family is built by one of the
// constructors below, parameterized by lane count and lane width.
type codec struct {
	name   string
	size   int
	swap   int // endian swap word width; 1 means byte-wise
	decode func(b []byte, o binary.ByteOrder, v *mgl32.Vec4)
	encode func(b []byte, o binary.ByteOrder, v mgl32.Vec4)
}

var formats = map[Format]codec{
	FormatFloat1: floats("FLOAT1", 1),
	FormatFloat2: floats("FLOAT2", 2),
	FormatFloat3: floats("FLOAT3", 3),
	FormatFloat4: floats("FLOAT4", 4),

	FormatInt1:   ints("INT1", 1, 4, true, false),
	FormatInt2:   ints("INT2", 2, 4, true, false),
	FormatInt4:   ints("INT4", 4, 4, true, false),
	FormatUint1:  ints("UINT1", 1, 4, false, false),
	FormatUint2:  ints("UINT2", 2, 4, false, false),
	FormatUint4:  ints("UINT4", 4, 4, false, false),
	FormatInt1N:  ints("INT1N", 1, 4, true, true),
	FormatInt2N:  ints("INT2N", 2, 4, true, true),
	FormatInt4N:  ints("INT4N", 4, 4, true, true),
	FormatUint1N: ints("UINT1N", 1, 4, false, true),
	FormatUint2N: ints("UINT2N", 2, 4, false, true),
	FormatUint4N: ints("UINT4N", 4, 4, false, true),

	FormatD3DColor: d3dColor(),

	FormatUbyte4:  ints("UBYTE4", 4, 1, false, false),
	FormatByte4:   ints("BYTE4", 4, 1, true, false),
	FormatUbyte4N: ints("UBYTE4N", 4, 1, false, true),
	FormatByte4N:  ints("BYTE4N", 4, 1, true, true),

	FormatShort2:   ints("SHORT2", 2, 2, true, false),
	FormatShort4:   ints("SHORT4", 4, 2, true, false),
	FormatUshort2:  ints("USHORT2", 2, 2, false, false),
	FormatUshort4:  ints("USHORT4", 4, 2, false, false),
	FormatShort2N:  ints("SHORT2N", 2, 2, true, true),
	FormatShort4N:  ints("SHORT4N", 4, 2, true, true),
	FormatUshort2N: ints("USHORT2N", 2, 2, false, true),
	FormatUshort4N: ints("USHORT4N", 4, 2, false, true),

	FormatUdec3:  packed("UDEC3", false, false, 10, 10, 10),
	FormatDec3:   packed("DEC3", true, false, 10, 10, 10),
	FormatUdec3N: packed("UDEC3N", false, true, 10, 10, 10),
	FormatDec3N:  packed("DEC3N", true, true, 10, 10, 10),

	FormatUdec4:  packed("UDEC4", false, false, 10, 10, 10, 2),
	FormatDec4:   packed("DEC4", true, false, 10, 10, 10, 2),
	FormatUdec4N: packed("UDEC4N", false, true, 10, 10, 10, 2),
	FormatDec4N:  packed("DEC4N", true, true, 10, 10, 10, 2),

	FormatUhend3:  packed("UHEND3", false, false, 11, 11, 10),
	FormatHend3:   packed("HEND3", true, false, 11, 11, 10),
	FormatUhend3N: packed("UHEND3N", false, true, 11, 11, 10),
	FormatHend3N:  packed("HEND3N", true, true, 11, 11, 10),

	FormatUdhen3:  packed("UDHEN3", false, false, 10, 11, 11),
	FormatDhen3:   packed("DHEN3", true, false, 10, 11, 11),
	FormatUdhen3N: packed("UDHEN3N", false, true, 10, 11, 11),
	FormatDhen3N:  packed("DHEN3N", true, true, 10, 11, 11),

	FormatFloat16x2: halves("FLOAT16_2", 2),
	FormatFloat16x4: halves("FLOAT16_4", 4),
}

func lookup(f Format) (codec, error) {
	c, ok := formats[f]
	if !ok {
		return codec{}, fmt.Errorf("%w: %#08x", ErrUnsupportedFormat, uint32(f))
	}
	return c, nil
}

func (f Format) String() string {
	if c, ok := formats[f]; ok {
		return c.name
	}
	if f == FormatUnused {
		return "UNUSED"
	}
	return fmt.Sprintf("format(%#08x)", uint32(f))
}

// Known reports whether f is in the format table.
func (f Format) Known() bool {
	_, ok := formats[f]
	return ok
}

// Size returns the encoded byte size of one value of format f.
func (f Format) Size() (int, error) {
	c, err := lookup(f)
	return c.size, err
}

// SwapWidth returns the word width f is byte-swapped in. A width of 1 means the
// value is stored byte-wise and never swapped.
func (f Format) SwapWidth() (int, error) {
	c, err := lookup(f)
	return c.swap, err
}

// DefaultVec is what lanes a format does not store decode to.
var DefaultVec = mgl32.Vec4{0, 0, 0, 1}

func floats(name string, lanes int) codec {
	return codec{
		name: name,
		size: 4 * lanes,
		swap: 4,
		decode: func(b []byte, o binary.ByteOrder, v *mgl32.Vec4) {
			for i := range lanes {
				v[i] = math.Float32frombits(o.Uint32(b[4*i:]))
			}
		},
		encode: func(b []byte, o binary.ByteOrder, v mgl32.Vec4) {
			for i := range lanes {
				o.PutUint32(b[4*i:], math.Float32bits(v[i]))
			}
		},
	}
}

func halves(name string, lanes int) codec {
	return codec{
		name: name,
		size: 2 * lanes,
		swap: 2,
		decode: func(b []byte, o binary.ByteOrder, v *mgl32.Vec4) {
			for i := range lanes {
				v[i] = float16.Frombits(o.Uint16(b[2*i:])).Float32()
			}
		},
		encode: func(b []byte, o binary.ByteOrder, v mgl32.Vec4) {
			for i := range lanes {
				o.PutUint16(b[2*i:], float16.Fromfloat32(v[i]).Bits())
			}
		},
	}
}

// ints covers every lane-per-word integer family: width is 1, 2 or 4 bytes.
// Byte lanes are stored byte-wise, so their swap width is 1.
func ints(name string, lanes, width int, signed, norm bool) codec {
	bits := uint(8 * width)
	q := newQuant(bits, signed, norm)
	return codec{
		name: name,
		size: width * lanes,
		swap: width,
		decode: func(b []byte, o binary.ByteOrder, v *mgl32.Vec4) {
			for i := range lanes {
				v[i] = q.decode(readWord(b[width*i:], o, width))
			}
		},
		encode: func(b []byte, o binary.ByteOrder, v mgl32.Vec4) {
			for i := range lanes {
				putWord(b[width*i:], o, width, q.encode(v[i]))
			}
		},
	}
}

// d3dColor is a 32-bit ARGB word; lanes decode as (R, G, B, A).
func d3dColor() codec {
	q := newQuant(8, false, true)
	shifts := [4]uint{16, 8, 0, 24}
	return codec{
		name: "D3DCOLOR",
		size: 4,
		swap: 4,
		decode: func(b []byte, o binary.ByteOrder, v *mgl32.Vec4) {
			w := o.Uint32(b)
			for i, s := range shifts {
				v[i] = q.decode(w >> s)
			}
		},
		encode: func(b []byte, o binary.ByteOrder, v mgl32.Vec4) {
			var w uint32
			for i, s := range shifts {
				w |= q.encode(v[i]) << s
			}
			o.PutUint32(b, w)
		},
	}
}

// packed covers the sub-word families stored in one 32-bit word, x in the
// lowest bits.
func packed(name string, signed, norm bool, widths ...uint) codec {
	qs := make([]quant, len(widths))
	for i, w := range widths {
		qs[i] = newQuant(w, signed, norm)
	}
	return codec{
		name: name,
		size: 4,
		swap: 4,
		decode: func(b []byte, o binary.ByteOrder, v *mgl32.Vec4) {
			w := o.Uint32(b)
			var shift uint
			for i, bits := range widths {
				v[i] = qs[i].decode(w >> shift)
				shift += bits
			}
		},
		encode: func(b []byte, o binary.ByteOrder, v mgl32.Vec4) {
			var w uint32
			var shift uint
			for i, bits := range widths {
				w |= qs[i].encode(v[i]) << shift
				shift += bits
			}
			o.PutUint32(b, w)
		},
	}
}

// quant converts one integer field of the given bit width.
type quant struct {
	bits   uint
	mask   uint32
	signed bool
	norm   bool
	min    float64
	max    float64
}

func newQuant(bits uint, signed, norm bool) quant {
	q := quant{bits: bits, signed: signed, norm: norm}
	q.mask = uint32(uint64(1)<<bits - 1)
	if signed {
		q.max = float64(uint64(1)<<(bits-1) - 1)
		q.min = -q.max - 1
	} else {
		q.max = float64(q.mask)
	}
	return q
}

func (q quant) raw(w uint32) float64 {
	w &= q.mask
	if q.signed && w&(1<<(q.bits-1)) != 0 {
		return float64(int64(w) - int64(1)<<q.bits)
	}
	return float64(w)
}

func (q quant) decode(w uint32) float32 {
	x := q.raw(w)
	if q.norm {
		x = max(x/q.max, -1)
	}
	return float32(x)
}

func (q quant) encode(v float32) uint32 {
	x := float64(v)
	if math.IsNaN(x) {
		x = 0
	}
	if q.norm {
		lo := 0.0
		if q.signed {
			lo = -1
		}
		x = min(max(x, lo), 1) * q.max
	} else {
		x = min(max(x, q.min), q.max)
	}
	return uint32(int64(math.Round(x))) & q.mask
}

func readWord(b []byte, o binary.ByteOrder, width int) uint32 {
	switch width {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(o.Uint16(b))
	default:
		return o.Uint32(b)
	}
}

func putWord(b []byte, o binary.ByteOrder, width int, w uint32) {
	switch width {
	case 1:
		b[0] = byte(w)
	case 2:
		o.PutUint16(b, uint16(w))
	default:
		o.PutUint32(b, w)
	}
}
