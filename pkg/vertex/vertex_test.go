package vertex

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNormalized(t *testing.T) {
	t.Parallel()

	v, err := Decode(FormatUbyte4N, []byte{0, 128, 255, 255}, binary.BigEndian)
	require.NoError(t, err)
	want := mgl32.Vec4{0, 0.502, 1, 1}
	for i := range want {
		assert.InDelta(t, want[i], v[i], 1.0/255, "lane %d", i)
	}

	v, err = Decode(FormatShort2N, []byte{0x7F, 0xFF, 0x80, 0x00}, binary.BigEndian)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v[0], 1e-6)
	assert.InDelta(t, -1.0, v[1], 1e-6)
	assert.Equal(t, float32(0), v[2], "missing lane defaults to 0")
	assert.Equal(t, float32(1), v[3], "missing w defaults to 1")
}

func TestDecodeUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := Decode(Format(0x123456), make([]byte, 16), binary.BigEndian)
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	e := Element{Format: Format(0x123456), Semantic: Position}
	_, err = e.Decode(make([]byte, 16), binary.BigEndian)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodePacked(t *testing.T) {
	t.Parallel()

	// DEC4N: x=511 (1.0), y=-512 (clamped -1.0), z=0, w=1.
	w := uint32(511) | uint32(0x200)<<10 | uint32(0)<<20 | uint32(1)<<30
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	v, err := Decode(FormatDec4N, b[:], binary.LittleEndian)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v[0], 1e-6)
	assert.InDelta(t, -1.0, v[1], 1e-6)
	assert.InDelta(t, 0.0, v[2], 1e-6)
	assert.InDelta(t, 1.0, v[3], 1e-6)

	// UHEND3: 11-11-10 unnormalized.
	w = uint32(2047) | uint32(5)<<11 | uint32(1023)<<22
	binary.BigEndian.PutUint32(b[:], w)
	v, err = Decode(FormatUhend3, b[:], binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{2047, 5, 1023, 1}, v)

	// DHEN3: 10-11-11 signed, x in the low ten bits.
	w = uint32(0x3FF) | uint32(3)<<10 | uint32(0x400)<<21
	binary.BigEndian.PutUint32(b[:], w)
	v, err = Decode(FormatDhen3, b[:], binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{-1, 3, -1024, 1}, v)
}

func TestD3DColorLaneOrder(t *testing.T) {
	t.Parallel()

	// ARGB word 0xFF000080: alpha 1, red 0, blue 128/255.
	v, err := Decode(FormatD3DColor, []byte{0xFF, 0x00, 0x00, 0x80}, binary.BigEndian)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v[0], 1e-6)
	assert.InDelta(t, 128.0/255, v[2], 1e-6)
	assert.InDelta(t, 1.0, v[3], 1e-6)

	var out [4]byte
	require.NoError(t, Encode(FormatD3DColor, out[:], binary.BigEndian, v))
	assert.Equal(t, [4]byte{0xFF, 0x00, 0x00, 0x80}, out)
}

func TestHalfFloats(t *testing.T) {
	t.Parallel()

	// 0x3C00 is 1.0, 0xC000 is -2.0.
	v, err := Decode(FormatFloat16x2, []byte{0x3C, 0x00, 0xC0, 0x00}, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec4{1, -2, 0, 1}, v)
}

func TestEncodeRoundTripsEveryFormat(t *testing.T) {
	t.Parallel()

	for f, c := range formats {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			in := mgl32.Vec4{1, 0, 1, 0}
			if c.integer {
				in = mgl32.Vec4{1, 0, 1, 1}
			}
			buf := make([]byte, c.size)
			require.NoError(t, Encode(f, buf, binary.BigEndian, in))
			got, err := Decode(f, buf, binary.BigEndian)
			require.NoError(t, err)
			for i := range c.lanes {
				assert.InDelta(t, in[i], got[i], 1e-3, "lane %d", i)
			}
		})
	}
}

func TestEncodeClampsNormalized(t *testing.T) {
	t.Parallel()

	var b [4]byte
	require.NoError(t, Encode(FormatShort2N, b[:], binary.BigEndian, mgl32.Vec4{-5, 5}))
	assert.Equal(t, [4]byte{0x80, 0x01, 0x7F, 0xFF}, b)
	require.Error(t, Encode(FormatShort2N, b[:2], binary.BigEndian, mgl32.Vec4{}))

	var c [4]byte
	require.NoError(t, Encode(FormatUbyte4N, c[:], binary.BigEndian, mgl32.Vec4{2, -1, 0.5, 1}))
	assert.Equal(t, [4]byte{255, 0, 128, 255}, c)
}

func TestElementBlendIndices(t *testing.T) {
	t.Parallel()

	e := Element{Offset: 4, Format: FormatUbyte4, Semantic: BlendIndices}
	rec := []byte{0, 0, 0, 0, 3, 1, 4, 1}
	v, err := e.Decode(rec, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, [4]int32{3, 1, 4, 1}, v.Index)

	out := make([]byte, len(rec))
	require.NoError(t, e.Encode(out, binary.BigEndian, v))
	assert.Equal(t, rec, out)

	bad := Element{Format: FormatFloat4, Semantic: BlendIndices}
	require.ErrorIs(t, bad.Validate(), ErrUnsupportedSemantic)

	unknown := Element{Format: FormatFloat4, Semantic: Semantic(40)}
	require.ErrorIs(t, unknown.Validate(), ErrUnsupportedSemantic)
}

func TestReadElements(t *testing.T) {
	t.Parallel()

	elems := []Element{
		{Offset: 0, Format: FormatFloat3, Semantic: Position},
		{Offset: 12, Format: FormatFloat16x2, Semantic: TexCoord, Index: 1},
	}
	buf := make([]byte, (len(elems)+1)*ElementSize)
	for i, e := range elems {
		e.Put(buf[i*ElementSize:], binary.LittleEndian)
	}
	End.Put(buf[len(elems)*ElementSize:], binary.LittleEndian)

	got, n, err := ReadElements(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, elems, got)
	assert.Equal(t, len(buf), n)

	_, _, err = ReadElements(buf[:ElementSize], binary.LittleEndian)
	require.Error(t, err)
}

func TestFormatTableShape(t *testing.T) {
	t.Parallel()

	width, err := FormatUbyte4N.SwapWidth()
	require.NoError(t, err)
	assert.Equal(t, 1, width, "byte lanes are never swapped")

	width, err = FormatD3DColor.SwapWidth()
	require.NoError(t, err)
	assert.Equal(t, 4, width)

	size, err := FormatShort4N.Size()
	require.NoError(t, err)
	assert.Equal(t, 8, size)

	_, err = FormatUnused.Size()
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, "UNUSED", FormatUnused.String())
}
