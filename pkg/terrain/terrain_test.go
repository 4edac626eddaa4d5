package terrain

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/scene"
)

func sampleMatrix() mgl32.Mat4 {
	// Scale components are multiples of ten so the legacy division is exact.
	return mgl32.Mat4{
		10, 0, 20, 0,
		0, 30, 0, 0,
		-10, 0, 10, 0,
		4, 5.5, -6, 1,
	}
}

// exported drops the remembered on-disk rows so parsed and built instances
// compare by their public fields.
func exported(inst *Instance) Instance {
	c := *inst
	c.stored = nil
	return c
}

func TestInstanceRoundTrip(t *testing.T) {
	t.Parallel()

	for _, version := range []uint32{Version0, Version5} {
		for _, kind := range []mirage.Kind{mirage.KindStandard, mirage.KindSampleChunkV2} {
			for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
				want := &Instance{
					Version: version,
					Model:   "rock_large",
					Name:    "rock_large_03",
					Matrix:  sampleMatrix(),
				}
				if version == Version5 {
					want.LightmapMode = 2
				}
				opts := mirage.WriteOptions{Kind: kind, Order: order}
				var buf mirage.Buffer
				require.NoError(t, Write(&buf, want, opts))
				data := bytes.Clone(buf.Bytes())

				got, err := Load(mirage.NewBlob(bytes.Clone(data)))
				require.NoError(t, err)
				require.Equal(t, *want, exported(got), "v%d %s %s", version, kind, order)

				var again mirage.Buffer
				require.NoError(t, Write(&again, got, opts))
				assert.Equal(t, data, again.Bytes())
			}
		}
	}
}

func TestVersion0MatrixScale(t *testing.T) {
	t.Parallel()

	inst := &Instance{Version: Version0, Model: "tree", Matrix: sampleMatrix()}
	var buf mirage.Buffer
	require.NoError(t, Write(&buf, inst, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	data := buf.Bytes()

	// The matrix follows the three-offset record and is stored row-major.
	m := mirage.StandardHeaderSize + 12
	row := func(i int) float32 {
		return math.Float32frombits(binary.BigEndian.Uint32(data[m+4*i:]))
	}
	assert.Equal(t, float32(1), row(0), "scale divided by ten on disk")
	assert.Equal(t, float32(-1), row(2), "row 0, column 2")
	assert.Equal(t, float32(2), row(8), "row 2, column 0")
	assert.Equal(t, float32(4), row(3), "translation is not scaled")

	v5 := *inst
	v5.Version = Version5
	buf = mirage.Buffer{}
	require.NoError(t, Write(&buf, &v5, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	data = buf.Bytes()
	m = mirage.StandardHeaderSize + 16
	assert.Equal(t, float32(10), row(0), "v5 stores the matrix unscaled")
}

// legacyRows are version 0 on-disk scale values that are not multiples of a
// tenth, so scaling them by ten and back need not land on the same float.
var legacyRows = [9]float32{
	0.17972947, 0.033, 0.7,
	-0.29, 1.1, 0.0123,
	0.33, -0.4567, 0.999,
}

// legacyData writes a version 0 instance and patches its 3x3 rows with
// legacyRows. It returns the container and the matrix position.
func legacyData(t *testing.T) ([]byte, int) {
	t.Helper()
	inst := &Instance{Version: Version0, Model: "cliff", Name: "cliff_02", Matrix: sampleMatrix()}
	var buf mirage.Buffer
	require.NoError(t, Write(&buf, inst, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	data := bytes.Clone(buf.Bytes())
	m := mirage.StandardHeaderSize + 12
	for i, v := range legacyRows {
		r, c := i/3, i%3
		binary.BigEndian.PutUint32(data[m+4*(r*4+c):], math.Float32bits(v))
	}
	return data, m
}

func TestVersion0RepackKeepsStoredRows(t *testing.T) {
	t.Parallel()

	data, _ := legacyData(t)
	got, err := Load(mirage.NewBlob(bytes.Clone(data)))
	require.NoError(t, err)
	assert.Equal(t, legacyRows[0]*legacyScale, got.Matrix[0])
	assert.Equal(t, legacyRows[3]*legacyScale, got.Matrix[1], "row 1, column 0")

	var again mirage.Buffer
	require.NoError(t, Write(&again, got, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	assert.Equal(t, data, again.Bytes())

	// A copy carries the stored rows too.
	cp := *got
	again = mirage.Buffer{}
	require.NoError(t, Write(&again, &cp, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	assert.Equal(t, data, again.Bytes())
}

func TestVersion0EditedMatrixIsRescaled(t *testing.T) {
	t.Parallel()

	data, m := legacyData(t)
	got, err := Load(mirage.NewBlob(bytes.Clone(data)))
	require.NoError(t, err)
	got.Matrix[12] = 7

	var buf mirage.Buffer
	require.NoError(t, Write(&buf, got, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	out := buf.Bytes()
	row := func(i int) float32 {
		return math.Float32frombits(binary.BigEndian.Uint32(out[m+4*i:]))
	}
	assert.Equal(t, float32(7), row(3), "edited translation")
	for i, v := range legacyRows {
		r, c := i/3, i%3
		assert.InEpsilon(t, v, row(r*4+c), 1e-6, "row %d, column %d", r, c)
	}
}

func TestVersion0CanonicalRoundTrip(t *testing.T) {
	t.Parallel()

	want := &Instance{
		Version: Version0,
		Model:   "bush",
		Matrix: mgl32.Mat4{
			0.33, 0, 1.7972947, 0,
			0, 2.5, 0, 0,
			-0.7, 0, 0.33, 0,
			1, 2, 3, 1,
		},
	}
	opts := mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.LittleEndian}
	var buf mirage.Buffer
	require.NoError(t, Write(&buf, want, opts))
	data := bytes.Clone(buf.Bytes())

	got, err := Load(mirage.NewBlob(bytes.Clone(data)))
	require.NoError(t, err)
	assert.True(t, want.Matrix.ApproxEqualThreshold(got.Matrix, 1e-6), "got %v", got.Matrix)

	var again mirage.Buffer
	require.NoError(t, Write(&again, got, opts))
	assert.Equal(t, data, again.Bytes(), "parsed instance rewrites its own rows")
}

func TestUnscale(t *testing.T) {
	t.Parallel()

	for _, v := range []float32{0, 1, -30, 10, 0.33, 1.7972947, -0.4567, 123.456} {
		s := unscale(v)
		plain := v / legacyScale
		assert.LessOrEqual(t, math.Abs(float64(s*legacyScale-v)), math.Abs(float64(plain*legacyScale-v)), "%v", v)
	}
	assert.Equal(t, float32(1), unscale(10))
	assert.Equal(t, float32(-3), unscale(-30))
}

func TestUnsupportedInstanceVersion(t *testing.T) {
	t.Parallel()

	var buf mirage.Buffer
	err := Write(&buf, &Instance{Version: 3}, mirage.WriteOptions{})
	require.ErrorIs(t, err, mirage.ErrUnsupportedVersion)
}

func TestInstanceAddToScene(t *testing.T) {
	t.Parallel()

	s := scene.New()
	_, err := AddToScene(s, &Instance{Name: "rock"})
	require.NoError(t, err)
	_, ok := s.Find(scene.KindInstance, "rock")
	assert.True(t, ok)
}
