package model

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/scene"
	"github.com/samcharles93/mirage/pkg/vertex"
)

func sampleMesh() Mesh {
	elems := []vertex.Element{
		{Offset: 0, Format: vertex.FormatFloat3, Semantic: vertex.Position},
		{Offset: 12, Format: vertex.FormatUbyte4, Semantic: vertex.BlendIndices},
		{Offset: 16, Format: vertex.FormatFloat16x2, Semantic: vertex.TexCoord},
		{Offset: 20, Format: vertex.FormatShort4N, Semantic: vertex.Normal},
	}
	return Mesh{
		Material:    "crate_wood",
		Faces:       []uint16{0, 1, 2, 3},
		VertexCount: 4,
		VertexSize:  28,
		Elements:    elems,
		Attributes: [][]vertex.Value{
			{
				{Vec: mgl32.Vec4{0, 0, 0, 1}},
				{Vec: mgl32.Vec4{1, 0, 0, 1}},
				{Vec: mgl32.Vec4{0, 1, 0, 1}},
				{Vec: mgl32.Vec4{1.5, -2.25, 8, 1}},
			},
			{
				{Vec: mgl32.Vec4{0, 1, 2, 3}, Index: [4]int32{0, 1, 2, 3}},
				{Vec: mgl32.Vec4{3, 0, 0, 0}, Index: [4]int32{3, 0, 0, 0}},
				{Vec: mgl32.Vec4{1, 1, 1, 1}, Index: [4]int32{1, 1, 1, 1}},
				{Vec: mgl32.Vec4{255, 0, 7, 0}, Index: [4]int32{255, 0, 7, 0}},
			},
			{
				{Vec: mgl32.Vec4{0, 0, 0, 1}},
				{Vec: mgl32.Vec4{1, 0, 0, 1}},
				{Vec: mgl32.Vec4{0, 0.5, 0, 1}},
				{Vec: mgl32.Vec4{-2, 0.25, 0, 1}},
			},
			{
				{Vec: mgl32.Vec4{0, 0, 1, 0}},
				{Vec: mgl32.Vec4{0, 1, 0, 0}},
				{Vec: mgl32.Vec4{-1, 0, 0, 1}},
				{Vec: mgl32.Vec4{1, -1, 0, 0}},
			},
		},
		Bones: []uint16{0, 1},
		TextureUnits: []TextureUnit{
			{Name: "crate_diffuse", ID: 0},
			{Name: "crate_normal", ID: 3},
		},
	}
}

func sampleModel(version uint32, topo vertex.Topology) *Model {
	return &Model{
		Version:  version,
		Topology: topo,
		Groups: []MeshGroup{
			{
				Name:  "crate",
				Solid: []Mesh{sampleMesh()},
				Punch: []Mesh{{Bones: []uint16{4}}},
			},
			{Name: "empty"},
		},
		Nodes: []Node{
			{Name: "root", Parent: -1, Matrix: mgl32.Ident4()},
			{Name: "lid", Parent: 0, Matrix: mgl32.Translate3D(0, 1.5, -2)},
		},
	}
}

func writeModel(t *testing.T, m *Model, opts mirage.WriteOptions) []byte {
	t.Helper()
	var buf mirage.Buffer
	require.NoError(t, Write(&buf, m, opts))
	return bytes.Clone(buf.Bytes())
}

func TestModelRoundTrip(t *testing.T) {
	t.Parallel()

	type tc struct {
		kind    mirage.Kind
		order   binary.ByteOrder
		version uint32
		topo    vertex.Topology
	}
	var cases []tc
	for _, kind := range []mirage.Kind{mirage.KindStandard, mirage.KindSampleChunkV1, mirage.KindSampleChunkV2} {
		for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
			for _, version := range []uint32{Version5, Version6} {
				cases = append(cases, tc{kind, order, version, vertex.TriangleStrip})
			}
		}
	}
	cases = append(cases, tc{mirage.KindSampleChunkV2, binary.BigEndian, Version6, vertex.TriangleList})

	for _, c := range cases {
		name := c.kind.String() + "/" + c.order.String() + "/" + c.topo.String()
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			want := sampleModel(c.version, c.topo)
			opts := mirage.WriteOptions{Kind: c.kind, Order: c.order}
			data := writeModel(t, want, opts)

			got, err := Load(mirage.NewBlob(bytes.Clone(data)))
			require.NoError(t, err)
			require.Equal(t, want, got)

			again := writeModel(t, got, opts)
			assert.Equal(t, data, again, "rewrite must be byte-identical")
		})
	}
}

func TestListTopologyNeedsNodeTree(t *testing.T) {
	t.Parallel()

	var buf mirage.Buffer
	err := Write(&buf, sampleModel(Version6, vertex.TriangleList), mirage.WriteOptions{Kind: mirage.KindStandard})
	require.ErrorIs(t, err, mirage.ErrUnsupportedData)
}

func TestVersion5BonePalette(t *testing.T) {
	t.Parallel()

	m := sampleModel(Version5, vertex.TriangleStrip)
	m.Groups[0].Solid[0].Bones = []uint16{300}
	var buf mirage.Buffer
	err := Write(&buf, m, mirage.WriteOptions{Kind: mirage.KindStandard})
	require.ErrorIs(t, err, mirage.ErrUnsupportedData)

	m.Version = Version6
	buf = mirage.Buffer{}
	require.NoError(t, Write(&buf, m, mirage.WriteOptions{Kind: mirage.KindStandard}))
}

func TestUnsupportedVersion(t *testing.T) {
	t.Parallel()

	var buf mirage.Buffer
	err := Write(&buf, sampleModel(4, vertex.TriangleStrip), mirage.WriteOptions{})
	require.ErrorIs(t, err, mirage.ErrUnsupportedVersion)

	// A container of another version is rejected before any model swap.
	cw, err := mirage.NewContainerWriter(&buf, mirage.WriteOptions{Version: 9})
	require.NoError(t, err)
	require.NoError(t, cw.Stream().WriteNulls(20))
	require.NoError(t, cw.Finish())
	_, err = Load(mirage.NewBlob(buf.Bytes()))
	require.ErrorIs(t, err, mirage.ErrUnsupportedVersion)
}

// corruptFormat replaces the big-endian FLOAT16_2 format id in data.
func corruptFormat(t *testing.T, data []byte) []byte {
	t.Helper()
	var id [4]byte
	binary.BigEndian.PutUint32(id[:], uint32(vertex.FormatFloat16x2))
	i := bytes.Index(data, id[:])
	require.GreaterOrEqual(t, i, 0)
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[i:], 0x00123456)
	return out
}

func TestUnknownVertexFormat(t *testing.T) {
	t.Parallel()

	data := corruptFormat(t, writeModel(t, sampleModel(Version6, vertex.TriangleStrip),
		mirage.WriteOptions{Kind: mirage.KindSampleChunkV2, Order: binary.BigEndian}))

	_, err := Load(mirage.NewBlob(bytes.Clone(data)))
	require.ErrorIs(t, err, mirage.ErrUnsupportedVertexFormat)

	m, err := Load(mirage.NewBlob(bytes.Clone(data)), WithSkipUnsupported())
	require.ErrorIs(t, err, vertex.ErrUnsupportedFormat)
	require.NotNil(t, m)
	assert.Empty(t, m.Groups[0].Solid, "undecodable mesh is dropped")
	require.Len(t, m.Groups[0].Punch, 1, "other meshes still load")
	assert.Equal(t, []uint16{4}, m.Groups[0].Punch[0].Bones)
	assert.Len(t, m.Nodes, 2)
}

func TestDeclaredCountBeyondBlob(t *testing.T) {
	t.Parallel()

	data := writeModel(t, sampleModel(Version6, vertex.TriangleStrip),
		mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian})
	binary.BigEndian.PutUint32(data[mirage.StandardHeaderSize+modelGroupCount:], 0x10000000)

	_, err := Load(mirage.NewBlob(data))
	require.ErrorIs(t, err, mirage.ErrOutOfMemory)
}

func TestMeshTriangles(t *testing.T) {
	t.Parallel()

	mesh := sampleMesh()
	tris, err := mesh.Triangles(vertex.TriangleStrip)
	require.NoError(t, err)
	assert.Equal(t, []vertex.Triangle{{0, 1, 2}, {2, 1, 3}}, tris)

	pos, ok := mesh.Attribute(vertex.Position, 0)
	require.True(t, ok)
	assert.Len(t, pos, 4)
	_, ok = mesh.Attribute(vertex.Color, 0)
	assert.False(t, ok)
}

func TestAddToScene(t *testing.T) {
	t.Parallel()

	s := scene.New()
	root, err := AddToScene(s, sampleModel(Version6, vertex.TriangleStrip), "crate.mdl")
	require.NoError(t, err)

	// model, 2 groups, 2 meshes, 1 material, 2 textures, 2 nodes
	assert.Equal(t, 10, s.Len())
	_, ok := s.Find(scene.KindMaterial, "crate_wood")
	assert.True(t, ok)
	lid, ok := s.Find(scene.KindNode, "lid")
	require.True(t, ok)
	parent, ok := s.Get(lid.Parent)
	require.True(t, ok)
	assert.Equal(t, "root", parent.Name)
	assert.Len(t, s.Children(root), 6)
}
