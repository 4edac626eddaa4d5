package model

import "github.com/samcharles93/mirage/pkg/mirage"

// Supported data versions. They share one layout and differ only in the width
// of the per-mesh bone palette.
const (
	Version5 uint32 = 5 // u8 bone palette
	Version6 uint32 = 6 // u16 bone palette
)

// TopologyList is the Topology node value that marks triangle lists.
const TopologyList uint32 = 3

// Raw record layouts. Every Off field is relocated by the container.
//
//	model      { u32 groupCount; off groups -> off[groupCount];
//	             u32 nodeCount; off nodes -> node[nodeCount];
//	             off matrices -> f32[16*nodeCount] }
//	group      { u32 solidCount; off solid -> off[]; u32 transparentCount;
//	             off transparent -> off[]; u32 punchCount; off punch -> off[];
//	             char name[] }
//	mesh       { off material; u32 faceCount; off faces -> u16[];
//	             u32 vertexCount; u32 vertexSize; off vertices;
//	             off elements -> element[] + terminator;
//	             u32 boneCount; off bones -> u8[] (v5) | u16[] (v6);
//	             u32 textureUnitCount; off textureUnits -> textureUnit[] }
//	node       { i32 parent; off name }
//	textureUnit{ off name; u32 id }
var (
	modelLayout = mirage.Layout{
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldOff,
	}
	groupLayout = mirage.Layout{
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
	}
	meshLayout = mirage.Layout{
		mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldU32, mirage.FieldOff,
		mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
	}
	nodeLayout        = mirage.Layout{mirage.FieldU32, mirage.FieldOff}
	textureUnitLayout = mirage.Layout{mirage.FieldOff, mirage.FieldU32}
	elementLayout     = mirage.Layout{
		mirage.FieldU16, mirage.FieldU16, mirage.FieldU32,
		mirage.FieldU8, mirage.FieldU8, mirage.FieldU8, mirage.FieldU8,
	}
)

// Field positions inside the raw records.
const (
	modelGroupCount = 0
	modelGroups     = 4
	modelNodeCount  = 8
	modelNodes      = 12
	modelMatrices   = 16

	groupName = 24

	meshMaterial     = 0
	meshFaceCount    = 4
	meshFaces        = 8
	meshVertexCount  = 12
	meshVertexSize   = 16
	meshVertices     = 20
	meshElements     = 24
	meshBoneCount    = 28
	meshBones        = 32
	meshTextureCount = 36
	meshTextures     = 40

	nodeRecordSize        = 8
	textureUnitRecordSize = 8
	matrixSize            = 64
	offSize               = 4
)

func boneWidth(version uint32) int {
	if version == Version5 {
		return 1
	}
	return 2
}

func supported(version uint32) bool {
	return version == Version5 || version == Version6
}
