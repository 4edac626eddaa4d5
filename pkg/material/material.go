// Package material reads and writes Mirage material containers.
//
// Version 1 materials reference an external texture set by name; version 3
// materials carry their texture entries inline. Both store a shader pair,
// render flags and named float4 and bool parameters.
package material

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/scene"
)

const (
	Version1 uint32 = 1
	Version3 uint32 = 3
)

// UnknownFlagSentinel is written for the fourth flag byte, whose meaning is
// unknown. It is not kept on parse.
const UnknownFlagSentinel uint8 = 0

// WrapMode is a texture addressing mode.
type WrapMode uint8

const (
	WrapRepeat WrapMode = iota
	WrapClamp
	WrapMirror
)

// Material is the canonical material.
//
// TexSet exists only in version 1 and is dropped when writing version 3.
// Textures exist only in version 3.
type Material struct {
	Version           uint32        `json:"version"`
	Shader            string        `json:"shader"`
	SubShader         string        `json:"subShader"`
	AlphaThreshold    uint8         `json:"alphaThreshold"`
	NoBackFaceCulling bool          `json:"noBackFaceCulling"`
	Additive          bool          `json:"additive"`
	TexSet            string        `json:"texSet,omitempty"`
	Textures          []Texture     `json:"textures"`
	Float4Params      []Float4Param `json:"float4Params"`
	BoolParams        []BoolParam   `json:"boolParams"`
}

// Texture is an inline texture entry.
type Texture struct {
	Name     string   `json:"name"`
	TexCoord uint8    `json:"texCoord"`
	WrapU    WrapMode `json:"wrapU"`
	WrapV    WrapMode `json:"wrapV"`
	Type     uint8    `json:"type"`
}

type Float4Param struct {
	Name  string     `json:"name"`
	Value mgl32.Vec4 `json:"value"`
}

type BoolParam struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

// Raw layout, shared up to the version tail:
//
//	{ off shader; off subShader; u8 alphaThreshold, noBackFaceCulling,
//	  additive, unknown; u32 float4Count; off float4 -> {off name; f32[4]}[];
//	  u32 boolCount; off bools -> {off name; u32}[];
//	  u32 intCount; off ints -> {off name; i32}[] (always empty);
//	  v1: off texSet | v3: u32 textureCount; off textures -> texture[] }
//	texture { off name; u8 texCoord, wrapU, wrapV, type }
var (
	headLayout = mirage.Layout{
		mirage.FieldOff, mirage.FieldOff,
		mirage.FieldU8, mirage.FieldU8, mirage.FieldU8, mirage.FieldU8,
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
		mirage.FieldU32, mirage.FieldOff,
	}
	v1Tail = mirage.Layout{mirage.FieldOff}
	v3Tail = mirage.Layout{mirage.FieldU32, mirage.FieldOff}

	float4Layout  = mirage.Layout{mirage.FieldOff, mirage.FieldF32, mirage.FieldF32, mirage.FieldF32, mirage.FieldF32}
	scalarLayout  = mirage.Layout{mirage.FieldOff, mirage.FieldU32}
	textureLayout = mirage.Layout{mirage.FieldOff, mirage.FieldU8, mirage.FieldU8, mirage.FieldU8, mirage.FieldU8}
)

const (
	float4Count  = 12
	boolCount    = 20
	intCount     = 28
	tail         = 36
	textureCount = tail
)

// Fix runs the container fix and swaps the material records.
func Fix(b *mirage.Blob) (*mirage.Container, error) {
	c, err := mirage.Fix(b)
	if err != nil {
		return nil, err
	}
	if c.Version != Version1 && c.Version != Version3 {
		return nil, fmt.Errorf("%w: material version %d", mirage.ErrUnsupportedVersion, c.Version)
	}
	if c.DataPos < 0 {
		return nil, fmt.Errorf("%w: material has no data", mirage.ErrCorruptContainer)
	}
	sw, err := b.Swapper(c.Swapped())
	if err != nil {
		return nil, err
	}
	pos := c.DataPos
	sw.Layout(pos, headLayout)
	records := func(field int, l mirage.Layout) {
		n := sw.U32(pos + field)
		if arr, ok := sw.Array(pos+field+4, n, l.Size()); ok {
			for i := range int(n) {
				sw.Layout(arr+i*l.Size(), l)
			}
		}
	}
	records(float4Count, float4Layout)
	records(boolCount, scalarLayout)
	records(intCount, scalarLayout)
	if c.Version == Version3 {
		sw.Layout(pos+tail, v3Tail)
		records(textureCount, textureLayout)
	} else {
		sw.Layout(pos+tail, v1Tail)
	}
	if err := sw.Err(); err != nil {
		return nil, fmt.Errorf("material fix: %w", err)
	}
	return c, nil
}

// Parse builds the canonical material from a container fixed by Fix.
// Integer parameters have never been observed in game data and have no
// canonical form; a material carrying any fails with ErrUnsupportedData.
func Parse(c *mirage.Container) (*Material, error) {
	if c.Version != Version1 && c.Version != Version3 {
		return nil, fmt.Errorf("%w: material version %d", mirage.ErrUnsupportedVersion, c.Version)
	}
	cur, err := c.Data()
	if err != nil {
		return nil, err
	}
	m := &Material{Version: c.Version}
	m.Shader = cur.StringAt(cur.Off())
	m.SubShader = cur.StringAt(cur.Off())
	m.AlphaThreshold = cur.U8()
	m.NoBackFaceCulling = cur.U8() != 0
	m.Additive = cur.U8() != 0
	cur.Skip(1)
	f4n, f4 := cur.U32(), cur.Off()
	bn, bo := cur.U32(), cur.Off()
	in, _ := cur.U32(), cur.Off()
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("material header: %w", err)
	}
	if in != 0 {
		return nil, fmt.Errorf("%w: material has %d integer parameters", mirage.ErrUnsupportedData, in)
	}

	if f4n > 0 {
		arr := cur.Array(f4, f4n, float4Layout.Size())
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("float4 parameters: %w", err)
		}
		m.Float4Params = make([]Float4Param, f4n)
		for i := range m.Float4Params {
			p := &m.Float4Params[i]
			p.Name = arr.StringAt(arr.Off())
			for j := range p.Value {
				p.Value[j] = arr.F32()
			}
		}
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("float4 parameters: %w", err)
		}
	}

	if bn > 0 {
		arr := cur.Array(bo, bn, scalarLayout.Size())
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("bool parameters: %w", err)
		}
		m.BoolParams = make([]BoolParam, bn)
		for i := range m.BoolParams {
			m.BoolParams[i].Name = arr.StringAt(arr.Off())
			m.BoolParams[i].Value = arr.U32() != 0
		}
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("bool parameters: %w", err)
		}
	}

	if c.Version == Version1 {
		m.TexSet = cur.StringAt(cur.Off())
		return m, cur.Err()
	}

	tn, to := cur.U32(), cur.Off()
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if tn > 0 {
		arr := cur.Array(to, tn, textureLayout.Size())
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("textures: %w", err)
		}
		m.Textures = make([]Texture, tn)
		for i := range m.Textures {
			t := &m.Textures[i]
			t.Name = arr.StringAt(arr.Off())
			t.TexCoord = arr.U8()
			t.WrapU = WrapMode(arr.U8())
			t.WrapV = WrapMode(arr.U8())
			t.Type = arr.U8()
		}
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("textures: %w", err)
		}
	}
	return m, cur.Err()
}

// Load fixes b and parses it.
func Load(b *mirage.Blob) (*Material, error) {
	c, err := Fix(b)
	if err != nil {
		return nil, err
	}
	return Parse(c)
}

// AddToScene appends m as a material entity named name, with one texture
// entity per texture entry (or the texture set for version 1).
func AddToScene(s *scene.Scene, m *Material, name string) (uuid.UUID, error) {
	id, err := s.Add(scene.KindMaterial, name, uuid.Nil, m)
	if err != nil {
		return uuid.Nil, err
	}
	var errs []error
	for i := range m.Textures {
		_, err := s.Add(scene.KindTexture, m.Textures[i].Name, id, &m.Textures[i])
		errs = append(errs, err)
	}
	if m.TexSet != "" {
		_, err := s.Add(scene.KindTexture, m.TexSet, id, nil)
		errs = append(errs, err)
	}
	return id, errors.Join(errs...)
}
