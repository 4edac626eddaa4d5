// Package model reads and writes Mirage model containers.
//
// A model holds mesh groups, each with solid, transparent and punch-through
// mesh slots, plus a skeleton of named nodes. Meshes carry their faces in the
// container's topology (strips unless the container says otherwise), a vertex
// buffer described by an element array, a bone palette and texture units.
//
// Loading is Fix followed by Parse. Fix is destructive: it swaps the blob to
// host order in place, including vertex buffers whose layout is only known
// from each mesh's element array. Parse copies everything it returns, so the
// blob may be released as soon as Parse returns.
package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/vertex"
)

// Model is the canonical model.
type Model struct {
	Version  uint32          `json:"version"`
	Topology vertex.Topology `json:"topology"`
	Groups   []MeshGroup     `json:"groups"`
	Nodes    []Node          `json:"nodes"`
}

// MeshGroup is a named set of meshes split by render pass.
type MeshGroup struct {
	Name        string `json:"name"`
	Solid       []Mesh `json:"solid"`
	Transparent []Mesh `json:"transparent"`
	Punch       []Mesh `json:"punch"`
}

// Slots returns the three mesh slots in file order.
func (g *MeshGroup) Slots() [3]*[]Mesh {
	return [3]*[]Mesh{&g.Solid, &g.Transparent, &g.Punch}
}

// SlotNames names the entries of Slots.
var SlotNames = [3]string{"solid", "transparent", "punch"}

// Mesh is one draw call worth of geometry.
//
// Attributes holds one decoded column per element: Attributes[i][v] is element
// i of vertex v. Bytes of a vertex record not covered by any element are not
// kept and are written back as zeros.
type Mesh struct {
	Material     string           `json:"material"`
	Faces        []uint16         `json:"faces"`
	VertexCount  int              `json:"vertexCount"`
	VertexSize   int              `json:"vertexSize"`
	Elements     []vertex.Element `json:"elements"`
	Attributes   [][]vertex.Value `json:"attributes"`
	Bones        []uint16         `json:"bones"`
	TextureUnits []TextureUnit    `json:"textureUnits"`
}

// Triangles expands the mesh faces in topology t.
func (m *Mesh) Triangles(t vertex.Topology) ([]vertex.Triangle, error) {
	return vertex.Triangles(t, m.Faces)
}

// Attribute returns the column of the first element with semantic s and the
// given usage index.
func (m *Mesh) Attribute(s vertex.Semantic, index uint8) ([]vertex.Value, bool) {
	for i, e := range m.Elements {
		if e.Semantic == s && e.Index == index {
			return m.Attributes[i], true
		}
	}
	return nil, false
}

// TextureUnit binds a texture name to a sampler id.
type TextureUnit struct {
	Name string `json:"name"`
	ID   uint32 `json:"id"`
}

// Node is one skeleton node. Parent is -1 for roots.
type Node struct {
	Name   string     `json:"name"`
	Parent int32      `json:"parent"`
	Matrix mgl32.Mat4 `json:"matrix"`
}

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	skipUnsupported bool
}

// WithSkipUnsupported makes Parse drop meshes it cannot decode instead of
// failing. The dropped meshes are still reported: Parse returns the model
// together with the joined per-mesh errors.
func WithSkipUnsupported() Option {
	return func(o *parseOptions) { o.skipUnsupported = true }
}

// Load fixes b and parses it.
func Load(b *mirage.Blob, opts ...Option) (*Model, error) {
	c, err := Fix(b)
	if err != nil {
		return nil, err
	}
	return Parse(c, opts...)
}

func (m *Model) validate() error {
	for i, n := range m.Nodes {
		if n.Parent < -1 || int(n.Parent) >= len(m.Nodes) {
			return fmt.Errorf("%w: node %d parent %d out of range", mirage.ErrUnsupportedData, i, n.Parent)
		}
	}
	return nil
}
