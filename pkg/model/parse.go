package model

import (
	"errors"
	"fmt"

	"github.com/samcharles93/mirage/pkg/endian"
	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/vertex"
)

// Parse builds the canonical model from a container fixed by Fix.
//
// A mesh that cannot be decoded (unknown vertex format or semantic) fails the
// parse. With WithSkipUnsupported the mesh is dropped instead and Parse
// returns the model along with every per-mesh error joined.
func Parse(c *mirage.Container, opts ...Option) (*Model, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !supported(c.Version) {
		return nil, fmt.Errorf("%w: model version %d", mirage.ErrUnsupportedVersion, c.Version)
	}
	topo := vertex.TriangleStrip
	if v, ok, err := c.NodeValue(mirage.TopologyNode); err != nil {
		return nil, err
	} else if ok && v == TopologyList {
		topo = vertex.TriangleList
	}

	cur, err := c.Data()
	if err != nil {
		return nil, err
	}
	p := parser{version: c.Version, opts: o}
	m := &Model{Version: c.Version, Topology: topo}

	groupCount := cur.U32()
	groups := cur.Off()
	nodeCount := cur.U32()
	nodes := cur.Off()
	matrices := cur.Off()
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("model header: %w", err)
	}

	if groupCount > 0 {
		arr := cur.Array(groups, groupCount, offSize)
		for i := range int(groupCount) {
			g, err := p.group(arr.At(arr.Off()), i)
			if err != nil {
				return nil, err
			}
			m.Groups = append(m.Groups, g)
		}
		if err := arr.Err(); err != nil {
			return nil, fmt.Errorf("mesh groups: %w", err)
		}
	}

	if nodeCount > 0 {
		recs := cur.Array(nodes, nodeCount, nodeRecordSize)
		mats := cur.Array(matrices, nodeCount, matrixSize)
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("nodes: %w", err)
		}
		m.Nodes = make([]Node, nodeCount)
		for i := range m.Nodes {
			n := &m.Nodes[i]
			n.Parent = recs.I32()
			n.Name = recs.StringAt(recs.Off())
			for j := range n.Matrix {
				n.Matrix[j] = mats.F32()
			}
		}
		if err := errors.Join(recs.Err(), mats.Err()); err != nil {
			return nil, fmt.Errorf("nodes: %w", err)
		}
	}

	if len(p.skipped) > 0 {
		return m, errors.Join(p.skipped...)
	}
	return m, nil
}

type parser struct {
	version uint32
	opts    parseOptions
	skipped []error
}

func (p *parser) group(cur *mirage.Cursor, index int) (MeshGroup, error) {
	var g MeshGroup
	var counts [3]uint32
	var offs [3]mirage.Off32
	for slot := range 3 {
		counts[slot] = cur.U32()
		offs[slot] = cur.Off()
	}
	g.Name = cur.String()
	if err := cur.Err(); err != nil {
		return MeshGroup{}, fmt.Errorf("mesh group %d: %w", index, err)
	}

	for slot, dst := range g.Slots() {
		if counts[slot] == 0 {
			continue
		}
		arr := cur.Array(offs[slot], counts[slot], offSize)
		for i := range int(counts[slot]) {
			mc := arr.At(arr.Off())
			if err := arr.Err(); err != nil {
				return MeshGroup{}, fmt.Errorf("mesh group %q %s: %w", g.Name, SlotNames[slot], err)
			}
			mesh, err := p.mesh(mc)
			if err == nil {
				*dst = append(*dst, mesh)
				continue
			}
			err = fmt.Errorf("mesh group %q %s mesh %d: %w", g.Name, SlotNames[slot], i, err)
			if !p.opts.skipUnsupported || !unsupported(err) {
				return MeshGroup{}, err
			}
			p.skipped = append(p.skipped, err)
		}
	}
	return g, nil
}

func unsupported(err error) bool {
	return errors.Is(err, vertex.ErrUnsupportedFormat) || errors.Is(err, vertex.ErrUnsupportedSemantic)
}

func (p *parser) mesh(cur *mirage.Cursor) (Mesh, error) {
	var m Mesh
	material := cur.Off()
	faceCount := cur.U32()
	faces := cur.Off()
	vertexCount := cur.U32()
	vertexSize := cur.U32()
	verts := cur.Off()
	elems := cur.Off()
	boneCount := cur.U32()
	bones := cur.Off()
	texCount := cur.U32()
	texs := cur.Off()
	if err := cur.Err(); err != nil {
		return Mesh{}, err
	}

	m.Material = cur.StringAt(material)
	m.VertexCount = int(vertexCount)
	m.VertexSize = int(vertexSize)

	if faceCount > 0 {
		arr := cur.Array(faces, faceCount, 2)
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("faces: %w", err)
		}
		m.Faces = make([]uint16, faceCount)
		for i := range m.Faces {
			m.Faces[i] = arr.U16()
		}
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("faces: %w", err)
		}
	}

	if !elems.IsNull() {
		ec := cur.At(elems)
		for {
			rec := ec.Bytes(vertex.ElementSize)
			if err := ec.Err(); err != nil {
				return Mesh{}, fmt.Errorf("elements: %w", err)
			}
			e := vertex.ReadElement(rec, endian.Native)
			if e.IsEnd() {
				break
			}
			m.Elements = append(m.Elements, e)
		}
	}
	for _, e := range m.Elements {
		if err := e.Validate(); err != nil {
			return Mesh{}, err
		}
		if end, _ := e.Span(); end > m.VertexSize {
			return Mesh{}, fmt.Errorf("%w: %s element ends at %d past %d-byte vertex", mirage.ErrCorruptContainer, e.Format, end, m.VertexSize)
		}
	}

	if vertexCount > 0 && len(m.Elements) > 0 {
		arr := cur.Array(verts, vertexCount, m.VertexSize)
		raw := arr.Bytes(m.VertexCount * m.VertexSize)
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("vertices: %w", err)
		}
		m.Attributes = make([][]vertex.Value, len(m.Elements))
		for i, e := range m.Elements {
			col := make([]vertex.Value, m.VertexCount)
			for v := range col {
				rec := raw[v*m.VertexSize : (v+1)*m.VertexSize]
				val, err := e.Decode(rec, endian.Native)
				if err != nil {
					return Mesh{}, err
				}
				col[v] = val
			}
			m.Attributes[i] = col
		}
	}

	if boneCount > 0 {
		width := boneWidth(p.version)
		arr := cur.Array(bones, boneCount, width)
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("bones: %w", err)
		}
		m.Bones = make([]uint16, boneCount)
		for i := range m.Bones {
			if width == 1 {
				m.Bones[i] = uint16(arr.U8())
			} else {
				m.Bones[i] = arr.U16()
			}
		}
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("bones: %w", err)
		}
	}

	if texCount > 0 {
		arr := cur.Array(texs, texCount, textureUnitRecordSize)
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("texture units: %w", err)
		}
		m.TextureUnits = make([]TextureUnit, texCount)
		for i := range m.TextureUnits {
			m.TextureUnits[i].Name = arr.StringAt(arr.Off())
			m.TextureUnits[i].ID = arr.U32()
		}
		if err := arr.Err(); err != nil {
			return Mesh{}, fmt.Errorf("texture units: %w", err)
		}
	}
	return m, cur.Err()
}
