package model

import (
	"fmt"
	"io"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/vertex"
)

// Write encodes m as a container. opts.Version defaults to m.Version.
// Triangle lists can only be flagged in v2 sample chunks; writing one into any
// other header kind fails with ErrUnsupportedData.
func Write(ws io.WriteSeeker, m *Model, opts mirage.WriteOptions) error {
	if opts.Version == 0 {
		opts.Version = m.Version
	}
	if !supported(opts.Version) {
		return fmt.Errorf("%w: model version %d", mirage.ErrUnsupportedVersion, opts.Version)
	}
	if m.Topology == vertex.TriangleList && opts.Kind != mirage.KindSampleChunkV2 {
		return fmt.Errorf("%w: triangle lists need a %s container", mirage.ErrUnsupportedData, mirage.KindSampleChunkV2)
	}
	if err := m.validate(); err != nil {
		return err
	}

	cw, err := mirage.NewContainerWriter(ws, opts)
	if err != nil {
		return err
	}
	w := writer{cw: cw, s: cw.Stream(), version: opts.Version}
	if err := w.model(m); err != nil {
		return err
	}
	if m.Topology == vertex.TriangleList {
		if err := cw.AddNode(mirage.TopologyNode, TopologyList); err != nil {
			return err
		}
	}
	return cw.Finish()
}

type writer struct {
	cw      *mirage.ContainerWriter
	s       *mirage.Stream
	version uint32
}

// reserve writes n offset placeholders and returns their positions.
func (w *writer) reserve(n int) ([]int64, error) {
	out := make([]int64, n)
	for i := range out {
		pos, err := w.cw.ReserveOffset()
		if err != nil {
			return nil, err
		}
		out[i] = pos
	}
	return out, nil
}

// target aligns the stream and points the placeholder at field to it.
func (w *writer) target(field int64, align int64) error {
	if err := w.s.Pad(align); err != nil {
		return err
	}
	return w.cw.FixOffset(field)
}

func (w *writer) model(m *Model) error {
	s := w.s
	if err := s.WriteU32(uint32(len(m.Groups))); err != nil {
		return err
	}
	groupsField, err := w.cw.ReserveOffset()
	if err != nil {
		return err
	}
	if err := s.WriteU32(uint32(len(m.Nodes))); err != nil {
		return err
	}
	fields, err := w.reserve(2)
	if err != nil {
		return err
	}
	nodesField, matricesField := fields[0], fields[1]

	if len(m.Groups) > 0 {
		if err := w.target(groupsField, 4); err != nil {
			return err
		}
		entries, err := w.reserve(len(m.Groups))
		if err != nil {
			return err
		}
		for i := range m.Groups {
			if err := w.target(entries[i], 4); err != nil {
				return err
			}
			if err := w.group(&m.Groups[i]); err != nil {
				return fmt.Errorf("mesh group %q: %w", m.Groups[i].Name, err)
			}
		}
	}

	if len(m.Nodes) > 0 {
		return w.nodes(m.Nodes, nodesField, matricesField)
	}
	return nil
}

func (w *writer) group(g *MeshGroup) error {
	s := w.s
	var slotFields [3]int64
	for slot, meshes := range g.Slots() {
		if err := s.WriteU32(uint32(len(*meshes))); err != nil {
			return err
		}
		pos, err := w.cw.ReserveOffset()
		if err != nil {
			return err
		}
		slotFields[slot] = pos
	}
	if err := s.WriteString(g.Name); err != nil {
		return err
	}

	for slot, meshes := range g.Slots() {
		if len(*meshes) == 0 {
			continue
		}
		if err := w.target(slotFields[slot], 4); err != nil {
			return err
		}
		entries, err := w.reserve(len(*meshes))
		if err != nil {
			return err
		}
		for i := range *meshes {
			if err := w.target(entries[i], 4); err != nil {
				return err
			}
			if err := w.mesh(&(*meshes)[i]); err != nil {
				return fmt.Errorf("%s mesh %d: %w", SlotNames[slot], i, err)
			}
		}
	}
	return nil
}

func (w *writer) mesh(m *Mesh) error {
	if err := w.checkMesh(m); err != nil {
		return err
	}
	s := w.s
	materialField, err := w.cw.ReserveOffset()
	if err != nil {
		return err
	}
	if err := s.WriteU32(uint32(len(m.Faces))); err != nil {
		return err
	}
	facesField, err := w.cw.ReserveOffset()
	if err != nil {
		return err
	}
	if err := s.WriteU32(uint32(m.VertexCount)); err != nil {
		return err
	}
	if err := s.WriteU32(uint32(m.VertexSize)); err != nil {
		return err
	}
	fields, err := w.reserve(2)
	if err != nil {
		return err
	}
	vertsField, elemsField := fields[0], fields[1]
	if err := s.WriteU32(uint32(len(m.Bones))); err != nil {
		return err
	}
	bonesField, err := w.cw.ReserveOffset()
	if err != nil {
		return err
	}
	if err := s.WriteU32(uint32(len(m.TextureUnits))); err != nil {
		return err
	}
	texField, err := w.cw.ReserveOffset()
	if err != nil {
		return err
	}

	if m.Material != "" {
		if err := w.target(materialField, 1); err != nil {
			return err
		}
		if err := s.WriteString(m.Material); err != nil {
			return err
		}
	}

	if len(m.Faces) > 0 {
		if err := w.target(facesField, 4); err != nil {
			return err
		}
		for _, f := range m.Faces {
			if err := s.WriteU16(f); err != nil {
				return err
			}
		}
	}

	if err := w.target(elemsField, 4); err != nil {
		return err
	}
	rec := make([]byte, vertex.ElementSize)
	for i := 0; i <= len(m.Elements); i++ {
		e := vertex.End
		if i < len(m.Elements) {
			e = m.Elements[i]
		}
		e.Put(rec, s.Order())
		if _, err := s.Write(rec); err != nil {
			return err
		}
	}

	if m.VertexCount > 0 {
		if err := w.target(vertsField, 4); err != nil {
			return err
		}
		buf, err := w.vertexBuffer(m)
		if err != nil {
			return err
		}
		if _, err := s.Write(buf); err != nil {
			return err
		}
	}

	if len(m.Bones) > 0 {
		if err := w.target(bonesField, 4); err != nil {
			return err
		}
		for _, b := range m.Bones {
			if boneWidth(w.version) == 1 {
				err = s.WriteU8(uint8(b))
			} else {
				err = s.WriteU16(b)
			}
			if err != nil {
				return err
			}
		}
	}

	if len(m.TextureUnits) > 0 {
		if err := w.target(texField, 4); err != nil {
			return err
		}
		names := make([]int64, len(m.TextureUnits))
		for i, tu := range m.TextureUnits {
			if names[i], err = w.cw.ReserveOffset(); err != nil {
				return err
			}
			if err := s.WriteU32(tu.ID); err != nil {
				return err
			}
		}
		for i, tu := range m.TextureUnits {
			if tu.Name == "" {
				continue
			}
			if err := w.target(names[i], 1); err != nil {
				return err
			}
			if err := s.WriteString(tu.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *writer) checkMesh(m *Mesh) error {
	if m.VertexCount < 0 || m.VertexSize < 0 {
		return fmt.Errorf("%w: negative vertex count or size", mirage.ErrUnsupportedData)
	}
	for i, e := range m.Elements {
		if err := e.Validate(); err != nil {
			return err
		}
		if end, _ := e.Span(); end > m.VertexSize {
			return fmt.Errorf("%w: %s element ends at %d past %d-byte vertex", mirage.ErrUnsupportedData, e.Format, end, m.VertexSize)
		}
		if m.VertexCount > 0 && (i >= len(m.Attributes) || len(m.Attributes[i]) != m.VertexCount) {
			return fmt.Errorf("%w: element %d has no column of %d values", mirage.ErrUnsupportedData, i, m.VertexCount)
		}
	}
	if boneWidth(w.version) == 1 {
		for _, b := range m.Bones {
			if b > 0xFF {
				return fmt.Errorf("%w: bone %d does not fit a v%d palette", mirage.ErrUnsupportedData, b, w.version)
			}
		}
	}
	return nil
}

// vertexBuffer encodes every attribute column into interleaved records in the
// stream's byte order.
func (w *writer) vertexBuffer(m *Mesh) ([]byte, error) {
	buf := make([]byte, m.VertexCount*m.VertexSize)
	for i, e := range m.Elements {
		for v, val := range m.Attributes[i] {
			rec := buf[v*m.VertexSize : (v+1)*m.VertexSize]
			if err := e.Encode(rec, w.s.Order(), val); err != nil {
				return nil, err
			}
		}
	}
	return buf, nil
}

func (w *writer) nodes(nodes []Node, nodesField, matricesField int64) error {
	s := w.s
	if err := w.target(nodesField, 4); err != nil {
		return err
	}
	names := make([]int64, len(nodes))
	for i, n := range nodes {
		if err := s.WriteI32(n.Parent); err != nil {
			return err
		}
		pos, err := w.cw.ReserveOffset()
		if err != nil {
			return err
		}
		names[i] = pos
	}

	if err := w.target(matricesField, 4); err != nil {
		return err
	}
	for _, n := range nodes {
		if err := s.WriteF32s(n.Matrix[:]...); err != nil {
			return err
		}
	}

	for i, n := range nodes {
		if n.Name == "" {
			continue
		}
		if err := w.target(names[i], 1); err != nil {
			return err
		}
		if err := s.WriteString(n.Name); err != nil {
			return err
		}
	}
	return nil
}
