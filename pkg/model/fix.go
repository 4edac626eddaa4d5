package model

import (
	"fmt"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/vertex"
)

// Fix runs the container fix and then swaps what only the model layout
// describes: record fields, face arrays, element arrays, vertex buffers, bone
// palettes and node matrices.
//
// A mesh whose element array names an unknown vertex format has its vertex
// buffer left unswapped; Parse reports that mesh.
func Fix(b *mirage.Blob) (*mirage.Container, error) {
	c, err := mirage.Fix(b)
	if err != nil {
		return nil, err
	}
	if !supported(c.Version) {
		return nil, fmt.Errorf("%w: model version %d", mirage.ErrUnsupportedVersion, c.Version)
	}
	if c.DataPos < 0 {
		return nil, fmt.Errorf("%w: model has no data", mirage.ErrCorruptContainer)
	}
	sw, err := b.Swapper(c.Swapped())
	if err != nil {
		return nil, err
	}
	f := fixer{
		sw:      sw,
		version: c.Version,
		size:    b.Len(),
		visited: make(map[int]bool),
	}
	f.model(c.DataPos)
	if err := sw.Err(); err != nil {
		return nil, fmt.Errorf("model fix: %w", err)
	}
	return c, nil
}

type fixer struct {
	sw      *mirage.Swapper
	version uint32
	size    int
	visited map[int]bool
}

// once reports whether pos is seen for the first time. Records reachable by
// more than one offset must be swapped exactly once.
func (f *fixer) once(pos int) bool {
	if f.visited[pos] {
		return false
	}
	f.visited[pos] = true
	return true
}

func (f *fixer) model(pos int) {
	sw := f.sw
	sw.Layout(pos, modelLayout)

	groupCount := sw.U32(pos + modelGroupCount)
	if arr, ok := sw.Array(pos+modelGroups, groupCount, offSize); ok {
		for i := range int(groupCount) {
			if g, ok := sw.Off(arr+i*offSize, groupLayout.Size()); ok && f.once(g) {
				f.group(g)
			}
		}
	}

	nodeCount := sw.U32(pos + modelNodeCount)
	if arr, ok := sw.Array(pos+modelNodes, nodeCount, nodeRecordSize); ok {
		for i := range int(nodeCount) {
			sw.Layout(arr+i*nodeRecordSize, nodeLayout)
		}
	}
	if arr, ok := sw.Array(pos+modelMatrices, nodeCount, matrixSize); ok {
		sw.Words(arr, int(nodeCount)*16, 4)
	}
}

func (f *fixer) group(pos int) {
	sw := f.sw
	sw.Layout(pos, groupLayout)
	for slot := range 3 {
		count := sw.U32(pos + slot*8)
		arr, ok := sw.Array(pos+slot*8+4, count, offSize)
		if !ok {
			continue
		}
		for i := range int(count) {
			if m, ok := sw.Off(arr+i*offSize, meshLayout.Size()); ok && f.once(m) {
				f.mesh(m)
			}
		}
	}
}

func (f *fixer) mesh(pos int) {
	sw := f.sw
	sw.Layout(pos, meshLayout)

	faceCount := sw.U32(pos + meshFaceCount)
	if arr, ok := sw.Array(pos+meshFaces, faceCount, 2); ok {
		sw.Words(arr, int(faceCount), 2)
	}

	elems := f.elements(pos + meshElements)

	vertexCount := sw.U32(pos + meshVertexCount)
	stride := int(sw.U32(pos + meshVertexSize))
	if arr, ok := sw.Array(pos+meshVertices, vertexCount, stride); ok && elems != nil {
		f.vertices(arr, int(vertexCount), stride, elems)
	}

	boneCount := sw.U32(pos + meshBoneCount)
	width := boneWidth(f.version)
	if arr, ok := sw.Array(pos+meshBones, boneCount, width); ok {
		sw.Words(arr, int(boneCount), width)
	}

	texCount := sw.U32(pos + meshTextureCount)
	if arr, ok := sw.Array(pos+meshTextures, texCount, textureUnitRecordSize); ok {
		for i := range int(texCount) {
			sw.Layout(arr+i*textureUnitRecordSize, textureUnitLayout)
		}
	}
}

// elements swaps an element array up to its terminator and returns the
// entries. It returns nil when any entry's format is unknown or does not fit
// the vertex record, so the vertex buffer is left alone.
func (f *fixer) elements(field int) []vertex.Element {
	sw := f.sw
	pos, ok := sw.Off(field, vertex.ElementSize)
	if !ok {
		return nil
	}
	var out []vertex.Element
	usable := true
	for i := 0; i < f.size/vertex.ElementSize; i++ {
		p := pos + i*vertex.ElementSize
		sw.Layout(p, elementLayout)
		if sw.Err() != nil {
			return nil
		}
		e := vertex.Element{
			Stream: sw.U16(p),
			Offset: sw.U16(p + 2),
			Format: vertex.Format(sw.U32(p + 4)),
		}
		if e.IsEnd() {
			if !usable {
				return nil
			}
			return out
		}
		if !e.Format.Known() {
			usable = false
		}
		out = append(out, e)
	}
	return nil
}

func (f *fixer) vertices(pos, count, stride int, elems []vertex.Element) {
	sw := f.sw
	for _, e := range elems {
		end, err := e.Span()
		if err != nil || end > stride {
			return
		}
	}
	if !sw.Active() {
		return
	}
	for v := range count {
		rec := pos + v*stride
		for _, e := range elems {
			size, _ := e.Format.Size()
			width, _ := e.Format.SwapWidth()
			sw.Words(rec+int(e.Offset), size/width, width)
		}
	}
}
