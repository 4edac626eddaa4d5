package mirage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/samcharles93/mirage/pkg/endian"
)

// Node names with meaning at the container level.
const (
	// ContextsNode holds the asset data of a v2 sample chunk; its value is the
	// data version.
	ContextsNode = "Contexts"

	// TopologyNode marks the face topology of a v2 model; absent means strips.
	TopologyNode = "Topology"
)

// Container is a fixed container: host byte order, offsets resolved.
type Container struct {
	blob *Blob

	Kind    Kind
	Order   binary.ByteOrder
	Version uint32

	// Base is the position stored offsets were relative to.
	Base int
	// DataPos and DataSize locate the asset data; DataPos is -1 when the
	// container has none (a v2 tree without a Contexts node).
	DataPos  int
	DataSize int

	// OffsetCount is the number of relocated fields.
	OffsetCount int
	// Name is the file name stored after a standard container's offset table.
	Name string

	root    Node
	hasRoot bool
}

// Fix resolves a loaded blob in place: it detects the header variant and byte
// order, swaps header and node records to host order, and rewrites every field
// named in the offset table from base-relative to absolute. Fix is destructive
// and a blob may be fixed exactly once, even if the first attempt failed.
//
// Fix swaps only what the container itself describes. Asset packages swap the
// remaining fields of their raw structs afterwards.
func Fix(b *Blob) (*Container, error) {
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	if b.fixed {
		return nil, ErrAlreadyFixed
	}
	kind, order, err := Detect(data)
	if err != nil {
		return nil, err
	}
	b.fixed = true

	c := &Container{blob: b, Kind: kind, Order: order, DataPos: -1}
	swap := endian.NeedsSwap(order)
	switch kind {
	case KindStandard:
		err = c.fixStandard(data, swap)
	case KindSampleChunkV1:
		err = c.fixSampleChunkV1(data, swap)
	case KindSampleChunkV2:
		err = c.fixSampleChunkV2(data, swap)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) fixStandard(data []byte, swap bool) error {
	if swap {
		endian.InPlace(data[:StandardHeaderSize], 4)
	}
	h, _ := decodeStandardHeader(data, native)
	if err := h.validate(len(data)); err != nil {
		return err
	}
	c.Version = h.Version
	c.Base = int(h.DataOffset)
	c.DataPos = int(h.DataOffset)
	c.DataSize = int(h.DataSize)

	tablePos := int(h.OffsetTableOffset)
	if swap {
		endian.InPlace32(data[tablePos:])
	}
	count := native.Uint32(data[tablePos:])
	if uint64(tablePos)+4+4*uint64(count) > uint64(h.FileSize) {
		return fmt.Errorf("%w: %d offset table entries at %d", ErrOutOfMemory, count, tablePos)
	}
	if err := c.relocate(data[:h.FileSize], tablePos+4, int(count), swap); err != nil {
		return err
	}

	if h.EOFOffset < h.FileSize {
		name := data[h.EOFOffset:h.FileSize]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			c.Name = string(name[:i])
		}
	}
	return nil
}

func (c *Container) fixSampleChunkV1(data []byte, swap bool) error {
	h, err := c.fixSampleChunkHeader(data, swap)
	if err != nil {
		return err
	}
	c.Version = h.Tag
	c.DataPos = SampleChunkHeaderSize
	c.DataSize = int(h.OffsetTableOffset) - SampleChunkHeaderSize
	return c.relocate(data[:h.FileSize], int(h.OffsetTableOffset), int(h.OffsetCount), swap)
}

func (c *Container) fixSampleChunkV2(data []byte, swap bool) error {
	h, err := c.fixSampleChunkHeader(data, swap)
	if err != nil {
		return err
	}
	tablePos := int(h.OffsetTableOffset)
	if tablePos > SampleChunkHeaderSize {
		if err := swapNodes(data, SampleChunkHeaderSize, tablePos, swap); err != nil {
			return err
		}
	}
	if err := c.relocate(data[:h.FileSize], tablePos, int(h.OffsetCount), swap); err != nil {
		return err
	}

	ref, err := c.blob.ref()
	if err != nil {
		return err
	}
	c.root = Node{
		ref:        ref,
		pos:        0,
		limit:      int(h.FileSize),
		childLimit: tablePos,
		header:     true,
		flags:      h.Flags,
		size:       h.FileSize,
		value:      h.Tag,
	}
	if tablePos == SampleChunkHeaderSize {
		c.root.flags |= FlagLeaf
	}
	c.hasRoot = true

	ctx, ok, err := c.root.Child(ContextsNode, false)
	if err != nil {
		return err
	}
	if ok {
		c.Version = ctx.Value()
		c.DataPos = ctx.DataPos()
		c.DataSize = int(ctx.Size()) - NodeSize
	}
	return nil
}

func (c *Container) fixSampleChunkHeader(data []byte, swap bool) (SampleChunkHeader, error) {
	if swap {
		endian.InPlace(data[:SampleChunkHeaderSize], 4)
	}
	h, _ := decodeSampleChunkHeader(data, native)
	if err := h.validate(c.Kind, len(data)); err != nil {
		return SampleChunkHeader{}, err
	}
	return h, nil
}

// relocate applies count offset-table entries starting at tablePos. Each entry
// is swapped, the field it names is swapped, and the field is rewritten as
// base plus its stored relative value.
func (c *Container) relocate(data []byte, tablePos, count int, swap bool) error {
	base := uint64(c.Base)
	for i := range count {
		ep := tablePos + 4*i
		if swap {
			endian.InPlace32(data[ep:])
		}
		field := base + uint64(native.Uint32(data[ep:]))
		if field+4 > uint64(len(data)) {
			return fmt.Errorf("%w: entry %d names field %d beyond %d", ErrInvalidOffset, i, field, len(data))
		}
		f := data[field : field+4]
		if swap {
			endian.InPlace32(f)
		}
		abs := base + uint64(native.Uint32(f))
		if abs >= uint64(len(data)) {
			return fmt.Errorf("%w: field %d points at %d beyond %d", ErrInvalidOffset, field, abs, len(data))
		}
		native.PutUint32(f, uint32(abs))
	}
	c.OffsetCount = count
	return nil
}

// Blob returns the fixed blob.
func (c *Container) Blob() *Blob { return c.blob }

// Swapped reports whether Fix swapped byte order, so asset fixes must swap too.
func (c *Container) Swapped() bool { return endian.NeedsSwap(c.Order) }

// Data returns a cursor at the asset data.
func (c *Container) Data() (*Cursor, error) {
	if c.DataPos < 0 {
		return nil, fmt.Errorf("%w: %s container has no %s node", ErrCorruptContainer, c.Kind, ContextsNode)
	}
	return c.blob.Cursor(c.DataPos)
}

// Root returns the header node of a v2 container.
func (c *Container) Root() (Node, bool) { return c.root, c.hasRoot }

// NodeValue returns the value of the direct root child named name.
func (c *Container) NodeValue(name string) (uint32, bool, error) {
	if !c.hasRoot {
		return 0, false, nil
	}
	n, ok, err := c.root.Child(name, false)
	if err != nil || !ok {
		return 0, false, err
	}
	return n.Value(), true, nil
}

// WriteOptions choose the header variant, byte order and data version of a
// container being written.
type WriteOptions struct {
	Kind    Kind
	Order   binary.ByteOrder
	Version uint32
	// Name is stored after the offset table of standard containers.
	Name string
}

// ContainerWriter writes one container: header placeholder, asset data, extra
// v2 nodes, offset table, patched header.
type ContainerWriter struct {
	s     *Stream
	opts  WriteOptions
	ot    OffsetTable
	base  int64
	std   *StandardHeaderWriter
	chunk *SampleChunkWriter
	nodes *NodeWriter
	extra []extraNode
	done  bool
}

type extraNode struct {
	name  string
	value uint32
}

// NewContainerWriter starts a container at the current position of ws. For v2
// the Contexts node is opened, so the data written next becomes its payload.
func NewContainerWriter(ws io.WriteSeeker, opts WriteOptions) (*ContainerWriter, error) {
	s, err := NewStream(ws, opts.Order)
	if err != nil {
		return nil, err
	}
	w := &ContainerWriter{s: s, opts: opts}
	switch opts.Kind {
	case KindStandard:
		if w.std, err = StartStandardHeader(s); err != nil {
			return nil, err
		}
		w.base = w.std.DataBase()
	case KindSampleChunkV1, KindSampleChunkV2:
		if w.chunk, err = StartSampleChunk(s, opts.Kind); err != nil {
			return nil, err
		}
		w.base = w.chunk.Base()
		if opts.Kind == KindSampleChunkV2 {
			w.nodes = NewNodeWriter(s)
			if err := w.nodes.StartNode(ContextsNode, opts.Version); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("mirage: unknown container kind %s", opts.Kind)
	}
	return w, nil
}

// Stream returns the stream the asset data is written to.
func (w *ContainerWriter) Stream() *Stream { return w.s }

// Base returns the position offsets are relative to.
func (w *ContainerWriter) Base() int64 { return w.base }

// Offsets returns the offset table being collected.
func (w *ContainerWriter) Offsets() *OffsetTable { return &w.ot }

// ReserveOffset writes an offset placeholder and returns its position.
func (w *ContainerWriter) ReserveOffset() (int64, error) { return w.s.ReserveOffset() }

// FixOffset points the placeholder at fieldPos to the current position.
func (w *ContainerWriter) FixOffset(fieldPos int64) error {
	return w.s.FixOffset(w.base, fieldPos, &w.ot)
}

// WriteOffset writes an offset to target at the current position.
func (w *ContainerWriter) WriteOffset(target int64) error {
	return w.s.WriteOffset(w.base, target, &w.ot)
}

// AddNode queues a leaf node written after the Contexts node of a v2 container.
func (w *ContainerWriter) AddNode(name string, value uint32) error {
	if w.opts.Kind != KindSampleChunkV2 {
		return fmt.Errorf("%w: %s containers carry no nodes", ErrUnsupportedData, w.opts.Kind)
	}
	w.extra = append(w.extra, extraNode{name: name, value: value})
	return nil
}

// Finish writes the offset table and patches the header. The writer must not
// be used afterwards; finishing twice is a caller bug and panics.
func (w *ContainerWriter) Finish() error {
	if w.done {
		panic("mirage: ContainerWriter.Finish called twice")
	}
	w.done = true
	if err := w.s.SeekEnd(); err != nil {
		return err
	}
	switch w.opts.Kind {
	case KindStandard:
		return w.std.FinishWrite(w.s, w.opts.Version, &w.ot, w.opts.Name)
	case KindSampleChunkV1:
		return w.chunk.FinishWrite(w.s, w.opts.Version, &w.ot)
	}

	if err := w.s.Pad(NodeSize); err != nil {
		return err
	}
	if err := w.nodes.FinishNode(); err != nil {
		return err
	}
	for _, n := range w.extra {
		if err := w.nodes.StartNode(n.name, n.value); err != nil {
			return err
		}
		if err := w.nodes.FinishNode(); err != nil {
			return err
		}
	}
	if err := w.nodes.Finish(); err != nil {
		return err
	}
	return w.chunk.FinishWrite(w.s, w.opts.Version, &w.ot)
}
