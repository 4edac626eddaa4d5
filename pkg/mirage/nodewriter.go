package mirage

import "fmt"

// NodeWriter builds a node tree incrementally on a Stream.
//
// A node's size is unknown when it opens, and whether it is the last child is
// unknown until a sibling does or does not follow. StartNode therefore writes a
// placeholder record and assumes leaf and last-child; a child opening clears
// its parent's leaf bit, a sibling opening clears the previous sibling's
// last-child bit, FinishNode records the size, and Finish patches every record
// in open order.
type NodeWriter struct {
	s        *Stream
	frames   []nodeFrame
	stack    []int
	rootLast int
	done     bool
}

type nodeFrame struct {
	pos       int64
	parent    int
	flags     NodeFlags
	size      uint32
	lastChild int
}

// NewNodeWriter returns an idle writer on s.
func NewNodeWriter(s *Stream) *NodeWriter {
	return &NodeWriter{s: s, rootLast: -1}
}

// Depth returns the number of open nodes.
func (w *NodeWriter) Depth() int { return len(w.stack) }

// StartNode opens a node named name carrying value.
func (w *NodeWriter) StartNode(name string, value uint32) error {
	if w.done {
		panic("mirage: StartNode after Finish")
	}
	parent := -1
	prev := w.rootLast
	if len(w.stack) > 0 {
		parent = w.stack[len(w.stack)-1]
		prev = w.frames[parent].lastChild
		w.frames[parent].flags &^= FlagLeaf
	}
	if prev >= 0 {
		w.frames[prev].flags &^= FlagLastChild
	}

	idx := len(w.frames)
	w.frames = append(w.frames, nodeFrame{
		pos:       w.s.Tell(),
		parent:    parent,
		flags:     FlagLeaf | FlagLastChild,
		lastChild: -1,
	})
	if parent >= 0 {
		w.frames[parent].lastChild = idx
	} else {
		w.rootLast = idx
	}
	w.stack = append(w.stack, idx)

	name8 := MakeNodeName(name)
	if err := w.s.WriteU32(0); err != nil {
		return err
	}
	if err := w.s.WriteU32(value); err != nil {
		return err
	}
	_, err := w.s.Write(name8[:])
	return err
}

// FinishNode closes the most recently opened node. Calling it with no open
// node is a caller bug and panics.
func (w *NodeWriter) FinishNode() error {
	if len(w.stack) == 0 {
		panic("mirage: FinishNode with no open node")
	}
	idx := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	f := &w.frames[idx]
	size := w.s.Tell() - f.pos
	if size > int64(SizeMask) {
		return fmt.Errorf("%w: node of %d bytes", ErrUnsupportedData, size)
	}
	f.size = uint32(size)
	return nil
}

// Finish closes any open nodes innermost first, then patches every record.
func (w *NodeWriter) Finish() error {
	if w.done {
		panic("mirage: Finish called twice")
	}
	if err := w.s.SeekEnd(); err != nil {
		return err
	}
	for len(w.stack) > 0 {
		if err := w.FinishNode(); err != nil {
			return err
		}
	}
	w.done = true
	for _, f := range w.frames {
		if err := w.s.WriteU32At(f.pos, joinWord(f.flags, f.size)); err != nil {
			return err
		}
	}
	return nil
}

// pendingFlags returns the flags node idx will be written with.
func (w *NodeWriter) pendingFlags(idx int) NodeFlags { return w.frames[idx].flags }
