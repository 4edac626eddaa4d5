package mirage

import (
	"errors"
	"fmt"

	"github.com/samcharles93/mirage/pkg/endian"
)

// Node is a view of one node record in a fixed sample-chunk container.
//
// Nodes form an n-ary tree by physical adjacency: a non-leaf node's first child
// starts right after its record, and a node's next sibling starts at the node
// position plus its declared size, unless the node is the last child or the
// root. A node never outlives its blob; using it after release fails with
// ErrReleased.
type Node struct {
	ref        blobRef
	pos        int
	limit      int // end of the enclosing extent
	childLimit int // end of the extent children may occupy
	header     bool

	flags NodeFlags
	size  uint32
	value uint32
	name  [NodeNameSize]byte
}

// MakeNodeName pads (or truncates) s to a space-padded eight-byte name.
func MakeNodeName(s string) [NodeNameSize]byte {
	var n [NodeNameSize]byte
	for i := range n {
		n[i] = ' '
	}
	copy(n[:], s)
	return n
}

func loadNode(ref blobRef, pos, limit int) (Node, error) {
	data, err := ref.bytes()
	if err != nil {
		return Node{}, err
	}
	if pos < 0 || limit > len(data) || pos+NodeSize > limit {
		return Node{}, fmt.Errorf("%w: no room for a node at %d (limit %d)", ErrCorruptContainer, pos, limit)
	}
	flags, size := splitWord(native.Uint32(data[pos:]))
	if size < NodeSize {
		return Node{}, fmt.Errorf("%w: node at %d declares size %d", ErrCorruptContainer, pos, size)
	}
	if uint64(pos)+uint64(size) > uint64(limit) {
		return Node{}, fmt.Errorf("%w: node at %d of size %d overruns %d", ErrCorruptContainer, pos, size, limit)
	}
	n := Node{
		ref:        ref,
		pos:        pos,
		limit:      limit,
		childLimit: pos + int(size),
		flags:      flags,
		size:       size,
		value:      native.Uint32(data[pos+4:]),
	}
	copy(n.name[:], data[pos+8:pos+NodeSize])
	return n, nil
}

// Pos returns the absolute position of the node record.
func (n Node) Pos() int { return n.pos }

func (n Node) Flags() NodeFlags { return n.flags }

// Size returns the declared size, covering the record and all descendants.
func (n Node) Size() uint32 { return n.size }

// Value returns the node's opaque 32-bit value.
func (n Node) Value() uint32 { return n.value }

// Name returns the stored eight-byte name, padding included.
func (n Node) Name() string {
	if n.header {
		return ""
	}
	return string(n.name[:])
}

func (n Node) IsLeaf() bool      { return n.flags&FlagLeaf != 0 }
func (n Node) IsLastChild() bool { return n.flags&FlagLastChild != 0 }
func (n Node) IsRoot() bool      { return n.flags&FlagRoot != 0 }

// DataPos returns the absolute position of the payload.
func (n Node) DataPos() int { return n.pos + NodeSize }

// Data returns the payload bytes, children included. The slice aliases the blob.
func (n Node) Data() ([]byte, error) {
	data, err := n.ref.bytes()
	if err != nil {
		return nil, err
	}
	return data[n.pos+NodeSize : n.pos+int(n.size)], nil
}

// FirstChild returns the first child; ok is false for leaves.
func (n Node) FirstChild() (Node, bool, error) {
	if n.IsLeaf() {
		return Node{}, false, nil
	}
	c, err := loadNode(n.ref, n.pos+NodeSize, n.childLimit)
	if err != nil {
		return Node{}, false, err
	}
	return c, true, nil
}

// Next returns the next sibling; ok is false for the last child and the root.
func (n Node) Next() (Node, bool, error) {
	if n.flags&FlagLastOrRoot != 0 {
		return Node{}, false, nil
	}
	s, err := loadNode(n.ref, n.pos+int(n.size), n.limit)
	if err != nil {
		return Node{}, false, err
	}
	return s, true, nil
}

// Children returns every direct child in order.
func (n Node) Children() ([]Node, error) {
	var out []Node
	c, ok, err := n.FirstChild()
	for ok && err == nil {
		out = append(out, c)
		c, ok, err = c.Next()
	}
	return out, err
}

// Child finds the first node named name in depth-first order, searching only
// direct children unless recursive is set.
func (n Node) Child(name string, recursive bool) (Node, bool, error) {
	want := MakeNodeName(name)
	match := func(c Node) bool { return c.name == want && !c.header }
	if !recursive {
		c, ok, err := n.FirstChild()
		for ok && err == nil {
			if match(c) {
				return c, true, nil
			}
			c, ok, err = c.Next()
		}
		return Node{}, false, err
	}

	var found Node
	err := n.Walk(func(depth int, c Node) error {
		if depth > 0 && match(c) {
			found = c
			return errStopWalk
		}
		return nil
	})
	switch {
	case errors.Is(err, errStopWalk):
		return found, true, nil
	case err != nil:
		return Node{}, false, err
	}
	return Node{}, false, nil
}

var errStopWalk = errors.New("mirage: stop walk")

// Walk visits n and its descendants in pre-order. n is at depth 0. Trees
// deeper than MaxNodeDepth fail with ErrCorruptContainer.
func (n Node) Walk(fn func(depth int, n Node) error) error {
	if err := fn(0, n); err != nil {
		return err
	}
	// path[i] is the node being visited at depth i+1.
	var path []Node
	c, ok, err := n.FirstChild()
	for {
		if err != nil {
			return err
		}
		if ok {
			if len(path) >= MaxNodeDepth {
				return fmt.Errorf("%w: node at %d nested deeper than %d", ErrCorruptContainer, c.pos, MaxNodeDepth)
			}
			if err := fn(len(path)+1, c); err != nil {
				return err
			}
			path = append(path, c)
			c, ok, err = c.FirstChild()
			continue
		}
		if len(path) == 0 {
			return nil
		}
		last := path[len(path)-1]
		path = path[:len(path)-1]
		c, ok, err = last.Next()
	}
}

// swapNodes swaps and validates the sibling chain starting at pos and every
// descendant, pre-order, so each size and flag word is in host order before
// it is used to advance.
func swapNodes(data []byte, pos, limit int, swap bool) error {
	type extent struct{ pos, limit int }
	stack := []extent{{pos, limit}}
	for len(stack) > 0 {
		depth := len(stack)
		top := &stack[depth-1]
		pos, limit := top.pos, top.limit
		if pos+NodeSize > limit {
			return fmt.Errorf("%w: no room for a node at %d (limit %d)", ErrCorruptContainer, pos, limit)
		}
		if swap {
			endian.InPlace32(data[pos:])
			endian.InPlace32(data[pos+4:])
		}
		flags, size := splitWord(native.Uint32(data[pos:]))
		if size < NodeSize || uint64(pos)+uint64(size) > uint64(limit) {
			return fmt.Errorf("%w: node at %d declares size %d (limit %d)", ErrCorruptContainer, pos, size, limit)
		}
		if flags&FlagLastOrRoot != 0 {
			stack = stack[:len(stack)-1]
		} else {
			top.pos += int(size)
		}
		if flags&FlagLeaf == 0 {
			if depth >= MaxNodeDepth {
				return fmt.Errorf("%w: children of node at %d nested deeper than %d", ErrCorruptContainer, pos, MaxNodeDepth)
			}
			stack = append(stack, extent{pos + NodeSize, pos + int(size)})
		}
	}
	return nil
}
