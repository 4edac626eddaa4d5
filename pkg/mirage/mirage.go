// Package mirage implements the Mirage relocatable container format.
//
// A Mirage container is a single blob that carries pointers as offsets relative
// to a container base, plus an offset table naming every such field. Loading a
// container means fixing it: swapping it to host order and rewriting every
// table-named field to an absolute blob position. Writing a container is the
// reverse: the body is emitted with relative offsets while their positions are
// collected, then the table and header are patched in at the end.
//
// Three header variants exist. The standard header points at a flat data
// region. Sample-chunk headers start a tree of self-sized, named nodes.
package mirage

// Mirage layout constants must never change.
const (
	// StandardHeaderSize is the size of the standard header record.
	StandardHeaderSize = 0x18

	// SampleChunkHeaderSize is the size of both sample-chunk header variants.
	SampleChunkHeaderSize = 16

	// NodeSize is the size of a node record, and so the smallest valid node.
	NodeSize = 16

	// NodeNameSize is the width of a node name. Names are space padded.
	NodeNameSize = 8

	// SampleChunkMagic identifies a v2 sample-chunk header.
	SampleChunkMagic uint32 = 0x0133054A

	// SizeMask selects the size bits of a node flag word.
	SizeMask uint32 = 0x1FFFFFFF

	// MaxNodeDepth bounds node nesting below the sample-chunk header.
	MaxNodeDepth = 1024

	// MaxContainerSize is the largest size a node flag word can carry.
	MaxContainerSize = int64(SizeMask)
)

// NodeFlags are the top three bits of a node (or sample-chunk header) word.
type NodeFlags uint32

const (
	FlagLeaf      NodeFlags = 0x20000000
	FlagLastChild NodeFlags = 0x40000000
	FlagRoot      NodeFlags = 0x80000000

	FlagLastOrRoot = FlagLastChild | FlagRoot
	FlagMask       = FlagLeaf | FlagLastChild | FlagRoot
)

func (f NodeFlags) String() string {
	out := make([]byte, 0, 16)
	add := func(s string) {
		if len(out) > 0 {
			out = append(out, '|')
		}
		out = append(out, s...)
	}
	if f&FlagRoot != 0 {
		add("root")
	}
	if f&FlagLastChild != 0 {
		add("last")
	}
	if f&FlagLeaf != 0 {
		add("leaf")
	}
	if len(out) == 0 {
		return "none"
	}
	return string(out)
}

func splitWord(w uint32) (NodeFlags, uint32) {
	return NodeFlags(w) & FlagMask, w & SizeMask
}

func joinWord(f NodeFlags, size uint32) uint32 {
	return uint32(f&FlagMask) | (size & SizeMask)
}
