package mirage

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeNodeName(t *testing.T) {
	t.Parallel()

	n := MakeNodeName("AB")
	assert.Equal(t, "AB      ", string(n[:]))

	long := MakeNodeName("Contexts+more")
	assert.Equal(t, "Contexts", string(long[:]))
}

func TestNodeWriterFlags(t *testing.T) {
	t.Parallel()

	var buf Buffer
	s, err := NewStream(&buf, binary.BigEndian)
	require.NoError(t, err)
	w := NewNodeWriter(s)

	// A { B, C }
	require.NoError(t, w.StartNode("A", 1))
	assert.Equal(t, FlagLeaf|FlagLastChild, w.pendingFlags(0), "A before any child")
	require.NoError(t, w.StartNode("B", 2))
	assert.Equal(t, FlagLastChild, w.pendingFlags(0), "A loses leaf when B opens")
	assert.Equal(t, FlagLeaf|FlagLastChild, w.pendingFlags(1), "B open")
	require.NoError(t, s.WriteU32(0xDEADBEEF))
	require.NoError(t, w.FinishNode())
	assert.Equal(t, FlagLeaf|FlagLastChild, w.pendingFlags(1), "B still last after finishing")
	require.NoError(t, w.StartNode("C", 3))
	assert.Equal(t, FlagLeaf, w.pendingFlags(1), "B loses last-child when C opens")
	assert.Equal(t, FlagLeaf|FlagLastChild, w.pendingFlags(2), "C open")
	require.NoError(t, w.FinishNode())
	require.NoError(t, w.FinishNode())

	assert.Equal(t, FlagLastChild, w.pendingFlags(0), "A")
	assert.Equal(t, FlagLeaf, w.pendingFlags(1), "B")
	assert.Equal(t, FlagLeaf|FlagLastChild, w.pendingFlags(2), "C")

	require.NoError(t, w.Finish())
	data := buf.Bytes()
	require.Len(t, data, 3*NodeSize+4)

	flags, size := splitWord(binary.BigEndian.Uint32(data[0:]))
	assert.Equal(t, FlagLastChild, flags)
	assert.Equal(t, uint32(3*NodeSize+4), size)

	flags, size = splitWord(binary.BigEndian.Uint32(data[NodeSize:]))
	assert.Equal(t, FlagLeaf, flags)
	assert.Equal(t, uint32(NodeSize+4), size)

	flags, size = splitWord(binary.BigEndian.Uint32(data[2*NodeSize+4:]))
	assert.Equal(t, FlagLeaf|FlagLastChild, flags)
	assert.Equal(t, uint32(NodeSize), size)
	assert.Equal(t, "C       ", string(data[2*NodeSize+12:3*NodeSize+4]))
}

func TestNodeWriterClosesOpenNodes(t *testing.T) {
	t.Parallel()

	var buf Buffer
	s, err := NewStream(&buf, binary.LittleEndian)
	require.NoError(t, err)
	w := NewNodeWriter(s)
	require.NoError(t, w.StartNode("outer", 0))
	require.NoError(t, w.StartNode("inner", 0))
	assert.Equal(t, 2, w.Depth())

	require.NoError(t, w.Finish())
	assert.Equal(t, 0, w.Depth())
	_, size := splitWord(binary.LittleEndian.Uint32(buf.Bytes()))
	assert.Equal(t, uint32(2*NodeSize), size)
}

func TestNodeWriterFinishNodeWithoutOpenNode(t *testing.T) {
	t.Parallel()

	var buf Buffer
	s, err := NewStream(&buf, nil)
	require.NoError(t, err)
	w := NewNodeWriter(s)
	require.Panics(t, func() { _ = w.FinishNode() })
}

// buildTree writes a v2 container whose Contexts payload is followed by a
// nested "Group" node holding two leaves.
func buildTree(t *testing.T, order binary.ByteOrder) []byte {
	t.Helper()

	var buf Buffer
	s, err := NewStream(&buf, order)
	require.NoError(t, err)
	chunk, err := StartSampleChunk(s, KindSampleChunkV2)
	require.NoError(t, err)
	nw := NewNodeWriter(s)
	require.NoError(t, nw.StartNode(ContextsNode, 7))
	require.NoError(t, s.WriteU32(42))
	require.NoError(t, s.Pad(NodeSize))
	require.NoError(t, nw.FinishNode())
	require.NoError(t, nw.StartNode("Group", 1))
	require.NoError(t, nw.StartNode("AB", 2))
	require.NoError(t, nw.FinishNode())
	require.NoError(t, nw.StartNode("CD", 3))
	require.NoError(t, nw.FinishNode())
	require.NoError(t, nw.FinishNode())
	require.NoError(t, nw.Finish())
	var ot OffsetTable
	require.NoError(t, chunk.FinishWrite(s, 7, &ot))
	return buf.Bytes()
}

func TestNodeTraversal(t *testing.T) {
	t.Parallel()

	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		c, err := Fix(NewBlob(buildTree(t, order)))
		require.NoError(t, err)
		assert.Equal(t, uint32(7), c.Version)

		root, ok := c.Root()
		require.True(t, ok)
		assert.True(t, root.IsRoot())
		assert.Equal(t, "", root.Name())

		kids, err := root.Children()
		require.NoError(t, err)
		require.Len(t, kids, 2)
		assert.Equal(t, "Contexts", kids[0].Name())
		assert.Equal(t, "Group   ", kids[1].Name())
		assert.True(t, kids[1].IsLastChild())

		_, hit, err := root.Child("AB", false)
		require.NoError(t, err)
		assert.False(t, hit, "AB is not a direct child")

		ab, hit, err := root.Child("AB", true)
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, uint32(2), ab.Value())

		var names []string
		require.NoError(t, root.Walk(func(depth int, n Node) error {
			if depth > 0 {
				names = append(names, n.Name())
			}
			return nil
		}))
		assert.Equal(t, []string{"Contexts", "Group   ", "AB      ", "CD      "}, names)

		cur, err := c.Data()
		require.NoError(t, err)
		assert.Equal(t, uint32(42), cur.U32())
	}
}

func TestTraversalRejectsMissingSibling(t *testing.T) {
	t.Parallel()

	// A size-16 leaf that is neither last child nor root claims a sibling that
	// does not exist before the offset table.
	data := make([]byte, 2*NodeSize)
	binary.BigEndian.PutUint32(data[0:], joinWord(FlagRoot, 2*NodeSize))
	binary.BigEndian.PutUint32(data[4:], SampleChunkMagic)
	binary.BigEndian.PutUint32(data[8:], 2*NodeSize)
	binary.BigEndian.PutUint32(data[16:], joinWord(FlagLeaf, NodeSize))

	_, err := Fix(NewBlob(data))
	require.ErrorIs(t, err, ErrCorruptContainer)
}

func TestTraversalRejectsUndersizedNode(t *testing.T) {
	t.Parallel()

	data := make([]byte, 2*NodeSize)
	binary.BigEndian.PutUint32(data[0:], joinWord(FlagRoot, 2*NodeSize))
	binary.BigEndian.PutUint32(data[4:], SampleChunkMagic)
	binary.BigEndian.PutUint32(data[8:], 2*NodeSize)
	binary.BigEndian.PutUint32(data[16:], joinWord(FlagLeaf|FlagLastChild, 0))

	_, err := Fix(NewBlob(data))
	require.ErrorIs(t, err, ErrCorruptContainer)
}

// nestedChunk builds a v2 sample chunk holding depth nodes, each the only
// child of the one before it.
func nestedChunk(depth int) []byte {
	size := SampleChunkHeaderSize + depth*NodeSize
	data := make([]byte, size)
	binary.BigEndian.PutUint32(data[0:], joinWord(FlagRoot, uint32(size)))
	binary.BigEndian.PutUint32(data[4:], SampleChunkMagic)
	binary.BigEndian.PutUint32(data[8:], uint32(size))
	for i := range depth {
		pos := SampleChunkHeaderSize + i*NodeSize
		flags := FlagLastChild
		if i == depth-1 {
			flags |= FlagLeaf
		}
		binary.BigEndian.PutUint32(data[pos:], joinWord(flags, uint32((depth-i)*NodeSize)))
		copy(data[pos+8:], "Level   ")
	}
	return data
}

func TestDeepTreeWithinLimit(t *testing.T) {
	t.Parallel()

	c, err := Fix(NewBlob(nestedChunk(MaxNodeDepth)))
	require.NoError(t, err)
	root, ok := c.Root()
	require.True(t, ok)

	deepest, count := 0, 0
	require.NoError(t, root.Walk(func(depth int, n Node) error {
		deepest = max(deepest, depth)
		count++
		return nil
	}))
	assert.Equal(t, MaxNodeDepth, deepest)
	assert.Equal(t, MaxNodeDepth+1, count)

	_, hit, err := root.Child("Missing", true)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDeepTreeRejected(t *testing.T) {
	t.Parallel()

	_, err := Fix(NewBlob(nestedChunk(MaxNodeDepth + 1)))
	require.ErrorIs(t, err, ErrCorruptContainer)

	// Far past the limit the check must fire before the stack grows with it.
	_, err = Fix(NewBlob(nestedChunk(200000)))
	require.ErrorIs(t, err, ErrCorruptContainer)
}

func TestNodeFlagsString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "root|leaf", (FlagRoot | FlagLeaf).String())
}
