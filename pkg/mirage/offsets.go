package mirage

import (
	"fmt"
	"slices"
)

// OffsetTable collects the absolute stream positions of every relative offset
// written into a container. It is created per write and consumed once when the
// container is finished.
type OffsetTable struct {
	pos []int64
}

// Add records pos.
func (t *OffsetTable) Add(pos int64) { t.pos = append(t.pos, pos) }

// Len returns the number of recorded positions.
func (t *OffsetTable) Len() int { return len(t.pos) }

// Positions returns a sorted copy of the recorded positions.
func (t *OffsetTable) Positions() []int64 {
	out := slices.Clone(t.pos)
	slices.Sort(out)
	return slices.Compact(out)
}

// sort orders the table so output is deterministic and readers can apply it
// sequentially. A field recorded twice would be relocated twice, so duplicates go.
func (t *OffsetTable) sort() {
	slices.Sort(t.pos)
	t.pos = slices.Compact(t.pos)
}

// write sorts the table and emits every entry relative to base, preceded by
// the entry count when withCount is set.
func (t *OffsetTable) write(s *Stream, base int64, withCount bool) error {
	t.sort()
	if withCount {
		if err := s.WriteU32(uint32(len(t.pos))); err != nil {
			return err
		}
	}
	for _, p := range t.pos {
		rel, err := relOffset(base, p)
		if err != nil {
			return fmt.Errorf("offset table entry: %w", err)
		}
		if err := s.WriteU32(rel); err != nil {
			return err
		}
	}
	return nil
}

// Off32 is a relocatable 32-bit offset field. In a fixed blob it holds an
// absolute blob position; zero is null.
type Off32 uint32

// IsNull reports whether the offset is unset.
func (o Off32) IsNull() bool { return o == 0 }

// Resolve validates o against a blob of n bytes, requiring room for size bytes
// at the target.
func (o Off32) Resolve(n, size int) (int, error) {
	if o == 0 {
		return 0, fmt.Errorf("%w: null offset", ErrInvalidOffset)
	}
	end := uint64(o) + uint64(size)
	if end > uint64(n) {
		return 0, fmt.Errorf("%w: %#x+%d beyond %d bytes", ErrInvalidOffset, uint32(o), size, n)
	}
	return int(o), nil
}
