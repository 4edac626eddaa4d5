package vertex

import "fmt"

// Topology is how a mesh's face indices form triangles. It is a property of
// the whole container, never of a single mesh.
type Topology uint8

const (
	TriangleStrip Topology = iota
	TriangleList
)

func (t Topology) String() string {
	switch t {
	case TriangleStrip:
		return "strip"
	case TriangleList:
		return "list"
	default:
		return fmt.Sprintf("topology(%d)", uint8(t))
	}
}

// StripRestart is the strip index that restarts the window.
const StripRestart = 0xFFFF

// Triangle is three vertex indices in winding order.
type Triangle [3]uint16

// Triangles expands faces laid out in topology t.
func Triangles(t Topology, faces []uint16) ([]Triangle, error) {
	switch t {
	case TriangleStrip:
		return StripToTriangles(faces), nil
	case TriangleList:
		return ListToTriangles(faces)
	default:
		return nil, fmt.Errorf("vertex: unknown topology %s", t)
	}
}

// StripToTriangles expands a triangle strip. Each index after the first two
// forms a triangle with the previous two; degenerate triangles are dropped,
// and every other triangle has its first two indices exchanged so all keep the
// same winding. StripRestart starts a new strip from the next two indices.
func StripToTriangles(strip []uint16) []Triangle {
	var (
		out  []Triangle
		a, b uint16
		have int
		odd  bool
	)
	for _, c := range strip {
		if c == StripRestart {
			have, odd = 0, false
			continue
		}
		switch have {
		case 0:
			a, have = c, 1
			continue
		case 1:
			b, have = c, 2
			continue
		}
		if a != b && b != c && a != c {
			if odd {
				out = append(out, Triangle{b, a, c})
			} else {
				out = append(out, Triangle{a, b, c})
			}
		}
		a, b = b, c
		odd = !odd
	}
	return out
}

// ListToTriangles groups a triangle list by three.
func ListToTriangles(list []uint16) ([]Triangle, error) {
	if len(list)%3 != 0 {
		return nil, fmt.Errorf("vertex: triangle list of %d indices", len(list))
	}
	out := make([]Triangle, 0, len(list)/3)
	for i := 0; i < len(list); i += 3 {
		out = append(out, Triangle{list[i], list[i+1], list[i+2]})
	}
	return out, nil
}
