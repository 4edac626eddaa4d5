package vertex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripToTriangles(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		strip []uint16
		want  []Triangle
	}{
		{
			name:  "alternating winding",
			strip: []uint16{0, 1, 2, 3, 4},
			want:  []Triangle{{0, 1, 2}, {2, 1, 3}, {2, 3, 4}},
		},
		{
			name:  "degenerates dropped",
			strip: []uint16{0, 1, 2, 2, 3, 4},
			want:  []Triangle{{0, 1, 2}, {3, 2, 4}},
		},
		{
			name:  "restart reseeds window",
			strip: []uint16{0, 1, 2, StripRestart, 5, 6, 7},
			want:  []Triangle{{0, 1, 2}, {5, 6, 7}},
		},
		{
			name:  "restart resets winding",
			strip: []uint16{0, 1, 2, 3, StripRestart, 5, 6, 7, 8},
			want:  []Triangle{{0, 1, 2}, {2, 1, 3}, {5, 6, 7}, {7, 6, 8}},
		},
		{
			name:  "too short",
			strip: []uint16{0, 1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, StripToTriangles(tc.strip))
		})
	}
}

func TestListToTriangles(t *testing.T) {
	t.Parallel()

	got, err := Triangles(TriangleList, []uint16{0, 1, 2, 2, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, []Triangle{{0, 1, 2}, {2, 1, 3}}, got)

	_, err = ListToTriangles([]uint16{0, 1})
	require.Error(t, err)
}
