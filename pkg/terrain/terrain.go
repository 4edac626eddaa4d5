// Package terrain reads and writes Mirage terrain-instance containers: a
// placed model reference with a transform.
package terrain

import (
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/scene"
)

const (
	Version0 uint32 = 0
	Version5 uint32 = 5
)

// legacyScale is applied to the upper-left 3x3 of version 0 matrices: times
// on parse, divided on write. The factor is unexplained and kept as observed.
// Scaling float32 by ten is not exactly invertible, so a parsed version 0
// instance remembers its on-disk rows and writes them back while Matrix is
// unchanged.
const legacyScale = 10

// Instance is the canonical terrain instance. Matrix is column-major; on disk
// it is stored row-major.
type Instance struct {
	Version      uint32     `json:"version"`
	Model        string     `json:"model"`
	Name         string     `json:"name"`
	Matrix       mgl32.Mat4 `json:"matrix"`
	LightmapMode uint32     `json:"lightmapMode"`

	stored *storedMatrix
}

// storedMatrix pairs version 0 on-disk rows with the Matrix parsed from them.
type storedMatrix struct {
	rows   mgl32.Mat4
	parsed mgl32.Mat4
}

// Raw layout: { off model; off matrix -> f32[16] row-major; off name;
// v5: u32 lightmapMode }.
var (
	v0Layout = mirage.Layout{mirage.FieldOff, mirage.FieldOff, mirage.FieldOff}
	v5Layout = mirage.Layout{mirage.FieldOff, mirage.FieldOff, mirage.FieldOff, mirage.FieldU32}
)

const matrixField = 4

func layout(version uint32) (mirage.Layout, error) {
	switch version {
	case Version0:
		return v0Layout, nil
	case Version5:
		return v5Layout, nil
	default:
		return nil, fmt.Errorf("%w: terrain instance version %d", mirage.ErrUnsupportedVersion, version)
	}
}

// Fix runs the container fix and swaps the instance record and its matrix.
func Fix(b *mirage.Blob) (*mirage.Container, error) {
	c, err := mirage.Fix(b)
	if err != nil {
		return nil, err
	}
	l, err := layout(c.Version)
	if err != nil {
		return nil, err
	}
	if c.DataPos < 0 {
		return nil, fmt.Errorf("%w: terrain instance has no data", mirage.ErrCorruptContainer)
	}
	sw, err := b.Swapper(c.Swapped())
	if err != nil {
		return nil, err
	}
	sw.Layout(c.DataPos, l)
	if m, ok := sw.Off(c.DataPos+matrixField, 64); ok {
		sw.Words(m, 16, 4)
	}
	if err := sw.Err(); err != nil {
		return nil, fmt.Errorf("terrain fix: %w", err)
	}
	return c, nil
}

// Parse builds the canonical instance from a container fixed by Fix.
func Parse(c *mirage.Container) (*Instance, error) {
	if _, err := layout(c.Version); err != nil {
		return nil, err
	}
	cur, err := c.Data()
	if err != nil {
		return nil, err
	}
	inst := &Instance{Version: c.Version}
	inst.Model = cur.StringAt(cur.Off())
	mat := cur.Off()
	inst.Name = cur.StringAt(cur.Off())
	if c.Version == Version5 {
		inst.LightmapMode = cur.U32()
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("terrain instance: %w", err)
	}

	inst.Matrix = mgl32.Ident4()
	if !mat.IsNull() {
		mc := cur.At(mat)
		var rows mgl32.Mat4
		for i := range rows {
			rows[i] = mc.F32()
		}
		if err := mc.Err(); err != nil {
			return nil, fmt.Errorf("terrain matrix: %w", err)
		}
		inst.Matrix = rows.Transpose()
		if c.Version == Version0 {
			scale3x3(&inst.Matrix, true)
			inst.stored = &storedMatrix{rows: rows, parsed: inst.Matrix}
		}
	}
	return inst, nil
}

// scale3x3 multiplies (up) or divides the upper-left 3x3 by legacyScale.
func scale3x3(m *mgl32.Mat4, up bool) {
	for col := range 3 {
		for row := range 3 {
			if up {
				m[col*4+row] *= legacyScale
			} else {
				m[col*4+row] = unscale(m[col*4+row])
			}
		}
	}
}

// unscale divides v by legacyScale, preferring a neighbouring float that
// scales back to exactly v when the rounded quotient does not.
func unscale(v float32) float32 {
	q := v / legacyScale
	if q*legacyScale == v {
		return q
	}
	for _, s := range []float32{
		math.Nextafter32(q, float32(math.Inf(1))),
		math.Nextafter32(q, float32(math.Inf(-1))),
	} {
		if s*legacyScale == v {
			return s
		}
	}
	return q
}

// Rows returns the matrix Write stores for inst: row-major, with the version 0
// scale removed. An unedited version 0 instance yields its parsed rows.
func (inst *Instance) Rows() mgl32.Mat4 {
	if inst.Version == Version0 && inst.stored != nil && inst.stored.parsed == inst.Matrix {
		return inst.stored.rows
	}
	m := inst.Matrix
	if inst.Version == Version0 {
		scale3x3(&m, false)
	}
	return m.Transpose()
}

// Load fixes b and parses it.
func Load(b *mirage.Blob) (*Instance, error) {
	c, err := Fix(b)
	if err != nil {
		return nil, err
	}
	return Parse(c)
}

// Write encodes inst as a container. The version always comes from
// inst.Version, since version 0 is a real version.
func Write(ws io.WriteSeeker, inst *Instance, opts mirage.WriteOptions) error {
	if _, err := layout(inst.Version); err != nil {
		return err
	}
	opts.Version = inst.Version
	cw, err := mirage.NewContainerWriter(ws, opts)
	if err != nil {
		return err
	}
	s := cw.Stream()

	fields := make([]int64, 3)
	for i := range fields {
		if fields[i], err = cw.ReserveOffset(); err != nil {
			return err
		}
	}
	if inst.Version == Version5 {
		if err := s.WriteU32(inst.LightmapMode); err != nil {
			return err
		}
	}

	rows := inst.Rows()
	if err := cw.FixOffset(fields[1]); err != nil {
		return err
	}
	if err := s.WriteF32s(rows[:]...); err != nil {
		return err
	}

	for i, str := range []string{inst.Model, "", inst.Name} {
		if i == 1 || str == "" {
			continue
		}
		if err := cw.FixOffset(fields[i]); err != nil {
			return err
		}
		if err := s.WriteString(str); err != nil {
			return err
		}
	}
	return cw.Finish()
}

// AddToScene appends inst as an instance entity named after it.
func AddToScene(s *scene.Scene, inst *Instance) (uuid.UUID, error) {
	return s.Add(scene.KindInstance, inst.Name, uuid.Nil, inst)
}
