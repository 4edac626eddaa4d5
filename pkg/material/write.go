package material

import (
	"fmt"
	"io"

	"github.com/samcharles93/mirage/pkg/mirage"
)

// Write encodes m as a container. opts.Version defaults to m.Version.
// Version 1 has nowhere to store inline textures, so writing any fails with
// ErrUnsupportedData. Version 3 drops TexSet.
func Write(ws io.WriteSeeker, m *Material, opts mirage.WriteOptions) error {
	if opts.Version == 0 {
		opts.Version = m.Version
	}
	if opts.Version != Version1 && opts.Version != Version3 {
		return fmt.Errorf("%w: material version %d", mirage.ErrUnsupportedVersion, opts.Version)
	}
	if opts.Version == Version1 && len(m.Textures) > 0 {
		return fmt.Errorf("%w: version 1 materials cannot hold %d inline textures", mirage.ErrUnsupportedData, len(m.Textures))
	}

	cw, err := mirage.NewContainerWriter(ws, opts)
	if err != nil {
		return err
	}
	s := cw.Stream()

	// strs collects placeholder positions and the strings they point at; the
	// strings are written after every record.
	type pending struct {
		field int64
		str   string
	}
	var strs []pending
	str := func(v string) error {
		pos, err := cw.ReserveOffset()
		if err != nil {
			return err
		}
		if v != "" {
			strs = append(strs, pending{pos, v})
		}
		return nil
	}
	flag := func(b bool) error {
		if b {
			return s.WriteU8(1)
		}
		return s.WriteU8(0)
	}

	if err := str(m.Shader); err != nil {
		return err
	}
	if err := str(m.SubShader); err != nil {
		return err
	}
	if err := s.WriteU8(m.AlphaThreshold); err != nil {
		return err
	}
	if err := flag(m.NoBackFaceCulling); err != nil {
		return err
	}
	if err := flag(m.Additive); err != nil {
		return err
	}
	if err := s.WriteU8(UnknownFlagSentinel); err != nil {
		return err
	}

	// float4, bool, int (always empty), then the v3 texture array.
	counts := []int{len(m.Float4Params), len(m.BoolParams), 0}
	if opts.Version == Version3 {
		counts = append(counts, len(m.Textures))
	}
	arrays := make([]int64, len(counts))
	for i, n := range counts {
		if err := s.WriteU32(uint32(n)); err != nil {
			return err
		}
		if arrays[i], err = cw.ReserveOffset(); err != nil {
			return err
		}
	}
	if opts.Version == Version1 {
		if err := str(m.TexSet); err != nil {
			return err
		}
	}

	if len(m.Float4Params) > 0 {
		if err := s.Pad(4); err != nil {
			return err
		}
		if err := cw.FixOffset(arrays[0]); err != nil {
			return err
		}
		for _, p := range m.Float4Params {
			if err := str(p.Name); err != nil {
				return err
			}
			if err := s.WriteF32s(p.Value[:]...); err != nil {
				return err
			}
		}
	}
	if len(m.BoolParams) > 0 {
		if err := s.Pad(4); err != nil {
			return err
		}
		if err := cw.FixOffset(arrays[1]); err != nil {
			return err
		}
		for _, p := range m.BoolParams {
			if err := str(p.Name); err != nil {
				return err
			}
			var v uint32
			if p.Value {
				v = 1
			}
			if err := s.WriteU32(v); err != nil {
				return err
			}
		}
	}
	if opts.Version == Version3 && len(m.Textures) > 0 {
		if err := s.Pad(4); err != nil {
			return err
		}
		if err := cw.FixOffset(arrays[3]); err != nil {
			return err
		}
		for _, t := range m.Textures {
			if err := str(t.Name); err != nil {
				return err
			}
			for _, b := range []uint8{t.TexCoord, uint8(t.WrapU), uint8(t.WrapV), t.Type} {
				if err := s.WriteU8(b); err != nil {
					return err
				}
			}
		}
	}

	for _, p := range strs {
		if err := cw.FixOffset(p.field); err != nil {
			return err
		}
		if err := s.WriteString(p.str); err != nil {
			return err
		}
	}
	return cw.Finish()
}
