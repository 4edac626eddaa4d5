package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/samcharles93/mirage/pkg/compress"
	"github.com/samcharles93/mirage/pkg/material"
	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/model"
	"github.com/samcharles93/mirage/pkg/scene"
	"github.com/samcharles93/mirage/pkg/terrain"
)

// assetCodec binds one asset package to the commands. parse may return a
// non-nil asset together with an error when unsupported parts were skipped.
type assetCodec struct {
	fix   func(*mirage.Blob) (*mirage.Container, error)
	parse func(c *mirage.Container, skip bool) (any, error)
	// write encodes a; version overrides the asset's own version when set.
	write func(ws io.WriteSeeker, a any, opts mirage.WriteOptions, version *uint32) error
	scene func(s *scene.Scene, a any, name string) (uuid.UUID, error)
}

var assetCodecs = map[string]assetCodec{
	"model": {
		fix: model.Fix,
		parse: func(c *mirage.Container, skip bool) (any, error) {
			var opts []model.Option
			if skip {
				opts = append(opts, model.WithSkipUnsupported())
			}
			m, err := model.Parse(c, opts...)
			if m == nil {
				return nil, err
			}
			return m, err
		},
		write: func(ws io.WriteSeeker, a any, opts mirage.WriteOptions, version *uint32) error {
			if version != nil {
				opts.Version = *version
			}
			return model.Write(ws, a.(*model.Model), opts)
		},
		scene: func(s *scene.Scene, a any, name string) (uuid.UUID, error) {
			return model.AddToScene(s, a.(*model.Model), name)
		},
	},
	"material": {
		fix: material.Fix,
		parse: func(c *mirage.Container, _ bool) (any, error) {
			m, err := material.Parse(c)
			if err != nil {
				return nil, err
			}
			return m, nil
		},
		write: func(ws io.WriteSeeker, a any, opts mirage.WriteOptions, version *uint32) error {
			if version != nil {
				opts.Version = *version
			}
			return material.Write(ws, a.(*material.Material), opts)
		},
		scene: func(s *scene.Scene, a any, name string) (uuid.UUID, error) {
			return material.AddToScene(s, a.(*material.Material), name)
		},
	},
	"terrain": {
		fix: terrain.Fix,
		parse: func(c *mirage.Container, _ bool) (any, error) {
			inst, err := terrain.Parse(c)
			if err != nil {
				return nil, err
			}
			return inst, nil
		},
		write: func(ws io.WriteSeeker, a any, opts mirage.WriteOptions, version *uint32) error {
			inst := *a.(*terrain.Instance)
			if version != nil {
				inst.Version = *version
			}
			return terrain.Write(ws, &inst, opts)
		},
		scene: func(s *scene.Scene, a any, _ string) (uuid.UUID, error) {
			return terrain.AddToScene(s, a.(*terrain.Instance))
		},
	},
}

func lookupAsset(name string) (assetCodec, error) {
	c, ok := assetCodecs[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(assetCodecs))
		for n := range assetCodecs {
			names = append(names, n)
		}
		sort.Strings(names)
		return assetCodec{}, usageError("unknown asset type %q (want %s)", name, strings.Join(names, ", "))
	}
	return c, nil
}

// openInput loads path as a blob, decompressing it first when codecName names
// a codec.
func openInput(path string) (*mirage.Blob, error) {
	kind, err := compress.ParseKind(codecName)
	if err != nil {
		return nil, err
	}
	if kind == compress.None {
		return mirage.OpenBlob(path)
	}
	if rawSize <= 0 {
		return nil, usageError("--size is required with --codec %s", kind)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	b, err := mirage.LoadCompressed(f, kind, int(rawSize))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// loaded is one parsed input file.
type loaded struct {
	path      string
	container *mirage.Container
	asset     any
	// skipped holds the errors of parts dropped by --skip-unsupported.
	skipped error
}

// loadAsset opens, fixes and parses one file. The blob is released before
// returning; parsed assets own their data.
func loadAsset(ac assetCodec, path string, skip bool) (*loaded, error) {
	b, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = b.Release() }()

	c, err := ac.fix(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a, err := ac.parse(c, skip)
	if a == nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &loaded{path: path, container: c, asset: a, skipped: err}, nil
}
