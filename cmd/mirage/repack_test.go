package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mirage/pkg/material"
	"github.com/samcharles93/mirage/pkg/mirage"
	"github.com/samcharles93/mirage/pkg/terrain"
)

// The commands share package-level flag state, so these tests run serially.

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	full := append([]string{"mirage", "--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error"}, args...)
	app := newApp()
	// Keep cli.Exit errors from terminating the test binary.
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	return app.Run(context.Background(), full)
}

func writeMaterial(t *testing.T, path string) *material.Material {
	t.Helper()
	m := &material.Material{
		Version:        material.Version3,
		Shader:         "standard",
		AlphaThreshold: 64,
		Float4Params:   []material.Float4Param{{Name: "tint", Value: mgl32.Vec4{1, 1, 0.5, 1}}},
		Textures:       []material.Texture{{Name: "rock_d", WrapU: material.WrapClamp}},
	}
	var buf mirage.Buffer
	require.NoError(t, material.Write(&buf, m, mirage.WriteOptions{Kind: mirage.KindStandard, Order: binary.BigEndian}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return m
}

func TestRepackChangesHeaderAndOrder(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rock.mat")
	out := filepath.Join(dir, "out", "rock.mat")
	want := writeMaterial(t, in)

	require.NoError(t, runApp(t, "repack", "--type", "material", "--in", in, "--out", out, "--kind", "v2", "--order", "little"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	kind, order, err := mirage.Detect(data)
	require.NoError(t, err)
	assert.Equal(t, mirage.KindSampleChunkV2, kind)
	assert.Equal(t, binary.LittleEndian, order)

	got, err := material.Load(mirage.NewBlob(data))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRepackCompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rock.mat")
	writeMaterial(t, in)
	plain, err := os.ReadFile(in)
	require.NoError(t, err)

	packed := filepath.Join(dir, "rock.mat.zst")
	require.NoError(t, runApp(t, "repack", "--type", "material", "--in", in, "--out", packed, "--out-codec", "zstd"))

	again := filepath.Join(dir, "again.mat")
	require.NoError(t, runApp(t, "repack", "--type", "material", "--codec", "zstd",
		"--size", strconv.Itoa(len(plain)), "--in", packed, "--out", again))

	data, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(plain, data), "repack of an unchanged asset is byte-identical")
}

func TestRepackTerrainVersion(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tree.ter")
	inst := &terrain.Instance{Version: terrain.Version5, Model: "tree", Name: "tree_01", Matrix: mgl32.Ident4()}
	var buf mirage.Buffer
	require.NoError(t, terrain.Write(&buf, inst, mirage.WriteOptions{Order: binary.BigEndian}))
	require.NoError(t, os.WriteFile(in, buf.Bytes(), 0o644))

	out := filepath.Join(dir, "tree_v0.ter")
	require.NoError(t, runApp(t, "repack", "--type", "terrain", "--in", in, "--out", out, "--version", "0"))

	b, err := mirage.OpenBlob(out)
	require.NoError(t, err)
	defer func() { _ = b.Release() }()
	got, err := terrain.Load(b)
	require.NoError(t, err)
	assert.Equal(t, terrain.Version0, got.Version)
	assert.Equal(t, inst.Name, got.Name)
	assert.Equal(t, inst.Matrix, got.Matrix)
}

func TestRepackRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rock.mat")
	writeMaterial(t, in)
	out := filepath.Join(dir, "x.mat")

	assert.Error(t, runApp(t, "repack", "--type", "shader", "--in", in, "--out", out))
	assert.Error(t, runApp(t, "repack", "--type", "material", "--in", in, "--out", out, "--order", "middle"))
	assert.Error(t, runApp(t, "repack", "--type", "model", "--in", in, "--out", out))
	assert.Error(t, runApp(t, "repack", "--type", "material", "--codec", "zstd", "--in", in, "--out", out))
}

func TestInspectFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "rock.mat")
	writeMaterial(t, in)

	codecName = "none"
	r, err := inspectFile(in)
	require.NoError(t, err)
	assert.Equal(t, "standard", r.Kind)
	assert.Equal(t, "big", r.Order)
	assert.Equal(t, material.Version3, r.Version)
	assert.Positive(t, r.OffsetCount)
	assert.Equal(t, mirage.StandardHeaderSize, r.DataPos)

	var out bytes.Buffer
	printReport(&out, r)
	assert.Contains(t, out.String(), "big-endian")
}
