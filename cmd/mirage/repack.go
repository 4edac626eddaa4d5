package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mirage/internal/logger"
	"github.com/samcharles93/mirage/pkg/compress"
	"github.com/samcharles93/mirage/pkg/endian"
	"github.com/samcharles93/mirage/pkg/mirage"
)

func repackCmd() *cli.Command {
	var (
		inPath   string
		outPath  string
		kindName string
		order    string
		outCodec string
		name     string
		version  int64
		skip     bool
	)
	return &cli.Command{
		Name:  "repack",
		Usage: "Parse a container and write it again, optionally with another header, byte order or version",
		Flags: append(inputFlags(),
			typeFlag(true),
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "input container", Required: true, Destination: &inPath},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path", Required: true, Destination: &outPath},
			&cli.StringFlag{Name: "kind", Usage: "output header (standard, v1, v2); default keeps the input's", Destination: &kindName},
			&cli.StringFlag{Name: "order", Usage: "output byte order (big, little); default keeps the input's", Destination: &order},
			&cli.Int64Flag{Name: "version", Usage: "output data version; default keeps the input's", Destination: &version},
			&cli.StringFlag{Name: "name", Usage: "file name stored in standard containers; default keeps the input's", Destination: &name},
			&cli.StringFlag{Name: "out-codec", Usage: "compress the output (none, zstd, deflate)", Value: "none", Destination: &outCodec},
			&cli.BoolFlag{Name: "skip-unsupported", Usage: "drop meshes with unknown vertex formats", Destination: &skip},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyInputConfig(cmd, cfg, &skip)
			applyRepackConfig(cmd, cfg, &kindName, &order)

			ac, err := lookupAsset(assetType)
			if err != nil {
				return err
			}
			ck, err := compress.ParseKind(outCodec)
			if err != nil {
				return usageError("%v", err)
			}

			l, err := loadAsset(ac, inPath, skip)
			if err != nil {
				return err
			}
			if l.skipped != nil {
				log.Warn("skipped unsupported data", "path", inPath, "err", l.skipped)
			}

			opts := mirage.WriteOptions{Kind: l.container.Kind, Order: l.container.Order, Name: l.container.Name}
			if cmd.IsSet("name") {
				opts.Name = name
			}
			if kindName != "" {
				k, ok := mirage.ParseKind(kindName)
				if !ok {
					return usageError("unknown container kind %q", kindName)
				}
				opts.Kind = k
			}
			if order != "" {
				o, ok := endian.Parse(order)
				if !ok {
					return usageError("unknown byte order %q", order)
				}
				opts.Order = o
			}
			var v *uint32
			if cmd.IsSet("version") {
				if version < 0 || version > int64(^uint32(0)) {
					return usageError("version %d out of range", version)
				}
				u := uint32(version)
				v = &u
			}

			var buf mirage.Buffer
			if err := ac.write(&buf, l.asset, opts, v); err != nil {
				return fmt.Errorf("%s: %w", outPath, err)
			}
			data, err := compress.Compress(ck, buf.Bytes())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			log.Info("repacked",
				"in", inPath,
				"out", outPath,
				"kind", opts.Kind,
				"order", endian.Name(opts.Order),
				"size", buf.Len(),
				"stored", len(data),
			)
			return nil
		},
	}
}
