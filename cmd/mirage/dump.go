package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/mirage/internal/logger"
)

type dumpEntry struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Asset any    `json:"asset"`
}

func dumpCmd() *cli.Command {
	var skip bool
	return &cli.Command{
		Name:      "dump",
		Usage:     "Parse containers and print the canonical assets as JSON",
		ArgsUsage: "<file>...",
		Flags: append(inputFlags(),
			typeFlag(true),
			jobsFlag(),
			&cli.BoolFlag{
				Name:        "skip-unsupported",
				Usage:       "drop meshes with unknown vertex formats instead of failing",
				Destination: &skip,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyInputConfig(cmd, cfg, &skip)

			ac, err := lookupAsset(assetType)
			if err != nil {
				return err
			}
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return usageError("dump needs at least one file")
			}

			entries, err := loadAll(ctx, log, ac, paths, skip)
			if err != nil {
				return err
			}
			out := make([]dumpEntry, len(entries))
			for i, l := range entries {
				out[i] = dumpEntry{Path: l.path, Type: assetType, Asset: l.asset}
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}
			_, err = fmt.Fprintln(os.Stdout, string(data))
			return err
		},
	}
}

// loadAll loads paths concurrently, at most jobs at a time, and returns them
// in argument order. Any failing file fails the whole call; skipped parts are
// logged as warnings.
func loadAll(ctx context.Context, log logger.Logger, ac assetCodec, paths []string, skip bool) ([]*loaded, error) {
	results := make([]*loaded, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(int(jobs))
	}
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := loadAsset(ac, p, skip)
			if err != nil {
				return err
			}
			if l.skipped != nil {
				log.Warn("skipped unsupported data", "path", p, "err", l.skipped)
			}
			log.Debug("loaded", "path", p, "kind", l.container.Kind, "version", l.container.Version)
			results[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("load: %w", err)
	}
	return results, nil
}
