package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mirage/internal/logger"
	"github.com/samcharles93/mirage/pkg/scene"
)

func sceneCmd() *cli.Command {
	var (
		asJSON bool
		skip   bool
	)
	return &cli.Command{
		Name:      "scene",
		Usage:     "Load assets into one scene and print its entity tree",
		ArgsUsage: "<file>...",
		Flags: append(inputFlags(),
			typeFlag(true),
			jobsFlag(),
			&cli.BoolFlag{Name: "json", Usage: "print entities as JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "skip-unsupported", Usage: "drop meshes with unknown vertex formats", Destination: &skip},
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
				return usageError("scene needs at least one file")
			}
			entries, err := loadAll(ctx, log, ac, paths, skip)
			if err != nil {
				return err
			}

			s := scene.New()
			for _, l := range entries {
				if _, err := ac.scene(s, l.asset, filepath.Base(l.path)); err != nil {
					return fmt.Errorf("%s: %w", l.path, err)
				}
			}
			log.Debug("scene built", "entities", s.Len())

			if asJSON {
				data, err := json.MarshalIndent(s.Entities(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, string(data))
				return err
			}
			printScene(os.Stdout, s, uuid.Nil, 0)
			return nil
		},
	}
}

func printScene(w io.Writer, s *scene.Scene, parent uuid.UUID, depth int) {
	for _, e := range s.Children(parent) {
		_, _ = fmt.Fprintf(w, "%s%-10s %s\n", strings.Repeat("  ", depth), e.Kind, e.Name)
		printScene(w, s, e.ID, depth+1)
	}
}
