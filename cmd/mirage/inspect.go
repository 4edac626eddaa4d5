package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mirage/internal/logger"
	"github.com/samcharles93/mirage/pkg/endian"
	"github.com/samcharles93/mirage/pkg/mirage"
)

type inspectReport struct {
	Path        string       `json:"path"`
	Size        int          `json:"size"`
	Kind        string       `json:"kind"`
	Order       string       `json:"order"`
	Version     uint32       `json:"version"`
	OffsetCount int          `json:"offsetCount"`
	DataPos     int          `json:"dataPos"`
	DataSize    int          `json:"dataSize"`
	Name        string       `json:"name,omitempty"`
	Nodes       []nodeReport `json:"nodes,omitempty"`
}

type nodeReport struct {
	Depth int    `json:"depth"`
	Name  string `json:"name"`
	Flags string `json:"flags"`
	Value uint32 `json:"value"`
	Size  uint32 `json:"size"`
}

func inspectCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header, offset table summary and node tree of containers",
		ArgsUsage: "<file>...",
		Flags: append(inputFlags(),
			&cli.BoolFlag{Name: "json", Usage: "print reports as JSON", Destination: &asJSON},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			var skip bool
			applyInputConfig(cmd, cfg, &skip)

			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				return usageError("inspect needs at least one file")
			}
			reports := make([]inspectReport, 0, len(paths))
			failed := 0
			for _, p := range paths {
				r, err := inspectFile(p)
				if err != nil {
					log.Error("inspect failed", "path", p, "err", err)
					failed++
					continue
				}
				log.Debug("inspected", "path", p, "kind", r.Kind, "version", r.Version)
				reports = append(reports, r)
			}

			if asJSON {
				out, err := json.MarshalIndent(reports, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, string(out))
				if err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					printReport(os.Stdout, r)
				}
			}
			if failed > 0 {
				return cli.Exit(fmt.Sprintf("error: %d of %d file(s) failed", failed, len(paths)), 1)
			}
			return nil
		},
	}
}

func inspectFile(path string) (inspectReport, error) {
	b, err := openInput(path)
	if err != nil {
		return inspectReport{}, err
	}
	defer func() { _ = b.Release() }()

	r := inspectReport{Path: path, Size: b.Len()}
	c, err := mirage.Fix(b)
	if err != nil {
		return r, err
	}
	r.Kind = c.Kind.String()
	r.Order = endian.Name(c.Order)
	r.Version = c.Version
	r.OffsetCount = c.OffsetCount
	r.DataPos = c.DataPos
	r.DataSize = c.DataSize
	r.Name = c.Name

	if root, ok := c.Root(); ok {
		err := root.Walk(func(depth int, n mirage.Node) error {
			r.Nodes = append(r.Nodes, nodeReport{
				Depth: depth,
				Name:  n.Name(),
				Flags: n.Flags().String(),
				Value: n.Value(),
				Size:  n.Size(),
			})
			return nil
		})
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func printReport(w io.Writer, r inspectReport) {
	_, _ = fmt.Fprintf(w, "%s\n", r.Path)
	_, _ = fmt.Fprintf(w, "  kind:     %s\n", r.Kind)
	_, _ = fmt.Fprintf(w, "  order:    %s-endian\n", r.Order)
	_, _ = fmt.Fprintf(w, "  version:  %d\n", r.Version)
	_, _ = fmt.Fprintf(w, "  offsets:  %d\n", r.OffsetCount)
	if r.DataPos >= 0 {
		_, _ = fmt.Fprintf(w, "  data:     0x%x (%d bytes of %d)\n", r.DataPos, r.DataSize, r.Size)
	} else {
		_, _ = fmt.Fprintf(w, "  data:     none\n")
	}
	if r.Name != "" {
		_, _ = fmt.Fprintf(w, "  name:     %s\n", r.Name)
	}
	if len(r.Nodes) > 0 {
		_, _ = fmt.Fprintf(w, "  nodes:\n")
		for _, n := range r.Nodes {
			_, _ = fmt.Fprintf(w, "    %s%-16s value=%-8d size=%-8d %s\n",
				strings.Repeat("  ", n.Depth), n.Name, n.Value, n.Size, n.Flags)
		}
	}
}
