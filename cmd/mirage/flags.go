package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/mirage/internal/logger"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	codecName string
	rawSize   int64
	jobs      int64
	assetType string

	cfg Config
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// inputFlags describe how files on the command line are loaded.
func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "codec",
			Usage:       "input compression (none, zstd, deflate)",
			Value:       "none",
			Destination: &codecName,
		},
		&cli.Int64Flag{
			Name:        "size",
			Usage:       "decompressed size in bytes, required with --codec",
			Destination: &rawSize,
		},
	}
}

func jobsFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:        "jobs",
		Aliases:     []string{"j"},
		Usage:       "files processed concurrently",
		Value:       int64(runtime.NumCPU()),
		Destination: &jobs,
	}
}

func typeFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:        "type",
		Aliases:     []string{"t"},
		Usage:       "asset type (model, material, terrain)",
		Required:    required,
		Destination: &assetType,
	}
}

// setup loads the config file, applies it under any flags set explicitly and
// installs the logger in the command context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	cfg = loadConfig(path)
	applyLoggingConfig(cmd, cfg)

	if debug {
		logLevel = "debug"
	}
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return ctx, err
	}
	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, err
	}
	log := logger.New(os.Stderr, logger.Options{
		Level:  level,
		Format: format,
		Color:  isTerminal(os.Stderr),
	})
	if path != "" {
		log.Debug("config", "path", path)
	}
	return logger.WithContext(ctx, log), nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func usageError(format string, args ...any) error {
	return cli.Exit(fmt.Sprintf("error: "+format, args...), 2)
}
