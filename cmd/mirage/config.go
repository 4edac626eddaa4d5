package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config is the optional mirage configuration file
// (~/.config/mirage/config.yaml). Empty and nil fields leave the flag
// defaults alone.
type Config struct {
	// Output container defaults for repack.
	Kind  string `yaml:"kind"`
	Order string `yaml:"order"`

	// Input loading.
	Codec string `yaml:"codec"`
	Jobs  *int64 `yaml:"jobs"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// SkipUnsupported drops undecodable meshes instead of failing the file.
	SkipUnsupported *bool `yaml:"skip_unsupported"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mirage", "config.yaml")
}

// loadConfig reads the config file. A missing or malformed file yields a zero
// Config.
func loadConfig(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}
	}
	return c
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyInputConfig fills input flags of c that were not set explicitly.
func applyInputConfig(c *cli.Command, cfg Config, skip *bool) {
	if cfg.Codec != "" && !c.IsSet("codec") {
		codecName = cfg.Codec
	}
	if cfg.Jobs != nil && !c.IsSet("jobs") && !c.IsSet("j") {
		jobs = *cfg.Jobs
	}
	if cfg.SkipUnsupported != nil && !c.IsSet("skip-unsupported") {
		*skip = *cfg.SkipUnsupported
	}
}

// applyRepackConfig fills the output container flags of c.
func applyRepackConfig(c *cli.Command, cfg Config, kind, order *string) {
	if cfg.Kind != "" && !c.IsSet("kind") {
		*kind = cfg.Kind
	}
	if cfg.Order != "" && !c.IsSet("order") {
		*order = cfg.Order
	}
}
