// Package config loads the settings shared by the stdouttree commands from a
// YAML file, with overrides taken from STDOUTTREE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/kelseyhightower/envconfig"
	"github.com/wperron/stdouttree/treeexporter"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// STDOUTTREE_TREE_TIMING_FRACTION or STDOUTTREE_LOG_FORMAT.
const EnvPrefix = "STDOUTTREE"

type Config struct {
	Tree      TreeConfig      `yaml:"tree"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Collector CollectorConfig `yaml:"collector"`
}

// TreeConfig configures the tree exporter.
type TreeConfig struct {
	// Share of the line used by the timing column, between 0 and 1.
	TimingFraction float64 `yaml:"timing_fraction" envconfig:"TIMING_FRACTION"`

	// Line width. Zero asks the terminal.
	Width int `yaml:"width" envconfig:"WIDTH"`

	// One of auto, always or never.
	Color string `yaml:"color" envconfig:"COLOR"`
}

type LogConfig struct {
	// logfmt or json.
	Format string `yaml:"format" envconfig:"FORMAT"`

	// debug, info, warn or error.
	Level string `yaml:"level" envconfig:"LEVEL"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"ADDR"`

	// URL fetched by the /fetch endpoint of the trace server.
	Upstream string `yaml:"upstream" envconfig:"UPSTREAM"`
}

// CollectorConfig points at an OpenTelemetry Collector receiving OTLP over
// gRPC. An empty endpoint disables the export.
type CollectorConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"ENDPOINT"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Tree: TreeConfig{
			TimingFraction: treeexporter.DefaultTimingFraction,
			Color:          string(treeexporter.ColorAuto),
		},
		Log: LogConfig{
			Format: "logfmt",
			Level:  "info",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// LoadFile reads the configuration at path on top of the defaults, then
// applies the environment overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Tree.TimingFraction < 0 || c.Tree.TimingFraction > 1 {
		return fmt.Errorf("tree.timing_fraction must be between 0 and 1, got %v", c.Tree.TimingFraction)
	}
	if c.Tree.Width < 0 {
		return fmt.Errorf("tree.width must not be negative, got %d", c.Tree.Width)
	}
	if _, err := treeexporter.ParseColorMode(c.Tree.Color); err != nil {
		return fmt.Errorf("tree.color: %w", err)
	}
	if _, err := c.Log.levelOption(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "logfmt", "json":
	default:
		return fmt.Errorf("log.format: unknown log format %q", c.Log.Format)
	}
	return nil
}

// Builder returns a tree exporter builder configured from c.
func (c *Config) Builder() *treeexporter.Builder {
	mode, err := treeexporter.ParseColorMode(c.Tree.Color)
	if err != nil {
		mode = treeexporter.ColorAuto
	}
	return treeexporter.New().
		WithTimingFraction(c.Tree.TimingFraction).
		WithWidth(c.Tree.Width).
		WithColor(mode)
}

// NewLogger builds a leveled go-kit logger writing to out.
func (c LogConfig) NewLogger(out io.Writer) (log.Logger, error) {
	var logger log.Logger
	switch c.Format {
	case "logfmt":
		logger = log.NewLogfmtLogger(log.NewSyncWriter(out))
	case "json":
		logger = log.NewJSONLogger(log.NewSyncWriter(out))
	default:
		return nil, errors.New("unknown log format")
	}

	allow, err := c.levelOption()
	if err != nil {
		return nil, err
	}
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC), nil
}

func (c LogConfig) levelOption() (level.Option, error) {
	switch c.Level {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	default:
		return nil, fmt.Errorf("log.level: unknown level %q", c.Level)
	}
}
