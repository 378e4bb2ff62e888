// Package config loads the asphalt configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chazu/asphalt/pkg/lane"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "ASPHALT_CONFIG"

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Road     RoadConfig     `yaml:"road"`
	Kernel   KernelConfig   `yaml:"kernel"`
	Editor   EditorConfig   `yaml:"editor"`
	Script   ScriptConfig   `yaml:"script"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// RoadConfig is the lane configuration used when a script does not set one.
type RoadConfig struct {
	Width lane.Width `yaml:"width"`
	Lanes lane.Count `yaml:"lanes" validate:"gte=1,lte=6"`
}

type KernelConfig struct {
	MeshCells int `yaml:"mesh_cells" validate:"gte=16,lte=1024"`
}

type EditorConfig struct {
	QueueSize   int `yaml:"queue_size" validate:"gte=1,lte=4096"`
	MeshWorkers int `yaml:"mesh_workers" validate:"gte=1,lte=64"`
}

type ScriptConfig struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type SnapshotConfig struct {
	Compress  bool   `yaml:"compress"`
	StorePath string `yaml:"store_path" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: "text"},
		Road:     RoadConfig{Width: lane.Standard, Lanes: 2},
		Kernel:   KernelConfig{MeshCells: 128},
		Editor:   EditorConfig{QueueSize: 64, MeshWorkers: 4},
		Script:   ScriptConfig{Timeout: 5 * time.Second},
		Snapshot: SnapshotConfig{Compress: true, StorePath: "asphalt.db"},
	}
}

// RoadType returns the configured default lane configuration.
func (c Config) RoadType() lane.NodeType {
	return lane.NewNodeType(c.Road.Width, c.Road.Lanes)
}

var validate = validator.New()

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ResolvePath returns path, or the value of EnvPath when path is empty.
func ResolvePath(path string) string {
	if path != "" {
		return path
	}
	return os.Getenv(EnvPath)
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
