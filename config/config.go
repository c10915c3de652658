// Package config provides configuration loading and access for trap monitoring runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultOutput is the series file used when no usable output path is configured.
const DefaultOutput = "output.csv"

// Config holds all run configuration parameters.
type Config struct {
	Output    string          `yaml:"output"`
	Trap      TrapConfig      `yaml:"trap"`
	Placement PlacementConfig `yaml:"placement"`
	Run       RunConfig       `yaml:"run"`
	Arena     ArenaConfig     `yaml:"arena"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Warnings collects non-fatal problems found while loading.
	Warnings []string `yaml:"-"`
}

// TrapConfig holds the confinement test parameters.
type TrapConfig struct {
	Window int     `yaml:"window"` // trailing samples examined (minimum trap duration)
	Size   float64 `yaml:"size"`   // max span on each axis to count as trapped
}

// PlacementConfig holds the random placement distributions.
type PlacementConfig struct {
	PredatorRadius float64 `yaml:"predator_radius"` // predators in disk [0, r]
	PreyMinRadius  float64 `yaml:"prey_min_radius"` // prey in ring [min, max]
	PreyMaxRadius  float64 `yaml:"prey_max_radius"`
	MaxAttempts    int     `yaml:"max_attempts"`
}

// RunConfig holds experiment control parameters.
type RunConfig struct {
	Seed     uint64 `yaml:"seed"`      // 0 = time-based
	MaxSteps int    `yaml:"max_steps"` // 0 = unlimited
	StopWhen string `yaml:"stop_when"` // CEL expression, empty = never
}

// ResolveSeed replaces a zero seed with a time-based one and returns the
// seed in use. Later calls return the same value.
func (r *RunConfig) ResolveSeed() uint64 {
	if r.Seed == 0 {
		r.Seed = uint64(time.Now().UnixNano())
	}
	return r.Seed
}

// ArenaConfig holds parameters for the in-process reference arena.
type ArenaConfig struct {
	HalfSize    float64 `yaml:"half_size"` // arena spans [-half_size, half_size] on both axes
	Predators   int     `yaml:"predators"`
	PreyID      string  `yaml:"prey_id"`
	PredatorID  string  `yaml:"predator_id"` // prefix, numbered from 0
	BodyRadius  float64 `yaml:"body_radius"`
	Speed       float64 `yaml:"speed"`        // distance per step
	NoiseScale  float64 `yaml:"noise_scale"`  // spatial frequency of the heading drift field
	NoiseWeight float64 `yaml:"noise_weight"` // radians of drift per unit noise
}

// ArchiveConfig holds the SQLite run archive settings.
type ArchiveConfig struct {
	Path string `yaml:"path"` // empty = disabled
}

// TelemetryConfig holds output side-channel settings.
type TelemetryConfig struct {
	SnapshotConfig bool `yaml:"snapshot_config"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
//
// Malformed content is not fatal: syntax errors fall back to the defaults,
// field type errors keep the fields that did parse, and every problem is
// logged and recorded on Config.Warnings. Only an unreadable file is an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		Parse(cfg, data)
	}

	cfg.validate()
	for _, w := range cfg.Warnings {
		slog.Warn("config_warning", "path", path, "problem", w)
	}

	return cfg, nil
}

// Parse overlays YAML data onto cfg. Only fields present in data are overwritten.
func Parse(cfg *Config, data []byte) {
	// Unmarshal into a copy so a syntax error leaves cfg untouched
	overlay := *cfg
	err := yaml.Unmarshal(data, &overlay)
	if err == nil {
		*cfg = overlay
		return
	}

	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		// yaml.v3 still decodes the well-typed fields
		*cfg = overlay
		for _, msg := range typeErr.Errors {
			cfg.Warnings = append(cfg.Warnings, msg)
		}
		return
	}

	cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("parsing config file: %v; using defaults", err))
}

// validate replaces unusable values with defaults and records a warning for each.
func (c *Config) validate() {
	defaults := Defaults()

	if strings.TrimSpace(c.Output) == "" {
		c.warnf("output path is empty; using %q", DefaultOutput)
		c.Output = DefaultOutput
	}
	if c.Trap.Window < 1 {
		c.warnf("trap.window must be positive, got %d; using %d", c.Trap.Window, defaults.Trap.Window)
		c.Trap.Window = defaults.Trap.Window
	}
	if c.Trap.Size <= 0 {
		c.warnf("trap.size must be positive, got %g; using %g", c.Trap.Size, defaults.Trap.Size)
		c.Trap.Size = defaults.Trap.Size
	}
	if c.Placement.MaxAttempts < 1 {
		c.warnf("placement.max_attempts must be positive, got %d; using %d", c.Placement.MaxAttempts, defaults.Placement.MaxAttempts)
		c.Placement.MaxAttempts = defaults.Placement.MaxAttempts
	}
	if c.Placement.PredatorRadius < 0 ||
		c.Placement.PreyMinRadius > c.Placement.PreyMaxRadius ||
		c.Placement.PreyMinRadius <= c.Placement.PredatorRadius {
		c.warnf("placement radii overlap or are inverted; using defaults")
		c.Placement = defaults.Placement
	}
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
