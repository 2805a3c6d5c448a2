// Package config holds the renderer settings and loads and saves them as TOML or YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	MinRayBounces      = 1
	MaxRayBounces      = 10
	MinSamplesPerPixel = 1
	MaxSamplesPerPixel = 64
)

// GlobalIllumination configures indirect diffuse lighting.
type GlobalIllumination struct {
	Enabled  bool    `toml:"enabled" yaml:"enabled"`
	Strength float32 `toml:"strength" yaml:"strength"`

	// Samples is the number of hemisphere rays estimating the occlusion of indirect light.
	Samples int `toml:"samples" yaml:"samples"`
}

// Reflections configures ray traced reflections. Quality is 0 (low), 1 (medium) or 2 (high) and
// allows one more mirror bounce per level.
type Reflections struct {
	Enabled  bool    `toml:"enabled" yaml:"enabled"`
	Strength float32 `toml:"strength" yaml:"strength"`
	Quality  int     `toml:"quality" yaml:"quality"`
}

// AmbientOcclusion configures ray traced ambient occlusion.
type AmbientOcclusion struct {
	Enabled  bool    `toml:"enabled" yaml:"enabled"`
	Strength float32 `toml:"strength" yaml:"strength"`
	Radius   float32 `toml:"radius" yaml:"radius"`
}

// Shadows configures ray traced shadows.
type Shadows struct {
	Enabled  bool    `toml:"enabled" yaml:"enabled"`
	Strength float32 `toml:"strength" yaml:"strength"`
	Samples  int     `toml:"samples" yaml:"samples"`
}

// Debug holds diagnostic switches.
type Debug struct {
	// ShowDebugInfo shows the renderer's debug line in the host's title bar.
	ShowDebugInfo bool `toml:"show_debug_info" yaml:"show_debug_info"`
}

// Config is the renderer configuration. The renderer reads it every frame through a pointer
// and the host may change it between frames.
type Config struct {
	EnableRayTracing bool `toml:"enable_ray_tracing" yaml:"enable_ray_tracing"`
	MaxRayBounces    int  `toml:"max_ray_bounces" yaml:"max_ray_bounces"`
	SamplesPerPixel  int  `toml:"samples_per_pixel" yaml:"samples_per_pixel"`

	// RayTracingDistance is the farthest hit a ray reports, 0 for no limit.
	RayTracingDistance float32 `toml:"ray_tracing_distance" yaml:"ray_tracing_distance"`

	GlobalIllumination GlobalIllumination `toml:"global_illumination" yaml:"global_illumination"`
	Reflections        Reflections        `toml:"reflections" yaml:"reflections"`
	AmbientOcclusion   AmbientOcclusion   `toml:"ambient_occlusion" yaml:"ambient_occlusion"`
	Shadows            Shadows            `toml:"shadows" yaml:"shadows"`

	// EnableTemporalUpsampling runs the upscaling pass before tone mapping.
	EnableTemporalUpsampling bool `toml:"enable_temporal_upsampling" yaml:"enable_temporal_upsampling"`

	// RenderScale is the frame buffer size in percent of the window size.
	RenderScale int `toml:"render_scale" yaml:"render_scale"`

	// HDR selects a 16-bit float color attachment.
	HDR bool `toml:"hdr" yaml:"hdr"`

	Debug Debug `toml:"debug" yaml:"debug"`

	// ShaderDir is an optional directory layered over the built-in shaders. Setting it enables
	// hot reload of edited shaders.
	ShaderDir string `toml:"shader_dir,omitempty" yaml:"shader_dir,omitempty"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// Default returns a configuration holding the default settings.
func Default() *Config {
	c := &Config{}
	c.ResetToDefaults()
	return c
}

// ResetToDefaults restores every setting to its default value.
func (c *Config) ResetToDefaults() {
	*c = Config{
		EnableRayTracing:   false,
		MaxRayBounces:      3,
		SamplesPerPixel:    4,
		RayTracingDistance: 128,
		GlobalIllumination: GlobalIllumination{Enabled: true, Strength: 1, Samples: 16},
		Reflections:        Reflections{Enabled: true, Strength: 1, Quality: 1},
		AmbientOcclusion:   AmbientOcclusion{Enabled: true, Strength: 0.8, Radius: 2},
		Shadows:            Shadows{Enabled: true, Strength: 1, Samples: 8},

		RenderScale: 100,
		HDR:         true,
		LogLevel:    "info",
	}
}

// SetMaxRayBounces sets the bounce limit clamped to [MinRayBounces, MaxRayBounces].
func (c *Config) SetMaxRayBounces(n int) {
	c.MaxRayBounces = max(MinRayBounces, min(n, MaxRayBounces))
}

// SetSamplesPerPixel sets the sample count clamped to [MinSamplesPerPixel, MaxSamplesPerPixel].
func (c *Config) SetSamplesPerPixel(n int) {
	c.SamplesPerPixel = max(MinSamplesPerPixel, min(n, MaxSamplesPerPixel))
}

// ToggleRayTracing flips EnableRayTracing and returns the new value.
func (c *Config) ToggleRayTracing() bool {
	c.EnableRayTracing = !c.EnableRayTracing
	return c.EnableRayTracing
}

// ScaledSize applies RenderScale to a window size. Each dimension is at least 1.
//
// Parameters:
//   - width: the window width in pixels
//   - height: the window height in pixels
//
// Returns:
//   - int: the scaled width
//   - int: the scaled height
func (c *Config) ScaledSize(width, height int) (int, int) {
	scale := c.RenderScale
	if scale <= 0 {
		scale = 100
	}
	return max(width*scale/100, 1), max(height*scale/100, 1)
}

// Level parses LogLevel.
//
// Returns:
//   - slog.Level: the parsed level, info when LogLevel is empty
//   - error: an error if LogLevel is not a known level
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Validate clamps out of range settings to their limits.
//
// Returns:
//   - error: an error for settings that cannot be clamped, such as an unknown log level
func (c *Config) Validate() error {
	c.SetMaxRayBounces(c.MaxRayBounces)
	c.SetSamplesPerPixel(c.SamplesPerPixel)
	if c.RenderScale <= 0 {
		c.RenderScale = 100
	}
	c.Reflections.Quality = max(0, min(c.Reflections.Quality, 2))
	_, err := c.Level()
	return err
}

// format selects the codec for path by extension.
type format int

const (
	formatTOML format = iota
	formatYAML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("unsupported config format %q, use .toml, .yaml or .yml", filepath.Ext(path))
	}
}

// Load reads a configuration file. Settings absent from the file keep their defaults.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//
// Returns:
//   - *Config: the loaded configuration, the defaults when the file does not exist
//   - error: an error wrapping fs.ErrNotExist for a missing file, or a read, decode or
//     validation error
func Load(path string) (*Config, error) {
	c := Default()
	f, err := formatOf(path)
	if err != nil {
		return c, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}

	switch f {
	case formatTOML:
		err = toml.Unmarshal(data, c)
	case formatYAML:
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return c, c.Validate()
}

// LoadOrDefault is Load that treats a missing file as the default configuration.
func LoadOrDefault(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	return c, err
}

// Save writes the configuration, creating parent directories as needed.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//
// Returns:
//   - error: an encode or write error
func (c *Config) Save(path string) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch f {
	case formatTOML:
		data, err = toml.Marshal(c)
	case formatYAML:
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
