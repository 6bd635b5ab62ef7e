// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the YAML configuration of the tile demo and maps it
// onto package options.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/backingstore/raster"
	"github.com/gogpu/backingstore/schedule"
	"github.com/gogpu/backingstore/texture"
	"github.com/gogpu/backingstore/tile"
)

// ErrInvalidConfig is returned for configurations that fail validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Demo sinks.
const (
	// SinkCPU composites into an in-memory framebuffer.
	SinkCPU = "cpu"
	// SinkGPU composites through the HAL on the software backend.
	SinkGPU = "gpu"
)

// Config is the root configuration document.
type Config struct {
	Pool      Pool      `yaml:"pool"`
	Scheduler Scheduler `yaml:"scheduler"`
	Surface   Surface   `yaml:"surface"`
	Demo      Demo      `yaml:"demo"`
}

// Pool configures the texture pool.
type Pool struct {
	Slots      int  `yaml:"slots"`
	TileWidth  int  `yaml:"tile_width"`
	TileHeight int  `yaml:"tile_height"`
	Mode       Mode `yaml:"mode"`
}

// Scheduler configures the paint scheduler.
type Scheduler struct {
	// Workers is the number of paint workers; 0 selects GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// Surface describes the tiled surface.
type Surface struct {
	Columns int     `yaml:"columns"`
	Rows    int     `yaml:"rows"`
	Scale   float64 `yaml:"scale"`
	Layer   bool    `yaml:"layer"`
}

// Demo holds settings of the demo command itself.
type Demo struct {
	Frames     int    `yaml:"frames"`
	Indicator  bool   `yaml:"indicator"`
	Background string `yaml:"background"`
	LogLevel   string `yaml:"log_level"`
	Sink       string `yaml:"sink"`
}

// Mode is a texture.SharingMode that reads and writes its string form.
type Mode texture.SharingMode

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: mode must be a string", ErrInvalidConfig, value.Line)
	}
	parsed, err := texture.ParseMode(value.Value)
	if err != nil {
		return fmt.Errorf("%w: line %d: %w", ErrInvalidConfig, value.Line, err)
	}
	*m = Mode(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (m Mode) MarshalYAML() (any, error) {
	return texture.SharingMode(m).String(), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pool: Pool{
			Slots:      24,
			TileWidth:  texture.DefaultTileSize,
			TileHeight: texture.DefaultTileSize,
			Mode:       Mode(texture.ModeExclusive),
		},
		Surface: Surface{
			Columns: 4,
			Rows:    3,
			Scale:   1,
		},
		Demo: Demo{
			Frames:     60,
			Indicator:  true,
			Background: "#ffffff",
			LogLevel:   "info",
			Sink:       SinkCPU,
		},
	}
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Validate checks every field.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}
	check(c.Pool.Slots > 0, "pool.slots must be positive, got %d", c.Pool.Slots)
	check(c.Pool.TileWidth > 0 && c.Pool.TileHeight > 0,
		"pool tile size must be positive, got %dx%d", c.Pool.TileWidth, c.Pool.TileHeight)
	check(c.Scheduler.Workers >= 0, "scheduler.workers must not be negative, got %d", c.Scheduler.Workers)
	check(c.Surface.Columns > 0 && c.Surface.Rows > 0,
		"surface grid must be positive, got %dx%d", c.Surface.Columns, c.Surface.Rows)
	check(c.Surface.Scale > 0, "surface.scale must be positive, got %g", c.Surface.Scale)
	check(c.Demo.Frames > 0, "demo.frames must be positive, got %d", c.Demo.Frames)
	check(c.Demo.Sink == SinkCPU || c.Demo.Sink == SinkGPU,
		"demo.sink must be %q or %q, got %q", SinkCPU, SinkGPU, c.Demo.Sink)
	if _, err := ParseColor(c.Demo.Background); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLevel(c.Demo.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SharingMode returns the configured pool mode.
func (c Config) SharingMode() texture.SharingMode {
	return texture.SharingMode(c.Pool.Mode)
}

// PoolOptions returns the texture pool options for c.
func (c Config) PoolOptions() []texture.PoolOption {
	return []texture.PoolOption{
		texture.WithMode(c.SharingMode()),
		texture.WithTileSize(c.Pool.TileWidth, c.Pool.TileHeight),
	}
}

// SchedulerOptions returns the scheduler options for c.
func (c Config) SchedulerOptions() []schedule.Option {
	return []schedule.Option{schedule.WithWorkers(c.Scheduler.Workers)}
}

// TileOptions returns the options every tile of the surface is created with.
func (c Config) TileOptions(r tile.Renderer) []tile.Option {
	return []tile.Option{
		tile.WithRenderer(r),
		tile.WithLayer(c.Surface.Layer),
		tile.WithMeasurePerf(c.Demo.Indicator),
	}
}

// RendererOptions returns the software renderer options for c.
// Validate must have accepted c.
func (c Config) RendererOptions() []raster.Option {
	bg, _ := ParseColor(c.Demo.Background)
	return []raster.Option{
		raster.WithBackground(bg),
		raster.WithIndicator(c.Demo.Indicator),
	}
}

// ParseColor parses "#rgb", "#rrggbb" or "#rrggbbaa". An empty string is
// transparent.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.RGBA{}, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("%w: color %q must start with #", ErrInvalidConfig, s)
	}
	var v [4]uint8
	v[3] = 0xff
	switch len(hex) {
	case 3:
		for i := range 3 {
			d, err := hexDigit(hex[i])
			if err != nil {
				return color.RGBA{}, fmt.Errorf("%w: color %q: %w", ErrInvalidConfig, s, err)
			}
			v[i] = d<<4 | d
		}
	case 6, 8:
		for i := 0; i < len(hex); i += 2 {
			hi, err := hexDigit(hex[i])
			if err != nil {
				return color.RGBA{}, fmt.Errorf("%w: color %q: %w", ErrInvalidConfig, s, err)
			}
			lo, err := hexDigit(hex[i+1])
			if err != nil {
				return color.RGBA{}, fmt.Errorf("%w: color %q: %w", ErrInvalidConfig, s, err)
			}
			v[i/2] = hi<<4 | lo
		}
	default:
		return color.RGBA{}, fmt.Errorf("%w: color %q has %d digits", ErrInvalidConfig, s, len(hex))
	}
	// Premultiply; image.RGBA stores premultiplied colors.
	a := uint16(v[3])
	return color.RGBA{
		R: uint8(uint16(v[0]) * a / 0xff),
		G: uint8(uint16(v[1]) * a / 0xff),
		B: uint8(uint16(v[2]) * a / 0xff),
		A: v[3],
	}, nil
}

func hexDigit(c byte) (uint8, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	}
	return 0, fmt.Errorf("bad hex digit %q", c)
}

// ParseLevel maps a level name to a slog.Level. An empty name is Info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return l, nil
}
