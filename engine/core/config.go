package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProjectName    = "Vent Project"
	DefaultAppID          = "com.ventengine.VentEngine"
	DefaultWindowWidth    = 800
	DefaultWindowHeight   = 600
	DefaultFramesInFlight = 3
	DefaultLogLevel       = "info"
)

// Size is an optional window size constraint. A zero dimension means unconstrained.
type Size struct {
	Width  uint32 `toml:"width" yaml:"width"`
	Height uint32 `toml:"height" yaml:"height"`
}

type WindowConfig struct {
	Title         string `toml:"title" yaml:"title"`
	AppID         string `toml:"app_id" yaml:"app_id"`
	Width         uint32 `toml:"width" yaml:"width"`
	Height        uint32 `toml:"height" yaml:"height"`
	Mode          string `toml:"mode" yaml:"mode"`
	MinSize       *Size  `toml:"min_size" yaml:"min_size"`
	MaxSize       *Size  `toml:"max_size" yaml:"max_size"`
	CloseOnEscape *bool  `toml:"close_on_escape" yaml:"close_on_escape"` // pointer to distinguish unset vs false
}

type RendererConfig struct {
	FramesInFlight uint32 `toml:"frames_in_flight" yaml:"frames_in_flight"`
	// Use host-memory resources instead of a Vulkan device.
	Headless bool `toml:"headless" yaml:"headless"`
}

type AssetsConfig struct {
	Dir   string `toml:"dir" yaml:"dir"`
	Model string `toml:"model" yaml:"model"`
	Watch bool   `toml:"watch" yaml:"watch"`
}

// ProjectConfig is the runtime configuration of a project, usually loaded from
// vent.toml (or vent.yaml) at the project root.
type ProjectConfig struct {
	Name     string         `toml:"name" yaml:"name"`
	LogLevel string         `toml:"log_level" yaml:"log_level"`
	Window   WindowConfig   `toml:"window" yaml:"window"`
	Renderer RendererConfig `toml:"renderer" yaml:"renderer"`
	Assets   AssetsConfig   `toml:"assets" yaml:"assets"`
}

func DefaultProjectConfig() *ProjectConfig {
	closeOnEscape := true
	return &ProjectConfig{
		Name:     DefaultProjectName,
		LogLevel: DefaultLogLevel,
		Window: WindowConfig{
			Title:         DefaultProjectName,
			AppID:         DefaultAppID,
			Width:         DefaultWindowWidth,
			Height:        DefaultWindowHeight,
			Mode:          "windowed",
			CloseOnEscape: &closeOnEscape,
		},
		Renderer: RendererConfig{
			FramesInFlight: DefaultFramesInFlight,
		},
		Assets: AssetsConfig{
			Dir: "assets",
		},
	}
}

// LoadProjectConfig reads the configuration at path. The format is chosen by
// extension: .toml, .yaml or .yml. Missing fields keep their defaults.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading project config %s: %w", ErrIO, path, err)
	}
	return ParseProjectConfig(data, filepath.Ext(path))
}

// ParseProjectConfig decodes data in the format named by ext.
func ParseProjectConfig(data []byte, ext string) (*ProjectConfig, error) {
	cfg := DefaultProjectConfig()

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: project config: %w", ErrParse, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: project config: %w", ErrParse, err)
		}
	default:
		return nil, fmt.Errorf("%w: project config extension %q", ErrUnsupportedFormat, ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var errInvalidConfig = errors.New("invalid project config")

// Validate fills zero values with defaults and rejects inconsistent settings.
func (c *ProjectConfig) Validate() error {
	if c.Window.Width == 0 {
		c.Window.Width = DefaultWindowWidth
	}
	if c.Window.Height == 0 {
		c.Window.Height = DefaultWindowHeight
	}
	if c.Window.Title == "" {
		c.Window.Title = c.Name
	}
	if c.Window.AppID == "" {
		c.Window.AppID = DefaultAppID
	}
	if c.Renderer.FramesInFlight == 0 {
		c.Renderer.FramesInFlight = DefaultFramesInFlight
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Window.CloseOnEscape == nil {
		closeOnEscape := true
		c.Window.CloseOnEscape = &closeOnEscape
	}
	if min, max := c.Window.MinSize, c.Window.MaxSize; min != nil && max != nil {
		if (max.Width != 0 && min.Width > max.Width) || (max.Height != 0 && min.Height > max.Height) {
			return fmt.Errorf("%w: min_size %dx%d exceeds max_size %dx%d", errInvalidConfig, min.Width, min.Height, max.Width, max.Height)
		}
	}
	return nil
}
