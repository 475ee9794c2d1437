package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ThumbnailConfig controls grid cell geometry.
type ThumbnailConfig struct {
	AspectWidth  int `yaml:"aspect_width"`
	AspectHeight int `yaml:"aspect_height"`
	MinWidth     int `yaml:"min_width"`
	MaxWidth     int `yaml:"max_width"`
	Gap          int `yaml:"gap"`
}

// ViewportConfig fixes the grid viewport. Zero values use the active display.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// HotkeyConfig holds global shortcuts registered by the daemon. An empty
// value disables that shortcut.
type HotkeyConfig struct {
	Pick      string `yaml:"pick"`
	MovieMode string `yaml:"movie_mode"`
	Pause     string `yaml:"pause"`
}

// LoggingConfig configures the board event log.
type LoggingConfig struct {
	// Enabled turns file logging on/off; the in-memory ring is always kept
	Enabled bool `yaml:"enabled,omitempty"`
	// File is the log file path (default: ~/.local/share/pipgrid/events.log)
	File string `yaml:"file,omitempty"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `yaml:"max_size_mb,omitempty"`
	// MaxFiles is the number of rotated files to keep (default: 3)
	MaxFiles int `yaml:"max_files,omitempty"`
	// RingSize is how many recent lines GET_LOGS can return (default: 200)
	RingSize int `yaml:"ring_size,omitempty"`
}

// Config is the effective daemon configuration.
type Config struct {
	GridColumns        int             `yaml:"grid_columns"`
	CaptureFPS         int             `yaml:"capture_fps"`
	MovieFPS           int             `yaml:"movie_fps"`
	MovieMode          bool            `yaml:"movie_mode"`
	AutoMinimize       bool            `yaml:"auto_minimize"`
	FailureThreshold   int             `yaml:"failure_threshold"`
	GoneThreshold      int             `yaml:"gone_threshold"`
	LivenessIntervalMS int             `yaml:"liveness_interval_ms"`
	CPUIntervalMS      int             `yaml:"cpu_interval_ms"`
	RenderFPS          int             `yaml:"render_fps"`
	ResampleFilter     string          `yaml:"resample_filter"`
	Thumbnail          ThumbnailConfig `yaml:"thumbnail"`
	Viewport           ViewportConfig  `yaml:"viewport"`
	Hotkeys            HotkeyConfig    `yaml:"hotkeys"`
	PaletteBackend     string          `yaml:"palette_backend"`
	LogLevel           string          `yaml:"log_level"`
	Logging            LoggingConfig   `yaml:"logging,omitempty"`
	ExcludeTitles      []string        `yaml:"exclude_titles"`
}

// DefaultTUITitle is the terminal title set by `pipgrid tui`; it is
// excluded from candidate windows by default.
const DefaultTUITitle = "pipgrid"

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		GridColumns:        5,
		CaptureFPS:         20,
		MovieFPS:           5,
		MovieMode:          false,
		AutoMinimize:       true,
		FailureThreshold:   10,
		GoneThreshold:      3,
		LivenessIntervalMS: 500,
		CPUIntervalMS:      1000,
		RenderFPS:          30,
		ResampleFilter:     "approx-bilinear",
		Thumbnail: ThumbnailConfig{
			AspectWidth:  4,
			AspectHeight: 3,
			MinWidth:     180,
			MaxWidth:     600,
			Gap:          12,
		},
		Hotkeys: HotkeyConfig{
			Pick:      "Mod4-Shift-p",
			MovieMode: "Mod4-Shift-m",
			Pause:     "",
		},
		PaletteBackend: "auto",
		LogLevel:       "info",
		ExcludeTitles:  []string{DefaultTUITitle},
	}
}

// LivenessInterval returns the liveness poll interval.
func (c *Config) LivenessInterval() time.Duration {
	return time.Duration(c.LivenessIntervalMS) * time.Millisecond
}

// CPUInterval returns the resource sampling interval.
func (c *Config) CPUInterval() time.Duration {
	return time.Duration(c.CPUIntervalMS) * time.Millisecond
}

// RenderInterval returns the presentation tick interval.
func (c *Config) RenderInterval() time.Duration {
	return time.Second / time.Duration(c.RenderFPS)
}

// IsExcludedTitle reports whether a window title matches exclude_titles
// (case-insensitive substring).
func (c *Config) IsExcludedTitle(title string) bool {
	t := strings.ToLower(title)
	for _, ex := range c.ExcludeTitles {
		ex = strings.ToLower(strings.TrimSpace(ex))
		if ex != "" && strings.Contains(t, ex) {
			return true
		}
	}
	return false
}

// GetLoggingConfig returns the logging configuration with defaults applied.
func (c *Config) GetLoggingConfig() LoggingConfig {
	if c == nil {
		return LoggingConfig{}
	}
	cfg := c.Logging
	if cfg.File == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			home = os.Getenv("HOME")
		}
		if home == "" {
			home = "."
		}
		cfg.File = filepath.Join(home, ".local/share/pipgrid/events.log")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 3
	}
	if cfg.RingSize == 0 {
		cfg.RingSize = 200
	}
	return cfg
}

// Save writes the configuration to the standard location.
//
// Note: this marshals the effective config and will not preserve comments
// from the original YAML.
func (c *Config) Save() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var resampleFilters = []string{"nearest", "approx-bilinear", "bilinear", "catmull-rom"}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.GridColumns < 3 || c.GridColumns > 5 {
		return &ValidationError{Path: "grid_columns", Err: fmt.Errorf("grid_columns must be between 3 and 5")}
	}
	if c.CaptureFPS < 1 || c.CaptureFPS > 60 {
		return &ValidationError{Path: "capture_fps", Err: fmt.Errorf("capture_fps must be between 1 and 60")}
	}
	if c.MovieFPS < 1 || c.MovieFPS > c.CaptureFPS {
		return &ValidationError{Path: "movie_fps", Err: fmt.Errorf("movie_fps must be between 1 and capture_fps (%d)", c.CaptureFPS)}
	}
	if c.FailureThreshold < 1 {
		return &ValidationError{Path: "failure_threshold", Err: fmt.Errorf("failure_threshold must be >= 1")}
	}
	if c.GoneThreshold < 1 {
		return &ValidationError{Path: "gone_threshold", Err: fmt.Errorf("gone_threshold must be >= 1")}
	}
	if c.LivenessIntervalMS < 50 {
		return &ValidationError{Path: "liveness_interval_ms", Err: fmt.Errorf("liveness_interval_ms must be >= 50")}
	}
	if c.CPUIntervalMS < 100 {
		return &ValidationError{Path: "cpu_interval_ms", Err: fmt.Errorf("cpu_interval_ms must be >= 100")}
	}
	if c.RenderFPS < 1 || c.RenderFPS > 120 {
		return &ValidationError{Path: "render_fps", Err: fmt.Errorf("render_fps must be between 1 and 120")}
	}
	if !contains(resampleFilters, c.ResampleFilter) {
		return &ValidationError{Path: "resample_filter", Err: fmt.Errorf("resample_filter must be one of: %s", strings.Join(resampleFilters, ", "))}
	}

	t := c.Thumbnail
	if t.AspectWidth < 1 || t.AspectHeight < 1 {
		return &ValidationError{Path: "thumbnail", Err: fmt.Errorf("aspect_width and aspect_height must be >= 1")}
	}
	if t.MinWidth < 16 {
		return &ValidationError{Path: "thumbnail.min_width", Err: fmt.Errorf("min_width must be >= 16")}
	}
	if t.MaxWidth < t.MinWidth {
		return &ValidationError{Path: "thumbnail.max_width", Err: fmt.Errorf("max_width must be >= min_width")}
	}
	if t.Gap < 0 {
		return &ValidationError{Path: "thumbnail.gap", Err: fmt.Errorf("gap must be >= 0")}
	}
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		return &ValidationError{Path: "viewport", Err: fmt.Errorf("viewport values must be >= 0")}
	}

	switch c.PaletteBackend {
	case "auto", "rofi", "fuzzel", "dmenu", "wofi":
	default:
		return &ValidationError{Path: "palette_backend", Err: fmt.Errorf("palette_backend must be one of: auto, rofi, fuzzel, dmenu, wofi")}
	}
	if c.LogLevel != "debug" && c.LogLevel != "info" && c.LogLevel != "warning" && c.LogLevel != "error" {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 || c.Logging.RingSize < 0 {
		return &ValidationError{Path: "logging", Err: fmt.Errorf("logging sizes must be >= 0")}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
