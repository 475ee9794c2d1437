package config

// RawConfig mirrors Config with optional fields so that only keys present
// in the file override defaults.
type RawConfig struct {
	GridColumns        *int                `yaml:"grid_columns"`
	CaptureFPS         *int                `yaml:"capture_fps"`
	MovieFPS           *int                `yaml:"movie_fps"`
	MovieMode          *bool               `yaml:"movie_mode"`
	AutoMinimize       *bool               `yaml:"auto_minimize"`
	FailureThreshold   *int                `yaml:"failure_threshold"`
	GoneThreshold      *int                `yaml:"gone_threshold"`
	LivenessIntervalMS *int                `yaml:"liveness_interval_ms"`
	CPUIntervalMS      *int                `yaml:"cpu_interval_ms"`
	RenderFPS          *int                `yaml:"render_fps"`
	ResampleFilter     *string             `yaml:"resample_filter"`
	Thumbnail          *RawThumbnailConfig `yaml:"thumbnail"`
	Viewport           *RawViewportConfig  `yaml:"viewport"`
	Hotkeys            *RawHotkeyConfig    `yaml:"hotkeys"`
	PaletteBackend     *string             `yaml:"palette_backend"`
	LogLevel           *string             `yaml:"log_level"`
	Logging            *RawLoggingConfig   `yaml:"logging"`
	ExcludeTitles      *[]string           `yaml:"exclude_titles"`
}

type RawThumbnailConfig struct {
	AspectWidth  *int `yaml:"aspect_width"`
	AspectHeight *int `yaml:"aspect_height"`
	MinWidth     *int `yaml:"min_width"`
	MaxWidth     *int `yaml:"max_width"`
	Gap          *int `yaml:"gap"`
}

type RawViewportConfig struct {
	Width  *int `yaml:"width"`
	Height *int `yaml:"height"`
}

type RawHotkeyConfig struct {
	Pick      *string `yaml:"pick"`
	MovieMode *string `yaml:"movie_mode"`
	Pause     *string `yaml:"pause"`
}

type RawLoggingConfig struct {
	Enabled   *bool   `yaml:"enabled"`
	File      *string `yaml:"file"`
	MaxSizeMB *int    `yaml:"max_size_mb"`
	MaxFiles  *int    `yaml:"max_files"`
	RingSize  *int    `yaml:"ring_size"`
}
