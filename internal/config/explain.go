package config

import (
	"fmt"
	"strings"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Supported paths are the top-level keys plus:
//
//	thumbnail.<aspect_width|aspect_height|min_width|max_width|gap>
//	viewport.<width|height>
//	hotkeys.<pick|movie_mode|pause>
//	logging.<enabled|file|max_size_mb|max_files|ring_size>
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("unknown path %q", path)
	}

	if len(parts) == 1 {
		switch parts[0] {
		case "grid_columns":
			return cfg.GridColumns, nil
		case "capture_fps":
			return cfg.CaptureFPS, nil
		case "movie_fps":
			return cfg.MovieFPS, nil
		case "movie_mode":
			return cfg.MovieMode, nil
		case "auto_minimize":
			return cfg.AutoMinimize, nil
		case "failure_threshold":
			return cfg.FailureThreshold, nil
		case "gone_threshold":
			return cfg.GoneThreshold, nil
		case "liveness_interval_ms":
			return cfg.LivenessIntervalMS, nil
		case "cpu_interval_ms":
			return cfg.CPUIntervalMS, nil
		case "render_fps":
			return cfg.RenderFPS, nil
		case "resample_filter":
			return cfg.ResampleFilter, nil
		case "palette_backend":
			return cfg.PaletteBackend, nil
		case "log_level":
			return cfg.LogLevel, nil
		case "exclude_titles":
			return cfg.ExcludeTitles, nil
		case "thumbnail":
			return cfg.Thumbnail, nil
		case "viewport":
			return cfg.Viewport, nil
		case "hotkeys":
			return cfg.Hotkeys, nil
		case "logging":
			return cfg.GetLoggingConfig(), nil
		}
		return nil, fmt.Errorf("unknown path %q", path)
	}

	switch parts[0] {
	case "thumbnail":
		t := cfg.Thumbnail
		switch parts[1] {
		case "aspect_width":
			return t.AspectWidth, nil
		case "aspect_height":
			return t.AspectHeight, nil
		case "min_width":
			return t.MinWidth, nil
		case "max_width":
			return t.MaxWidth, nil
		case "gap":
			return t.Gap, nil
		}
	case "viewport":
		switch parts[1] {
		case "width":
			return cfg.Viewport.Width, nil
		case "height":
			return cfg.Viewport.Height, nil
		}
	case "hotkeys":
		switch parts[1] {
		case "pick":
			return cfg.Hotkeys.Pick, nil
		case "movie_mode":
			return cfg.Hotkeys.MovieMode, nil
		case "pause":
			return cfg.Hotkeys.Pause, nil
		}
	case "logging":
		l := cfg.GetLoggingConfig()
		switch parts[1] {
		case "enabled":
			return l.Enabled, nil
		case "file":
			return l.File, nil
		case "max_size_mb":
			return l.MaxSizeMB, nil
		case "max_files":
			return l.MaxFiles, nil
		case "ring_size":
			return l.RingSize, nil
		}
	}
	return nil, fmt.Errorf("unknown path %q", path)
}
