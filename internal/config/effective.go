package config

import (
	"fmt"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildEffectiveConfig overlays raw on the defaults.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	setInt(&cfg.GridColumns, raw.GridColumns)
	setInt(&cfg.CaptureFPS, raw.CaptureFPS)
	setInt(&cfg.MovieFPS, raw.MovieFPS)
	setBool(&cfg.MovieMode, raw.MovieMode)
	setBool(&cfg.AutoMinimize, raw.AutoMinimize)
	setInt(&cfg.FailureThreshold, raw.FailureThreshold)
	setInt(&cfg.GoneThreshold, raw.GoneThreshold)
	setInt(&cfg.LivenessIntervalMS, raw.LivenessIntervalMS)
	setInt(&cfg.CPUIntervalMS, raw.CPUIntervalMS)
	setInt(&cfg.RenderFPS, raw.RenderFPS)
	setString(&cfg.ResampleFilter, raw.ResampleFilter)
	setString(&cfg.PaletteBackend, raw.PaletteBackend)
	setString(&cfg.LogLevel, raw.LogLevel)

	if t := raw.Thumbnail; t != nil {
		setInt(&cfg.Thumbnail.AspectWidth, t.AspectWidth)
		setInt(&cfg.Thumbnail.AspectHeight, t.AspectHeight)
		setInt(&cfg.Thumbnail.MinWidth, t.MinWidth)
		setInt(&cfg.Thumbnail.MaxWidth, t.MaxWidth)
		setInt(&cfg.Thumbnail.Gap, t.Gap)
	}
	if v := raw.Viewport; v != nil {
		setInt(&cfg.Viewport.Width, v.Width)
		setInt(&cfg.Viewport.Height, v.Height)
	}
	if h := raw.Hotkeys; h != nil {
		setString(&cfg.Hotkeys.Pick, h.Pick)
		setString(&cfg.Hotkeys.MovieMode, h.MovieMode)
		setString(&cfg.Hotkeys.Pause, h.Pause)
	}
	if l := raw.Logging; l != nil {
		setBool(&cfg.Logging.Enabled, l.Enabled)
		setString(&cfg.Logging.File, l.File)
		setInt(&cfg.Logging.MaxSizeMB, l.MaxSizeMB)
		setInt(&cfg.Logging.MaxFiles, l.MaxFiles)
		setInt(&cfg.Logging.RingSize, l.RingSize)
	}
	if raw.ExcludeTitles != nil {
		cfg.ExcludeTitles = append([]string(nil), (*raw.ExcludeTitles)...)
	}

	return cfg
}

func setInt(dst *int, p *int) {
	if p != nil {
		*dst = *p
	}
}

func setBool(dst *bool, p *bool) {
	if p != nil {
		*dst = *p
	}
}

func setString(dst *string, p *string) {
	if p != nil {
		*dst = *p
	}
}
