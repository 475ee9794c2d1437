package mcp

import "time"

// ListCandidatesInput is the input for the list_candidates tool.
type ListCandidatesInput struct {
	IncludeMonitored bool `json:"include_monitored,omitempty" jsonschema:"Also list windows already on the grid (default: false)"`
}

// WindowInfo describes a window that can be put on the grid.
type WindowInfo struct {
	WindowID  uint32 `json:"window_id"`
	PID       int    `json:"pid"`
	AppID     string `json:"app_id,omitempty"`
	Title     string `json:"title"`
	Monitored bool   `json:"monitored"`
}

// ListCandidatesOutput is the output for the list_candidates tool.
type ListCandidatesOutput struct {
	Windows []WindowInfo `json:"windows"`
}

// ListMonitoredInput is the input for the list_monitored tool.
type ListMonitoredInput struct{}

// TileSummary describes one window on the grid.
type TileSummary struct {
	WindowID   uint32    `json:"window_id"`
	Title      string    `json:"title"`
	PID        int       `json:"pid"`
	Position   int       `json:"position"`
	Row        int       `json:"row"`
	Col        int       `json:"col"`
	State      string    `json:"state"`
	Expanded   bool      `json:"expanded"`
	CPU        string    `json:"cpu"`
	FPS        float64   `json:"fps"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

// ListMonitoredOutput is the output for the list_monitored tool.
type ListMonitoredOutput struct {
	Columns      int           `json:"columns"`
	Focus        string        `json:"focus"`
	MovieMode    bool          `json:"movie_mode"`
	Paused       bool          `json:"paused"`
	AutoMinimize bool          `json:"auto_minimize"`
	Windows      []TileSummary `json:"windows"`
	Notices      []string      `json:"notices,omitempty"`
}

// AddWindowInput is the input for the add_window tool.
type AddWindowInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"Window id from list_candidates"`
	Expand   bool   `json:"expand,omitempty" jsonschema:"Bring the window to the foreground right after adding it"`
}

// AddWindowOutput is the output for the add_window tool.
type AddWindowOutput struct {
	WindowID uint32 `json:"window_id"`
	Title    string `json:"title"`
	PID      int    `json:"pid"`
	Focus    string `json:"focus,omitempty"`
}

// WindowInput addresses one monitored window.
type WindowInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"Window id of a monitored window"`
}

// RemoveWindowOutput is the output for the remove_window tool.
type RemoveWindowOutput struct {
	WindowID uint32 `json:"window_id"`
	Removed  bool   `json:"removed"`
}

// ExpandWindowOutput is the output for the expand_window tool.
type ExpandWindowOutput struct {
	Focus      string `json:"focus"`
	ExpandedID uint32 `json:"expanded_id,omitempty"`
	Changed    bool   `json:"changed"`
}

// GetThumbnailInput is the input for the get_thumbnail tool.
type GetThumbnailInput struct {
	WindowID uint32 `json:"window_id" jsonschema:"Window id of a monitored window"`
	Full     bool   `json:"full,omitempty" jsonschema:"Return the full-resolution capture instead of the grid-sized thumbnail"`
}

// GetThumbnailOutput is the output for the get_thumbnail tool. The image
// itself is returned as image content.
type GetThumbnailOutput struct {
	WindowID   uint32    `json:"window_id"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// SetMovieModeInput is the input for the set_movie_mode tool.
type SetMovieModeInput struct {
	Enabled bool `json:"enabled" jsonschema:"true lowers the capture rate for every window"`
}

// SetMovieModeOutput is the output for the set_movie_mode tool.
type SetMovieModeOutput struct {
	MovieMode bool `json:"movie_mode"`
}
