package ipc

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload          CommandType = "RELOAD"
	CommandGetStatus       CommandType = "GET_STATUS"
	CommandGetBoard        CommandType = "GET_BOARD"
	CommandGetThumbnail    CommandType = "GET_THUMBNAIL"
	CommandListCandidates  CommandType = "LIST_CANDIDATES"
	CommandAddWindow       CommandType = "ADD_WINDOW"
	CommandRemoveWindow    CommandType = "REMOVE_WINDOW"
	CommandReorder         CommandType = "REORDER"
	CommandClick           CommandType = "CLICK"
	CommandSetColumns      CommandType = "SET_COLUMNS"
	CommandSetMovieMode    CommandType = "SET_MOVIE_MODE"
	CommandSetAutoMinimize CommandType = "SET_AUTO_MINIMIZE"
	CommandSetPaused       CommandType = "SET_PAUSED"
	CommandGetLogs         CommandType = "GET_LOGS"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	DaemonRunning bool   `json:"daemon_running"`
	Monitored     int    `json:"monitored"`
	Columns       int    `json:"columns"`
	MovieMode     bool   `json:"movie_mode"`
	Paused        bool   `json:"paused"`
	AutoMinimize  bool   `json:"auto_minimize"`
	Focus         string `json:"focus"`
	CacheFrames   int    `json:"cache_frames"`
	CacheBytes    uint64 `json:"cache_bytes"`
	Resamples     uint64 `json:"resamples"`
	Reuses        uint64 `json:"reuses"`
}

// TileInfo is one grid cell in GET_BOARD.
type TileInfo struct {
	ID           uint32    `json:"id"`
	Title        string    `json:"title"`
	PID          int       `json:"pid"`
	OrderIndex   int       `json:"order_index"`
	Row          int       `json:"row"`
	Col          int       `json:"col"`
	X            int       `json:"x"`
	Y            int       `json:"y"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	State        string    `json:"state"`
	Expanded     bool      `json:"expanded"`
	Placeholder  bool      `json:"placeholder"`
	CPU          string    `json:"cpu"`
	CPUPercent   float64   `json:"cpu_percent"`
	CPUAvailable bool      `json:"cpu_available"`
	FPS          float64   `json:"fps"`
	Captures     uint64    `json:"captures"`
	Failures     uint64    `json:"failures"`
	Skipped      uint64    `json:"skipped"`
	CapturedAt   time.Time `json:"captured_at,omitempty"`
}

// NoticeInfo is a user-visible notice.
type NoticeInfo struct {
	At      time.Time `json:"at"`
	ID      uint32    `json:"id,omitempty"`
	Message string    `json:"message"`
}

// BoardData represents the data returned by GET_BOARD
type BoardData struct {
	Seq            uint64       `json:"seq"`
	Columns        int          `json:"columns"`
	CellWidth      int          `json:"cell_width"`
	CellHeight     int          `json:"cell_height"`
	ViewportWidth  int          `json:"viewport_width"`
	ViewportHeight int          `json:"viewport_height"`
	Focus          string       `json:"focus"`
	ExpandedID     uint32       `json:"expanded_id,omitempty"`
	MovieMode      bool         `json:"movie_mode"`
	Paused         bool         `json:"paused"`
	AutoMinimize   bool         `json:"auto_minimize"`
	Tiles          []TileInfo   `json:"tiles"`
	Notices        []NoticeInfo `json:"notices,omitempty"`
}

// CandidateInfo is a window that can be added to the grid.
type CandidateInfo struct {
	ID        uint32 `json:"id"`
	PID       int    `json:"pid"`
	AppID     string `json:"app_id,omitempty"`
	Title     string `json:"title"`
	Monitored bool   `json:"monitored"`
}

// CandidatesData represents the data returned by LIST_CANDIDATES
type CandidatesData struct {
	Windows []CandidateInfo `json:"windows"`
}

// ThumbnailData carries a PNG-encoded frame, base64 in JSON.
type ThumbnailData struct {
	ID         uint32    `json:"id"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
	PNG        []byte    `json:"png"`
}

// ClickData is the focus state after CLICK.
type ClickData struct {
	Focus      string `json:"focus"`
	ExpandedID uint32 `json:"expanded_id,omitempty"`
}

// ReorderData reports whether REORDER moved anything.
type ReorderData struct {
	Moved bool `json:"moved"`
}

// LogsData represents the data returned by GET_LOGS
type LogsData struct {
	Lines []string `json:"lines"`
}

// WindowPayload addresses one window.
type WindowPayload struct {
	ID uint32 `json:"id"`
}

// ThumbnailPayload requests a thumbnail. Full asks for the unscaled capture.
type ThumbnailPayload struct {
	ID   uint32 `json:"id"`
	Full bool   `json:"full,omitempty"`
}

type ReorderPayload struct {
	ID        uint32 `json:"id"`
	Direction string `json:"direction"` // "up" or "down"
}

type ColumnsPayload struct {
	Columns int `json:"columns"`
}

// TogglePayload is shared by the SET_* boolean commands.
type TogglePayload struct {
	Enabled bool `json:"enabled"`
}

type LogsPayload struct {
	Lines int `json:"lines,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
