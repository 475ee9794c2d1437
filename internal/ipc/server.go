package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/pipgrid/internal/board"
	"github.com/1broseidon/pipgrid/internal/eventlog"
	"github.com/1broseidon/pipgrid/internal/focus"
	"github.com/1broseidon/pipgrid/internal/platform"
	"github.com/1broseidon/pipgrid/internal/registry"
	"github.com/1broseidon/pipgrid/internal/runtimepath"
	"github.com/1broseidon/pipgrid/internal/thumbcache"
)

const commandTimeout = 4 * time.Second

// Frames is the read side of the thumbnail cache.
type Frames interface {
	Get(handle platform.WindowID) (*thumbcache.Frame, bool)
	Stats() thumbcache.Stats
}

// ServerConfig wires the server to the running daemon.
type ServerConfig struct {
	// SocketPath overrides the runtime-dir socket.
	SocketPath string
	Board      *board.Board
	Windows    platform.WindowControl
	Frames     Frames
	Events     *eventlog.Logger
	// Exclude hides candidate windows by title.
	Exclude func(title string) bool
	// Reload re-reads configuration and applies it.
	Reload func() error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	cfg          ServerConfig
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(cfg ServerConfig) (*Server, error) {
	socketPath := cfg.SocketPath
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		cfg:        cfg,
		startTime:  time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	go s.acceptLoop()

	return nil
}

// Run starts the server and stops it when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetBoard:
		return s.handleGetBoard()
	case CommandGetThumbnail:
		return s.handleGetThumbnail(req.Payload)
	case CommandListCandidates:
		return s.handleListCandidates()
	case CommandAddWindow:
		return s.handleAddWindow(ctx, req.Payload)
	case CommandRemoveWindow:
		return s.handleRemoveWindow(ctx, req.Payload)
	case CommandReorder:
		return s.handleReorder(ctx, req.Payload)
	case CommandClick:
		return s.handleClick(ctx, req.Payload)
	case CommandSetColumns:
		return s.handleSetColumns(ctx, req.Payload)
	case CommandSetMovieMode:
		return s.handleToggle(req.Payload, func(on bool) error { return s.cfg.Board.SetMovieMode(ctx, on) })
	case CommandSetAutoMinimize:
		return s.handleToggle(req.Payload, func(on bool) error { return s.cfg.Board.SetAutoMinimize(ctx, on) })
	case CommandSetPaused:
		return s.handleToggle(req.Payload, func(on bool) error { return s.cfg.Board.SetPaused(ctx, on) })
	case CommandGetLogs:
		return s.handleGetLogs(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	log.Println("IPC: Received RELOAD command")
	if s.cfg.Reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.cfg.Reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	log.Println("IPC: Config reloaded successfully")

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleGetStatus() *Response {
	snap := s.cfg.Board.Snapshot()
	status := StatusData{
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		DaemonRunning: true,
		Monitored:     len(snap.Tiles),
		Columns:       snap.Columns,
		MovieMode:     snap.MovieMode,
		Paused:        snap.Paused,
		AutoMinimize:  snap.AutoMinimize,
		Focus:         snap.Focus.String(),
	}
	if s.cfg.Frames != nil {
		st := s.cfg.Frames.Stats()
		status.CacheFrames = st.Frames
		status.CacheBytes = st.Bytes
		status.Resamples = st.Resamples
		status.Reuses = st.Reuses
	}

	resp, _ := NewOKResponse(status)
	return resp
}

func (s *Server) handleGetBoard() *Response {
	resp, err := NewOKResponse(BoardFromSnapshot(s.cfg.Board.Snapshot()))
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// BoardFromSnapshot converts a board snapshot to its wire form.
func BoardFromSnapshot(snap *board.Snapshot) BoardData {
	data := BoardData{
		Seq:            snap.Seq,
		Columns:        snap.Columns,
		CellWidth:      snap.CellWidth,
		CellHeight:     snap.CellHeight,
		ViewportWidth:  snap.ViewportWidth,
		ViewportHeight: snap.ViewportHeight,
		Focus:          snap.Focus.Phase.String(),
		MovieMode:      snap.MovieMode,
		Paused:         snap.Paused,
		AutoMinimize:   snap.AutoMinimize,
		Tiles:          make([]TileInfo, 0, len(snap.Tiles)),
	}
	if snap.Focus.Phase == focus.PhaseExpanded {
		data.ExpandedID = uint32(snap.Focus.Window)
	}
	for _, t := range snap.Tiles {
		fps := 0.0
		if t.Cadence > 0 {
			fps = float64(time.Second) / float64(t.Cadence)
		}
		data.Tiles = append(data.Tiles, TileInfo{
			ID:           uint32(t.ID),
			Title:        t.Title,
			PID:          t.PID,
			OrderIndex:   t.OrderIndex,
			Row:          t.Cell.Row,
			Col:          t.Cell.Col,
			X:            t.Cell.Rect.X,
			Y:            t.Cell.Rect.Y,
			Width:        t.Cell.Rect.Width,
			Height:       t.Cell.Rect.Height,
			State:        t.VisualState.String(),
			Expanded:     t.Expanded,
			Placeholder:  t.Placeholder,
			CPU:          t.CPU.String(),
			CPUPercent:   t.CPU.Percent,
			CPUAvailable: t.CPU.Available,
			FPS:          fps,
			Captures:     t.Captures,
			Failures:     t.Failures,
			Skipped:      t.Skipped,
			CapturedAt:   t.CapturedAt,
		})
	}
	for _, n := range snap.Notices {
		data.Notices = append(data.Notices, NoticeInfo{At: n.At, ID: uint32(n.Window), Message: n.Message})
	}
	return data
}

func (s *Server) handleGetThumbnail(payload json.RawMessage) *Response {
	var req ThumbnailPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid thumbnail payload: %v", err))
	}
	if s.cfg.Frames == nil {
		return NewErrorResponse("thumbnails are not available")
	}

	frame, ok := s.cfg.Frames.Get(platform.WindowID(req.ID))
	if !ok {
		return NewErrorResponse(fmt.Sprintf("no frame for window %d", req.ID))
	}
	img := frame.Scaled
	if req.Full || img == nil {
		img = frame.Pixels
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to encode thumbnail: %v", err))
	}

	resp, _ := NewOKResponse(ThumbnailData{
		ID:         req.ID,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		CapturedAt: frame.CapturedAt,
		PNG:        buf.Bytes(),
	})
	return resp
}

func (s *Server) handleListCandidates() *Response {
	windows, err := s.cfg.Windows.ListWindows()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to list windows: %v", err))
	}

	snap := s.cfg.Board.Snapshot()
	data := CandidatesData{Windows: make([]CandidateInfo, 0, len(windows))}
	for _, w := range windows {
		if s.cfg.Exclude != nil && s.cfg.Exclude(w.Title) {
			continue
		}
		_, monitored := snap.Tile(w.ID)
		data.Windows = append(data.Windows, CandidateInfo{
			ID:        uint32(w.ID),
			PID:       w.PID,
			AppID:     w.AppID,
			Title:     w.Title,
			Monitored: monitored,
		})
	}

	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleAddWindow(ctx context.Context, payload json.RawMessage) *Response {
	var req WindowPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid window payload: %v", err))
	}
	w, err := s.cfg.Board.AddWindow(ctx, platform.WindowID(req.ID))
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to add window %d: %v", req.ID, err))
	}
	log.Printf("IPC: Added window %d (%s)", req.ID, w.DisplayName)

	resp, _ := NewOKResponse(CandidateInfo{
		ID:        uint32(w.Handle),
		PID:       w.OwnerPID,
		Title:     w.DisplayName,
		Monitored: true,
	})
	return resp
}

func (s *Server) handleRemoveWindow(ctx context.Context, payload json.RawMessage) *Response {
	var req WindowPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid window payload: %v", err))
	}
	if err := s.cfg.Board.RemoveWindow(ctx, platform.WindowID(req.ID)); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to remove window %d: %v", req.ID, err))
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleReorder(ctx context.Context, payload json.RawMessage) *Response {
	var req ReorderPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid reorder payload: %v", err))
	}
	dir, err := registry.ParseDirection(req.Direction)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	moved, err := s.cfg.Board.Reorder(ctx, platform.WindowID(req.ID), dir)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reorder window %d: %v", req.ID, err))
	}

	resp, _ := NewOKResponse(ReorderData{Moved: moved})
	return resp
}

func (s *Server) handleClick(ctx context.Context, payload json.RawMessage) *Response {
	var req WindowPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid window payload: %v", err))
	}
	state, err := s.cfg.Board.Click(ctx, platform.WindowID(req.ID))
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to expand window %d: %v", req.ID, err))
	}

	data := ClickData{Focus: state.Phase.String()}
	if state.Phase == focus.PhaseExpanded {
		data.ExpandedID = uint32(state.Window)
	}
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleSetColumns(ctx context.Context, payload json.RawMessage) *Response {
	var req ColumnsPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid columns payload: %v", err))
	}
	if err := s.cfg.Board.SetColumnCount(ctx, req.Columns); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to set columns: %v", err))
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleToggle(payload json.RawMessage, apply func(bool) error) *Response {
	var req TogglePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid toggle payload: %v", err))
	}
	if err := apply(req.Enabled); err != nil {
		return NewErrorResponse(err.Error())
	}

	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleGetLogs(payload json.RawMessage) *Response {
	var req LogsPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid logs payload: %v", err))
		}
	}

	resp, _ := NewOKResponse(LogsData{Lines: s.cfg.Events.Recent(req.Lines)})
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
