package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/pipgrid/internal/ipc"
)

const (
	ServerName    = "pipgrid"
	ServerVersion = "0.1.0"
)

// Daemon is the subset of the IPC client the tools use.
type Daemon interface {
	ListCandidates() (*ipc.CandidatesData, error)
	GetBoard() (*ipc.BoardData, error)
	AddWindow(id uint32) (*ipc.CandidateInfo, error)
	RemoveWindow(id uint32) error
	Click(id uint32) (*ipc.ClickData, error)
	GetThumbnail(id uint32, full bool) (*ipc.ThumbnailData, error)
	SetMovieMode(on bool) error
}

var _ Daemon = (*ipc.Client)(nil)

// Server exposes the running pipgrid daemon as MCP tools.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
}

// NewServer creates an MCP server that forwards to daemon.
func NewServer(daemon Daemon) *Server {
	s := &Server{daemon: daemon}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_candidates",
		Description: "List top-level windows that can be added to the pipgrid thumbnail grid. Windows already on the grid are omitted unless include_monitored is set.",
	}, s.handleListCandidates)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitored",
		Description: "List the windows on the grid in order, with their cell, visual state, CPU usage and capture rate, plus global flags (columns, focus, movie mode, pause).",
	}, s.handleListMonitored)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "add_window",
		Description: "Add a window to the end of the grid and start capturing it. Fails if the window is already on the grid or no longer exists.",
	}, s.handleAddWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_window",
		Description: "Remove a window from the grid. The window itself is left untouched.",
	}, s.handleRemoveWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "expand_window",
		Description: "Restore a monitored window to the foreground, collapsing any other expanded window. Does nothing if the window is already expanded.",
	}, s.handleExpandWindow)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_thumbnail",
		Description: "Return the latest captured frame of a monitored window as a PNG image.",
	}, s.handleGetThumbnail)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_movie_mode",
		Description: "Turn movie mode on or off. Movie mode lowers the capture rate of every window.",
	}, s.handleSetMovieMode)
}
