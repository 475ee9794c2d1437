package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListCandidates(_ context.Context, _ *mcpsdk.CallToolRequest, args ListCandidatesInput) (*mcpsdk.CallToolResult, ListCandidatesOutput, error) {
	data, err := s.daemon.ListCandidates()
	if err != nil {
		return nil, ListCandidatesOutput{}, err
	}

	out := ListCandidatesOutput{Windows: make([]WindowInfo, 0, len(data.Windows))}
	for _, w := range data.Windows {
		if w.Monitored && !args.IncludeMonitored {
			continue
		}
		out.Windows = append(out.Windows, WindowInfo{
			WindowID:  w.ID,
			PID:       w.PID,
			AppID:     w.AppID,
			Title:     w.Title,
			Monitored: w.Monitored,
		})
	}
	return nil, out, nil
}

func (s *Server) handleListMonitored(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitoredInput) (*mcpsdk.CallToolResult, ListMonitoredOutput, error) {
	board, err := s.daemon.GetBoard()
	if err != nil {
		return nil, ListMonitoredOutput{}, err
	}

	out := ListMonitoredOutput{
		Columns:      board.Columns,
		Focus:        board.Focus,
		MovieMode:    board.MovieMode,
		Paused:       board.Paused,
		AutoMinimize: board.AutoMinimize,
		Windows:      make([]TileSummary, 0, len(board.Tiles)),
	}
	for _, t := range board.Tiles {
		out.Windows = append(out.Windows, TileSummary{
			WindowID:   t.ID,
			Title:      t.Title,
			PID:        t.PID,
			Position:   t.OrderIndex,
			Row:        t.Row,
			Col:        t.Col,
			State:      t.State,
			Expanded:   t.Expanded,
			CPU:        t.CPU,
			FPS:        t.FPS,
			CapturedAt: t.CapturedAt,
		})
	}
	for _, n := range board.Notices {
		out.Notices = append(out.Notices, n.Message)
	}
	return nil, out, nil
}

func (s *Server) handleAddWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args AddWindowInput) (*mcpsdk.CallToolResult, AddWindowOutput, error) {
	if args.WindowID == 0 {
		return nil, AddWindowOutput{}, fmt.Errorf("window_id is required")
	}
	added, err := s.daemon.AddWindow(args.WindowID)
	if err != nil {
		return nil, AddWindowOutput{}, err
	}

	out := AddWindowOutput{WindowID: added.ID, Title: added.Title, PID: added.PID}
	if args.Expand {
		click, err := s.daemon.Click(args.WindowID)
		if err != nil {
			return nil, out, fmt.Errorf("window 0x%x added but could not be expanded: %w", args.WindowID, err)
		}
		out.Focus = click.Focus
	}
	return nil, out, nil
}

func (s *Server) handleRemoveWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, RemoveWindowOutput, error) {
	if err := s.daemon.RemoveWindow(args.WindowID); err != nil {
		return nil, RemoveWindowOutput{}, err
	}
	return nil, RemoveWindowOutput{WindowID: args.WindowID, Removed: true}, nil
}

// handleExpandWindow only clicks when the window is not already expanded;
// a click on the expanded window would collapse it.
func (s *Server) handleExpandWindow(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, ExpandWindowOutput, error) {
	board, err := s.daemon.GetBoard()
	if err != nil {
		return nil, ExpandWindowOutput{}, err
	}
	if board.ExpandedID == args.WindowID && args.WindowID != 0 {
		return nil, ExpandWindowOutput{Focus: board.Focus, ExpandedID: board.ExpandedID}, nil
	}

	click, err := s.daemon.Click(args.WindowID)
	if err != nil {
		return nil, ExpandWindowOutput{}, err
	}
	return nil, ExpandWindowOutput{
		Focus:      click.Focus,
		ExpandedID: click.ExpandedID,
		Changed:    true,
	}, nil
}

func (s *Server) handleGetThumbnail(_ context.Context, _ *mcpsdk.CallToolRequest, args GetThumbnailInput) (*mcpsdk.CallToolResult, GetThumbnailOutput, error) {
	thumb, err := s.daemon.GetThumbnail(args.WindowID, args.Full)
	if err != nil {
		return nil, GetThumbnailOutput{}, err
	}

	out := GetThumbnailOutput{
		WindowID:   thumb.ID,
		Width:      thumb.Width,
		Height:     thumb.Height,
		CapturedAt: thumb.CapturedAt,
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.ImageContent{Data: thumb.PNG, MIMEType: "image/png"},
			&mcpsdk.TextContent{Text: fmt.Sprintf("Window 0x%x, %dx%d, captured %s", thumb.ID, thumb.Width, thumb.Height, thumb.CapturedAt.Format("15:04:05.000"))},
		},
	}, out, nil
}

func (s *Server) handleSetMovieMode(_ context.Context, _ *mcpsdk.CallToolRequest, args SetMovieModeInput) (*mcpsdk.CallToolResult, SetMovieModeOutput, error) {
	if err := s.daemon.SetMovieMode(args.Enabled); err != nil {
		return nil, SetMovieModeOutput{}, err
	}
	return nil, SetMovieModeOutput{MovieMode: args.Enabled}, nil
}
