package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/pipgrid/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for an explicit socket path.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends cmd with an optional payload and decodes the response data
// into out when out is non-nil.
func (c *Client) call(cmd CommandType, payload any, out any) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetBoard retrieves the latest grid snapshot.
func (c *Client) GetBoard() (*BoardData, error) {
	var data BoardData
	if err := c.call(CommandGetBoard, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetThumbnail retrieves the latest frame of a window as PNG. full selects
// the unscaled capture instead of the grid-sized copy.
func (c *Client) GetThumbnail(id uint32, full bool) (*ThumbnailData, error) {
	var data ThumbnailData
	if err := c.call(CommandGetThumbnail, ThumbnailPayload{ID: id, Full: full}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ListCandidates lists windows that can be added to the grid.
func (c *Client) ListCandidates() (*CandidatesData, error) {
	var data CandidatesData
	if err := c.call(CommandListCandidates, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// AddWindow starts monitoring a window.
func (c *Client) AddWindow(id uint32) (*CandidateInfo, error) {
	var data CandidateInfo
	if err := c.call(CommandAddWindow, WindowPayload{ID: id}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// RemoveWindow stops monitoring a window.
func (c *Client) RemoveWindow(id uint32) error {
	return c.call(CommandRemoveWindow, WindowPayload{ID: id}, nil)
}

// Reorder moves a window one slot "up" or "down".
func (c *Client) Reorder(id uint32, direction string) (bool, error) {
	var data ReorderData
	if err := c.call(CommandReorder, ReorderPayload{ID: id, Direction: direction}, &data); err != nil {
		return false, err
	}
	return data.Moved, nil
}

// Click expands or collapses a window.
func (c *Client) Click(id uint32) (*ClickData, error) {
	var data ClickData
	if err := c.call(CommandClick, WindowPayload{ID: id}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SetColumns changes the grid width.
func (c *Client) SetColumns(n int) error {
	return c.call(CommandSetColumns, ColumnsPayload{Columns: n}, nil)
}

// SetMovieMode toggles the reduced capture rate.
func (c *Client) SetMovieMode(on bool) error {
	return c.call(CommandSetMovieMode, TogglePayload{Enabled: on}, nil)
}

// SetAutoMinimize toggles minimizing a window when it is collapsed.
func (c *Client) SetAutoMinimize(on bool) error {
	return c.call(CommandSetAutoMinimize, TogglePayload{Enabled: on}, nil)
}

// SetPaused stops or restarts capture for all windows.
func (c *Client) SetPaused(on bool) error {
	return c.call(CommandSetPaused, TogglePayload{Enabled: on}, nil)
}

// GetLogs returns up to n recent event log lines; n <= 0 returns all kept.
func (c *Client) GetLogs(n int) ([]string, error) {
	var data LogsData
	if err := c.call(CommandGetLogs, LogsPayload{Lines: n}, &data); err != nil {
		return nil, err
	}
	return data.Lines, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
