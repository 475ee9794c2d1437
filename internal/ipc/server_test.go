package ipc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image/png"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1broseidon/pipgrid/internal/board"
	"github.com/1broseidon/pipgrid/internal/capture"
	"github.com/1broseidon/pipgrid/internal/eventlog"
	"github.com/1broseidon/pipgrid/internal/platform/platformtest"
	"github.com/1broseidon/pipgrid/internal/registry"
	"github.com/1broseidon/pipgrid/internal/thumbcache"
	"github.com/1broseidon/pipgrid/internal/tiling"
)

type fixture struct {
	backend  *platformtest.Backend
	client   *Client
	server   *Server
	reloaded atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := platformtest.New()
	backend.AddWindow(1, 101, "editor")
	backend.AddWindow(2, 102, "terminal")
	backend.AddWindow(3, 103, "pipgrid")

	reg := registry.New(backend)
	cache := thumbcache.New(nil)
	engine := capture.NewEngine(capture.Config{CaptureFPS: 50, MovieFPS: 10}, backend, cache, reg)
	t.Cleanup(engine.Close)
	reg.Subscribe(func(ev registry.Event) {
		switch ev.Kind {
		case registry.EventAdded:
			cache.Register(ev.Window.Handle)
			engine.Start(ev.Window.Handle)
		case registry.EventRemoved:
			engine.Stop(ev.Window.Handle)
			cache.Evict(ev.Window.Handle)
		}
	})

	events, err := eventlog.New(eventlog.Config{})
	if err != nil {
		t.Fatalf("eventlog: %v", err)
	}
	b := board.New(board.Settings{
		Columns:        5,
		Layout:         tiling.DefaultOptions(),
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AutoMinimize:   true,
		RenderInterval: 5 * time.Millisecond,
		Events:         events,
	}, board.Deps{
		Registry:  reg,
		Commander: backend,
		Capture:   engine,
		Frames:    cache,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go b.Run(ctx)

	f := &fixture{backend: backend}
	server, err := NewServer(ServerConfig{
		SocketPath: filepath.Join(t.TempDir(), "pipgrid.sock"),
		Board:      b,
		Windows:    backend,
		Frames:     cache,
		Events:     events,
		Exclude:    func(title string) bool { return strings.Contains(title, "pipgrid") },
		Reload: func() error {
			f.reloaded.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(server.Stop)

	f.server = server
	f.client = NewClientAt(server.SocketPath())
	return f
}

func TestCandidatesExcludeAndMarkMonitored(t *testing.T) {
	f := newFixture(t)

	if _, err := f.client.AddWindow(1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}
	data, err := f.client.ListCandidates()
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	if len(data.Windows) != 2 {
		t.Fatalf("expected excluded title to be hidden, got %+v", data.Windows)
	}
	for _, w := range data.Windows {
		if w.Title == "pipgrid" {
			t.Fatalf("excluded window listed: %+v", w)
		}
		if (w.ID == 1) != w.Monitored {
			t.Fatalf("unexpected monitored flag on %+v", w)
		}
	}
}

func TestBoardRoundTrip(t *testing.T) {
	f := newFixture(t)

	for _, id := range []uint32{1, 2} {
		if _, err := f.client.AddWindow(id); err != nil {
			t.Fatalf("AddWindow(%d) error = %v", id, err)
		}
	}
	if _, err := f.client.AddWindow(1); err == nil || !strings.Contains(err.Error(), "already monitored") {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	moved, err := f.client.Reorder(2, "up")
	if err != nil || !moved {
		t.Fatalf("Reorder() = %v, %v", moved, err)
	}
	if _, err := f.client.Reorder(2, "sideways"); err == nil {
		t.Fatalf("expected invalid direction error")
	}

	data, err := f.client.GetBoard()
	if err != nil {
		t.Fatalf("GetBoard() error = %v", err)
	}
	if len(data.Tiles) != 2 || data.Tiles[0].ID != 2 || data.Tiles[1].ID != 1 {
		t.Fatalf("unexpected tile order %+v", data.Tiles)
	}
	if data.Tiles[0].Col != 0 || data.Tiles[1].Col != 1 {
		t.Fatalf("unexpected columns %+v", data.Tiles)
	}

	click, err := f.client.Click(1)
	if err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	if click.Focus != "expanded" || click.ExpandedID != 1 {
		t.Fatalf("unexpected click result %+v", click)
	}

	if err := f.client.SetColumns(9); err == nil {
		t.Fatalf("expected error for 9 columns")
	}
	if err := f.client.SetColumns(3); err != nil {
		t.Fatalf("SetColumns() error = %v", err)
	}
	if err := f.client.SetMovieMode(true); err != nil {
		t.Fatalf("SetMovieMode() error = %v", err)
	}
	if err := f.client.SetPaused(true); err != nil {
		t.Fatalf("SetPaused() error = %v", err)
	}
	if err := f.client.SetAutoMinimize(false); err != nil {
		t.Fatalf("SetAutoMinimize() error = %v", err)
	}

	status, err := f.client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.Monitored != 2 || status.Columns != 3 || !status.MovieMode || !status.Paused || status.AutoMinimize {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Focus != "expanded(1)" {
		t.Fatalf("unexpected focus %q", status.Focus)
	}

	if err := f.client.RemoveWindow(2); err != nil {
		t.Fatalf("RemoveWindow() error = %v", err)
	}
	if err := f.client.RemoveWindow(2); err == nil {
		t.Fatalf("expected error removing twice")
	}

	lines, err := f.client.GetLogs(0)
	if err != nil {
		t.Fatalf("GetLogs() error = %v", err)
	}
	if len(lines) == 0 {
		t.Fatalf("expected event log lines")
	}
}

func TestThumbnailIsPNG(t *testing.T) {
	f := newFixture(t)
	if _, err := f.client.AddWindow(1); err != nil {
		t.Fatalf("AddWindow() error = %v", err)
	}

	var thumb *ThumbnailData
	deadline := time.Now().Add(2 * time.Second)
	for {
		var err error
		thumb, err = f.client.GetThumbnail(1, false)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("no thumbnail: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	img, err := png.Decode(bytes.NewReader(thumb.PNG))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != thumb.Width || img.Bounds().Dy() != thumb.Height {
		t.Fatalf("png is %v, header says %dx%d", img.Bounds(), thumb.Width, thumb.Height)
	}

	full, err := f.client.GetThumbnail(1, true)
	if err != nil {
		t.Fatalf("GetThumbnail(full) error = %v", err)
	}
	if full.Width != 64 || full.Height != 48 {
		t.Fatalf("expected raw 64x48 capture, got %dx%d", full.Width, full.Height)
	}

	if _, err := f.client.GetThumbnail(2, false); err == nil {
		t.Fatalf("expected error for unmonitored window")
	}
}

func TestReloadAndUnknownCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.client.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := f.reloaded.Load(); got != 1 {
		t.Fatalf("expected reload callback once, got %d", got)
	}

	conn, err := net.Dial("unix", f.server.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"command":"NOPE"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Contains(line, []byte(`"status":"ERROR"`)) || !bytes.Contains(line, []byte("Unknown command")) {
		t.Fatalf("unexpected response %s", line)
	}
}

func TestClientWithoutDaemon(t *testing.T) {
	c := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	err := c.Ping()
	if err == nil {
		t.Fatalf("expected connection error")
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected wrapped *net.OpError, got %T: %v", err, err)
	}
}
