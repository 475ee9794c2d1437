// Package eventlog records board events to a size-rotated file and keeps the
// most recent lines in memory for GET_LOGS.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level defines the logging verbosity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Action is the kind of board event being logged.
type Action string

const (
	ActionAdded       Action = "ADDED"
	ActionRemoved     Action = "REMOVED"
	ActionGone        Action = "GONE"
	ActionExpanded    Action = "EXPANDED"
	ActionCollapsed   Action = "COLLAPSED"
	ActionReordered   Action = "REORDERED"
	ActionSettings    Action = "SETTINGS"
	ActionNotice      Action = "NOTICE"
	ActionCaptureFail Action = "CAPTURE-FAIL"
)

func actionLevel(action Action) Level {
	switch action {
	case ActionReordered, ActionCaptureFail:
		return LevelDebug
	case ActionGone:
		return LevelWarn
	case ActionNotice:
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds configuration for the event logger.
type Config struct {
	// Enabled controls the file sink; the ring is always kept.
	Enabled   bool
	Level     Level
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
	RingSize  int
}

// Logger writes events to an optional rotating file and an in-memory ring.
type Logger struct {
	mu          sync.Mutex
	file        *os.File
	config      Config
	currentSize int64

	ring  []string
	next  int
	count int

	now func() time.Time
}

// New creates a logger. The file is only opened when cfg.Enabled is set.
func New(cfg Config) (*Logger, error) {
	if cfg.RingSize <= 0 {
		cfg.RingSize = 200
	}
	l := &Logger{
		config: cfg,
		ring:   make([]string, cfg.RingSize),
		now:    time.Now,
	}
	if !cfg.Enabled {
		return l, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	l.file = f
	l.currentSize = stat.Size()
	return l, nil
}

// Log records an event about window (0 for board-wide events).
func (l *Logger) Log(action Action, window uint32, details map[string]any) {
	if l == nil {
		return
	}
	level := actionLevel(action)
	if level < l.config.Level {
		return
	}

	entry := l.format(level, action, window, details)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = entry
	l.next = (l.next + 1) % len(l.ring)
	if l.count < len(l.ring) {
		l.count++
	}

	if l.file == nil {
		return
	}

	maxBytes := int64(l.config.MaxSizeMB) * 1024 * 1024
	if maxBytes > 0 && l.currentSize >= maxBytes {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "event log rotation failed: %v\n", err)
		}
		if l.file == nil {
			return
		}
	}

	n, err := l.file.WriteString(entry + "\n")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write event log entry: %v\n", err)
		return
	}
	l.currentSize += int64(n)
}

func (l *Logger) format(level Level, action Action, window uint32, details map[string]any) string {
	var sb strings.Builder
	sb.WriteString(l.now().Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(level.String())
	sb.WriteString(" [")
	sb.WriteString(string(action))
	sb.WriteString("]")
	if window != 0 {
		fmt.Fprintf(&sb, " window=0x%x", window)
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			switch val := details[k].(type) {
			case string:
				fmt.Fprintf(&sb, " %s=%q", k, val)
			default:
				fmt.Fprintf(&sb, " %s=%v", k, val)
			}
		}
	}
	return sb.String()
}

// Recent returns up to n of the most recent lines, oldest first. n <= 0
// returns everything in the ring.
func (l *Logger) Recent(n int) []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]string, 0, n)
	start := (l.next - n + len(l.ring)) % len(l.ring)
	for i := 0; i < n; i++ {
		out = append(out, l.ring[(start+i)%len(l.ring)])
	}
	return out
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// rotate shifts events.log -> events.log.1 -> ... keeping MaxFiles rotated files.
func (l *Logger) rotate() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	basePath := l.config.FilePath
	for i := l.config.MaxFiles; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", basePath, i)
		newPath := fmt.Sprintf("%s.%d", basePath, i+1)
		if i == l.config.MaxFiles {
			os.Remove(oldPath)
		} else {
			os.Rename(oldPath, newPath)
		}
	}

	if l.config.MaxFiles > 0 {
		if err := os.Rename(basePath, basePath+".1"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	} else {
		os.Remove(basePath)
	}

	f, err := os.OpenFile(basePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}

	l.file = f
	l.currentSize = 0
	return nil
}

// ParseLevel converts a string to Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
