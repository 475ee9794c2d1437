// Package runtimepath locates the per-user files of a running daemon and
// guards against starting two daemons for the same user.
package runtimepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

const (
	socketName = "pipgrid.sock"
	pidName    = "pipgrid.pid"
)

// ErrAlreadyRunning is returned by AcquirePID when a live process owns the
// pid file.
var ErrAlreadyRunning = errors.New("pipgrid daemon already running")

// Dir returns the directory holding the socket and pid file, in order of
// preference $XDG_RUNTIME_DIR, /run/user/<uid>, then a private directory
// under the system temp dir.
func Dir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}

	uid := os.Getuid()
	if dir := fmt.Sprintf("/run/user/%d", uid); isDir(dir) {
		return dir, nil
	}

	dir := filepath.Join(os.TempDir(), fmt.Sprintf("pipgrid-runtime-%d", uid))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return dir, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func inDir(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) { return inDir(socketName) }

// PIDPath returns the file holding the running daemon's pid.
func PIDPath() (string, error) { return inDir(pidName) }

// ReadPID returns the pid recorded in path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%s: malformed pid file", path)
	}
	return pid, nil
}

// AcquirePID records the current process in path. A pid file left behind
// by a process that no longer exists is replaced. The returned release
// removes the file.
func AcquirePID(path string) (release func(), err error) {
	if pid, err := ReadPID(path); err == nil && pid != os.Getpid() {
		if alive, _ := process.PidExists(int32(pid)); alive {
			return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}
	return func() {
		if pid, err := ReadPID(path); err == nil && pid == os.Getpid() {
			os.Remove(path)
		}
	}, nil
}
