// Package pidfile manages the file holding the PID of a running isoserved,
// which keeps two daemons from sharing a pidfile.
package pidfile

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"

	"github.com/moby/isoserve/pkg/process"
	"github.com/moby/sys/atomicwriter"
	"github.com/pkg/errors"
)

// Write records pid in the pidfile at path, creating its parent directory
// if needed. It fails if the file names another process that is still
// running. A stale or malformed pidfile is replaced.
func Write(path string, pid int) error {
	if pid < 1 {
		return errors.Errorf("invalid PID (%d): only positive PIDs are allowed", pid)
	}
	owner, err := runningPID(path)
	if err != nil {
		return err
	}
	if owner != 0 && owner != pid {
		return errors.Errorf("pidfile %s is held by running process %d: is another isoserved running?", path, owner)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create pidfile directory")
	}
	return atomicwriter.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// Remove removes the pidfile at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove pidfile")
	}
	return nil
}

// runningPID returns the PID stored at path if that process is alive, and
// 0 when there is no file, its content is not a PID, or the process is gone.
func runningPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to read pidfile")
	}
	pid, err := strconv.Atoi(string(bytes.TrimSpace(b)))
	if err != nil || !process.Alive(pid) {
		return 0, nil
	}
	return pid, nil
}
