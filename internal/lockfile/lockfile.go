//go:build linux || darwin

// Package lockfile implements the OS-level advisory single-instance
// locks spec.md §4.8/§6 requires: one per runner queue, and one
// singleton lock for the server's data directory. Grounded on the
// pack's thin golang.org/x/sys/unix wrapper style (eventloop/fd_unix.go)
// generalized from raw fd read/write/close into flock-based locking
// with stale-pid reclaim.
package lockfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Lock is a held advisory file lock. The zero value is not usable;
// construct with Acquire.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes an exclusive, non-blocking advisory lock on the file
// at path, creating it if necessary, and records the current pid in
// it. If another live process holds the lock, Acquire returns an
// error naming that pid. If the recorded pid is no longer alive (a
// stale lock left by an ungraceful exit), Acquire reclaims it.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lockfile %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holderPID, readErr := readPID(file)
		if readErr == nil && holderPID > 0 && processAlive(holderPID) {
			_ = file.Close()
			return nil, fmt.Errorf("lockfile %s is held by live pid %d", path, holderPID)
		}

		// Stale lock: the previous holder is gone. Best-effort reclaim
		// by retrying the lock once; if this also fails, another process
		// holds the lock and Acquire returns an error.
		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to reclaim stale lockfile %s: %w", path, err)
		}
	}

	if err := writePID(file); err != nil {
		_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
		_ = file.Close()
		return nil, fmt.Errorf("failed to write pid into lockfile %s: %w", path, err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release unlocks and removes the lockfile. Safe to call once; the
// caller is responsible for calling it on graceful exit, SIGTERM, and
// SIGINT (spec.md §4.8).
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	return os.Remove(l.path)
}

func readPID(f *os.File) (int, error) {
	buf := make([]byte, 32)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}
	text := strings.TrimSpace(string(buf[:n]))
	if text == "" {
		return 0, fmt.Errorf("empty pid file")
	}
	pid, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("malformed pid file content %q: %w", text, err)
	}
	return pid, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		return err
	}
	return f.Sync()
}

// processAlive reports whether pid names a live process, per the
// standard signal-0 liveness probe.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
