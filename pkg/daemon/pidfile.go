package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning is returned by AcquirePidFile when another process
// already holds the exclusive lock on the pidfile.
var ErrAlreadyRunning = errors.New("daemon: already running")

// PidFile is an exclusively-locked file recording the owning process's
// pid, used to detect a second instance before it ever races the first
// for the domain socket.
type PidFile struct {
	path string
	file *os.File
}

// AcquirePidFile opens (creating if absent) the file at path and takes
// a non-blocking exclusive flock on it. If the lock is already held,
// it reads the existing pid out of the file and returns it alongside
// ErrAlreadyRunning so the caller can report "held by pid N".
func AcquirePidFile(path string) (*PidFile, int, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, 0, fmt.Errorf("open pidfile: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		holder := readPid(f)
		f.Close()
		return nil, holder, ErrAlreadyRunning
	}

	return &PidFile{path: path, file: f}, 0, nil
}

func readPid(f *os.File) int {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	pid, _ := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	return pid
}

// ReadPidfile reads the pid recorded at path without taking a lock,
// for read-only inspection tooling (e.g. `omgd doctor`). It does not
// indicate whether the recorded process is still alive.
func ReadPidfile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	pid := readPid(f)
	if pid == 0 {
		return 0, fmt.Errorf("pidfile %s is empty or unreadable", path)
	}
	return pid, nil
}

// Write truncates the pidfile and records pid.
func (p *PidFile) Write(pid int) error {
	if err := p.file.Truncate(0); err != nil {
		return err
	}
	if _, err := p.file.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return err
	}
	return p.file.Sync()
}

// Release unlocks, closes, and removes the pidfile. Errors removing an
// already-gone file are ignored.
func (p *PidFile) Release() {
	unix.Flock(int(p.file.Fd()), unix.LOCK_UN)
	p.file.Close()
	os.Remove(p.path)
}
