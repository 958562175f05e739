package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// staleLockAge is how old a lock file must be before it is treated as left
// behind by a crashed process.
const staleLockAge = 5 * time.Minute

// ErrLocked is returned when another process holds the state file lock.
var ErrLocked = errors.New("state file is locked")

// stateLock is an exclusive lock on the state file, held as a sibling
// "<path>.lock" file that records the holder's PID.
type stateLock struct {
	path string
}

func acquireLock(statePath string) (*stateLock, error) {
	l := &stateLock{path: statePath + ".lock"}

	err := l.create()
	if errors.Is(err, os.ErrExist) && l.stale() {
		os.Remove(l.path)
		err = l.create()
	}
	switch {
	case err == nil:
		return l, nil
	case errors.Is(err, os.ErrExist):
		if pid, perr := l.holder(); perr == nil {
			return nil, fmt.Errorf("%w by pid %d", ErrLocked, pid)
		}
		return nil, ErrLocked
	default:
		return nil, fmt.Errorf("create lock file: %w", err)
	}
}

func (l *stateLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d\n", os.Getpid())
	return err
}

func (l *stateLock) stale() bool {
	info, err := os.Stat(l.path)
	return err == nil && time.Since(info.ModTime()) > staleLockAge
}

// holder returns the PID recorded in the lock file.
func (l *stateLock) holder() (int, error) {
	content, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in lock file: %w", err)
	}
	return pid, nil
}

func (l *stateLock) release() error {
	return os.Remove(l.path)
}

// replaceFile writes content to a temp file beside path and renames it into
// place, keeping the existing file mode.
func replaceFile(path string, content []byte) (err error) {
	perm := os.FileMode(0644)
	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if _, err = tmp.Write(content); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
