package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrDaemonRunning is returned when another responder holds the state lock
var ErrDaemonRunning = errors.New("another responder is running")

// DaemonLock is the exclusive lock a running responder holds on its state file
type DaemonLock struct {
	path string
	file *os.File
}

// LockPath returns the lock file guarding statePath
func LockPath(statePath string) string {
	return statePath + ".lock"
}

// AcquireDaemonLock takes the lock at path without waiting. It fails with
// ErrDaemonRunning when another process holds it.
func AcquireDaemonLock(path string) (*DaemonLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := tryLock(path)
	if err != nil {
		return nil, err
	}
	writeLockOwner(file)
	return &DaemonLock{path: path, file: file}, nil
}

// Release drops the lock
func (l *DaemonLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlock(l.path, l.file)
	l.file = nil
	return err
}

// DaemonRunning reports whether another process holds the lock at path
func DaemonRunning(path string) (bool, error) {
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		return false, nil
	}
	file, err := tryLock(path)
	if errors.Is(err, ErrDaemonRunning) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, unlock(path, file)
}

func writeLockOwner(file *os.File) {
	host, _ := os.Hostname()
	data, err := json.Marshal(map[string]any{
		"pid":         os.Getpid(),
		"hostname":    host,
		"acquired_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	_ = file.Truncate(0)
	_, _ = file.Seek(0, 0)
	_, _ = file.Write(append(data, '\n'))
	_ = file.Sync()
}
