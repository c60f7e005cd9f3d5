//go:build windows

package data

import (
	"errors"
	"fmt"
	"os"
)

// tryLock uses exclusive creation. A crashed daemon leaves the file behind
// and it must be removed by hand.
func tryLock(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err == nil {
		return file, nil
	}
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s exists", ErrDaemonRunning, path)
	}
	return nil, fmt.Errorf("failed to open lock %s: %w", path, err)
}

func unlock(path string, file *os.File) error {
	err := file.Close()
	if rerr := os.Remove(path); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
