// Package fs reports free space on the filesystem media is written to.
package fs

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOS is returned when the operating system is not supported.
var ErrUnsupportedOS = errors.New("unsupported operating system for disk space check")

// EnsureFree returns an error wrapping sentinel when fewer than minBytes are
// available at path. A zero minBytes disables the check, and platforms without
// a probe are never rejected.
func EnsureFree(path string, minBytes uint64, sentinel error) error {
	if minBytes == 0 {
		return nil
	}
	free, err := Available(path)
	if errors.Is(err, ErrUnsupportedOS) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check free space at %s: %w", path, err)
	}
	if free < minBytes {
		return fmt.Errorf("%w: %d bytes free at %s, need %d", sentinel, free, path, minBytes)
	}
	return nil
}
