//go:build linux || darwin

package fs

import "golang.org/x/sys/unix"

// Available returns the number of bytes an unprivileged user can still write at path.
func Available(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil // #nosec G115
}
