//go:build !linux && !darwin && !windows

package fs

// Available always fails on platforms without a statfs equivalent.
func Available(string) (uint64, error) {
	return 0, ErrUnsupportedOS
}
