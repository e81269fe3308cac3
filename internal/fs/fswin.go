//go:build windows

package fs

import (
	"golang.org/x/sys/windows"
)

// Available returns the number of bytes the caller can still write at path.
func Available(path string) (uint64, error) {
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	var freeToCaller uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeToCaller, nil, nil); err != nil {
		return 0, err
	}
	return freeToCaller, nil
}
