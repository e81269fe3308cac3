package instagrab

import (
	"errors"
	"fmt"
)

// ErrDiskSpace is returned when the destination filesystem is below the configured free-space floor.
var ErrDiskSpace = errors.New("insufficient disk space")

// InvalidReferenceError is returned when a URL does not point at a post.
type InvalidReferenceError struct {
	URL    string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid post reference %q: %s", e.URL, e.Reason)
}

// ResolverError is returned when metadata for a post could not be obtained.
type ResolverError struct {
	ShortID string
	Err     error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.ShortID, e.Err)
}

func (e *ResolverError) Unwrap() error { return e.Err }

// FetchError is returned when a single media item could not be saved.
type FetchError struct {
	Index int
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch media %d (%s): %v", e.Index, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StoreError is returned by storage operations on constraint violations or when the database is unusable.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ExportError is returned when the export document cannot be produced or written.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("export: %v", e.Err)
	}
	return fmt.Sprintf("export to %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
