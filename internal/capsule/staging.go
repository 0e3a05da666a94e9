package capsule

import (
	"errors"
	"io"
)

// StagingArea holds uploads for drafts that have not been submitted yet.
// Content is deduplicated by checksum and reference counted: staging the same
// bytes twice stores them once, and content is deleted when its last
// reference is released. The area enforces a maximum total size.
type StagingArea interface {
	// Stage reads r to EOF, stores it and returns its SHA-256 checksum and size.
	Stage(r io.Reader) (checksum string, size int64, err error)

	// Open returns a reader for staged content.
	Open(checksum string) (io.ReadCloser, error)

	// Release drops one reference to the content.
	Release(checksum string) error

	// Size returns the total size of staged content in bytes.
	Size() (int64, error)
}

// ErrStagingFull is returned by Stage when the content would exceed the area's max size.
var ErrStagingFull = errors.New("staging area full")
