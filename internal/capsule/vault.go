package capsule

import (
	"errors"
	"io"
)

// ErrContentNotFound is returned by vaults for keys they do not hold.
var ErrContentNotFound = errors.New("content not found")

// Vault provides an interface for capsule file storage backends.
// Blobs are addressed by key (see BlobKey). All operations stream through
// io.Reader/io.Writer so large media is never held by the interface itself.
type Vault interface {
	// PutContent stores size bytes read from r under key.
	// Storing an existing key again is safe and leaves the blob unchanged.
	PutContent(key string, r io.Reader, size int64) error

	// GetContent writes the blob stored under key to w.
	// Unknown keys return an error wrapping ErrContentNotFound.
	GetContent(key string, w io.Writer) error

	// HasContent reports whether a blob is stored under key.
	HasContent(key string) (bool, error)

	// DeleteContent removes the blob under key. Unknown keys are not an error.
	DeleteContent(key string) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}

// BlobKey is the vault key of a capsule file: its plaintext checksum, with
// an ".age" suffix when the blob is encrypted. Identical uploads stored the
// same way share one blob.
func BlobKey(checksum string, encrypted bool) string {
	if encrypted {
		return checksum + ".age"
	}
	return checksum
}
