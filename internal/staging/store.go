package staging

import "io"

// pendingContent is an upload that has been read and hashed but is not yet
// visible in the store.
type pendingContent struct {
	checksum string
	size     int64
	data     []byte // memory store
	path     string // filesystem store temp file
}

// stagingStore abstracts the storage mechanics for a staging area.
// Reference counting and the size cap live in stagingArea; stores only
// hold bytes. ReceiveContent may run concurrently with anything; every other
// method is called under stagingArea.mu.
type stagingStore interface {
	// ReceiveContent reads r to the end and hashes it into a pending upload.
	ReceiveContent(r io.Reader) (*pendingContent, error)

	// CommitContent makes p visible under its checksum. Content already held
	// under that checksum is kept and p is discarded.
	CommitContent(p *pendingContent) error

	// DiscardContent drops a pending upload that will not be committed.
	DiscardContent(p *pendingContent)

	// RemoveContent removes stored content by checksum (best-effort).
	RemoveContent(checksum string)

	// OpenContent returns a reader for stored content by checksum.
	OpenContent(checksum string) (io.ReadCloser, error)

	// ContentSize returns total bytes of all stored content.
	ContentSize() (int64, error)
}
