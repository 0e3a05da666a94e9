package staging

import (
	"fmt"
	"io"
	"sync"

	"capsule-go/internal/capsule"
)

// stagingArea implements capsule.StagingArea using a pluggable stagingStore
// for the storage mechanics. All shared algorithm logic lives here.
type stagingArea struct {
	store   stagingStore
	maxSize int64
	refs    map[string]int
	mu      sync.Mutex
}

var _ capsule.StagingArea = (*stagingArea)(nil)

func newStagingArea(store stagingStore, maxSize int64) *stagingArea {
	return &stagingArea{
		store:   store,
		maxSize: maxSize,
		refs:    make(map[string]int),
	}
}

// Stage stores the content of r and takes a reference to it. The upload is
// read without holding the lock, so slow uploads do not hold up others.
func (s *stagingArea) Stage(r io.Reader) (string, int64, error) {
	p, err := s.store.ReceiveContent(r)
	if err != nil {
		return "", 0, fmt.Errorf("storing content: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Already referenced content was deduplicated and adds nothing.
	if s.refs[p.checksum] > 0 {
		s.store.DiscardContent(p)
		s.refs[p.checksum]++
		return p.checksum, p.size, nil
	}

	total, err := s.store.ContentSize()
	if err != nil {
		s.store.DiscardContent(p)
		return "", 0, fmt.Errorf("getting current size: %w", err)
	}
	if total+p.size > s.maxSize {
		s.store.DiscardContent(p)
		return "", 0, fmt.Errorf("%w: would exceed max size of %d bytes", capsule.ErrStagingFull, s.maxSize)
	}

	if err := s.store.CommitContent(p); err != nil {
		return "", 0, fmt.Errorf("storing content: %w", err)
	}
	s.refs[p.checksum] = 1
	return p.checksum, p.size, nil
}

// Open returns a reader for referenced content.
func (s *stagingArea) Open(checksum string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refs[checksum] == 0 {
		return nil, fmt.Errorf("content not staged: %s", checksum)
	}
	return s.store.OpenContent(checksum)
}

// Release drops one reference and removes the content when none remain.
func (s *stagingArea) Release(checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.refs[checksum]
	if n == 0 {
		return fmt.Errorf("content not staged: %s", checksum)
	}
	if n > 1 {
		s.refs[checksum] = n - 1
		return nil
	}
	delete(s.refs, checksum)
	s.store.RemoveContent(checksum)
	return nil
}

// Size returns the total size of staged content in bytes.
func (s *stagingArea) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ContentSize()
}
