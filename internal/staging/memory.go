package staging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"capsule-go/internal/capsule"
)

// memoryStore keeps staged content in a map. Useful for tests and for
// deployments where drafts are small.
type memoryStore struct {
	content map[string][]byte
	size    int64
}

// NewMemoryStagingArea creates a new in-memory staging area.
// maxSize is the maximum total size in bytes; must be positive.
// This implementation is safe for concurrent use.
func NewMemoryStagingArea(maxSize int64) capsule.StagingArea {
	return newStagingArea(&memoryStore{content: make(map[string][]byte)}, maxSize)
}

func (m *memoryStore) ReceiveContent(r io.Reader) (*pendingContent, error) {
	h := sha256.New()
	data, err := io.ReadAll(io.TeeReader(r, h))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	return &pendingContent{
		checksum: hex.EncodeToString(h.Sum(nil)),
		size:     int64(len(data)),
		data:     data,
	}, nil
}

func (m *memoryStore) CommitContent(p *pendingContent) error {
	if _, ok := m.content[p.checksum]; !ok {
		m.content[p.checksum] = p.data
		m.size += p.size
	}
	p.data = nil
	return nil
}

func (m *memoryStore) DiscardContent(p *pendingContent) {
	p.data = nil
}

func (m *memoryStore) RemoveContent(checksum string) {
	if data, ok := m.content[checksum]; ok {
		m.size -= int64(len(data))
		delete(m.content, checksum)
	}
}

func (m *memoryStore) OpenContent(checksum string) (io.ReadCloser, error) {
	data, ok := m.content[checksum]
	if !ok {
		return nil, fmt.Errorf("content not found: %s", checksum)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) ContentSize() (int64, error) {
	return m.size, nil
}
