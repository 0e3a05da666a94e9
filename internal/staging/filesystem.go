package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"capsule-go/internal/capsule"
)

// fileSystemStore keeps staged content as files named by checksum.
//
// Directory structure:
//
//	<staging_dir>/
//	  files/
//	    <checksum>    (staged upload content)
//	  tmp/            (in-flight writes)
type fileSystemStore struct {
	filesDir string
	tmpDir   string
}

// NewFileSystemStagingArea creates a new filesystem-based staging area.
// Drafts live in memory, so content left over from a previous run has no
// owner and is removed.
func NewFileSystemStagingArea(stagingDir string, maxSize int64) (capsule.StagingArea, error) {
	store := &fileSystemStore{
		filesDir: filepath.Join(stagingDir, "files"),
		tmpDir:   filepath.Join(stagingDir, "tmp"),
	}
	for _, dir := range []string{store.filesDir, store.tmpDir} {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("clearing stale staging directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create staging directory: %w", err)
		}
	}
	return newStagingArea(store, maxSize), nil
}

func (f *fileSystemStore) contentPath(checksum string) string {
	return filepath.Join(f.filesDir, checksum)
}

func (f *fileSystemStore) ReceiveContent(r io.Reader) (*pendingContent, error) {
	tmp, err := os.CreateTemp(f.tmpDir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	return &pendingContent{
		checksum: hex.EncodeToString(h.Sum(nil)),
		size:     size,
		path:     tmpPath,
	}, nil
}

func (f *fileSystemStore) CommitContent(p *pendingContent) error {
	defer f.DiscardContent(p)

	dst := f.contentPath(p.checksum)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if err := os.Rename(p.path, dst); err != nil {
		return fmt.Errorf("moving content into place: %w", err)
	}
	p.path = ""
	return nil
}

func (f *fileSystemStore) DiscardContent(p *pendingContent) {
	if p.path != "" {
		os.Remove(p.path)
		p.path = ""
	}
}

func (f *fileSystemStore) RemoveContent(checksum string) {
	os.Remove(f.contentPath(checksum))
}

func (f *fileSystemStore) OpenContent(checksum string) (io.ReadCloser, error) {
	file, err := os.Open(f.contentPath(checksum))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("content not found: %s", checksum)
	}
	if err != nil {
		return nil, fmt.Errorf("opening content: %w", err)
	}
	return file, nil
}

func (f *fileSystemStore) ContentSize() (int64, error) {
	entries, err := os.ReadDir(f.filesDir)
	if err != nil {
		return 0, fmt.Errorf("reading staging directory: %w", err)
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		total += info.Size()
	}
	return total, nil
}
