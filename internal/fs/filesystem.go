package fs

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a resolved regular file that can be attached to a capsule.
type File struct {
	Path      string // absolute
	Name      string // base name
	Size      int64
	MediaType string
}

// OSFilesystemManager resolves and opens files on the real filesystem for
// the command line create flow.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve validates a raw path as a regular file and detects its media type.
func (m *OSFilesystemManager) Resolve(rawPath string) (*File, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	mediaType, err := detectMediaType(absPath)
	if err != nil {
		return nil, err
	}
	return &File{
		Path:      absPath,
		Name:      filepath.Base(absPath),
		Size:      info.Size(),
		MediaType: mediaType,
	}, nil
}

// Open opens a resolved file for reading.
func (m *OSFilesystemManager) Open(f *File) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// FindFiles resolves the regular files under dir, skipping ignored names,
// in lexical order.
func (m *OSFilesystemManager) FindFiles(dir string, recursive bool) ([]*File, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	lines, err := ReadIgnoreFile(absDir)
	if err != nil {
		return nil, err
	}
	ignore := NewIgnoreMatcher(lines)

	var files []*File
	err = filepath.WalkDir(absDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absDir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != absDir && (!recursive || ignore.Match(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignore.Match(rel) {
			return nil
		}
		f, err := m.Resolve(p)
		if err != nil {
			return err
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// detectMediaType uses the file extension, falling back to content sniffing.
func detectMediaType(path string) (string, error) {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("reading file: %w", err)
	}
	mt, _, err := mime.ParseMediaType(http.DetectContentType(head[:n]))
	if err != nil {
		return "application/octet-stream", nil
	}
	return mt, nil
}
