package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")

func TestOSFilesystemManager_Resolve(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()

	t.Run("media type from extension", func(t *testing.T) {
		p := filepath.Join(dir, "photo.png")
		writeFile(t, p, []byte("not really a png"))

		f, err := m.Resolve(p)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if f.MediaType != "image/png" || f.Name != "photo.png" || f.Size != 16 {
			t.Errorf("Resolve() = %+v", f)
		}
	})

	t.Run("media type sniffed without known extension", func(t *testing.T) {
		p := filepath.Join(dir, "photo.capsuletest")
		writeFile(t, p, pngHeader)

		f, err := m.Resolve(p)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if f.MediaType != "image/png" {
			t.Errorf("MediaType = %q, want image/png", f.MediaType)
		}
	})

	t.Run("rejects directories", func(t *testing.T) {
		if _, err := m.Resolve(dir); err == nil {
			t.Error("Resolve(dir) expected error")
		}
	})

	t.Run("rejects missing files", func(t *testing.T) {
		if _, err := m.Resolve(filepath.Join(dir, "missing.png")); err == nil {
			t.Error("Resolve(missing) expected error")
		}
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	m := NewOSFilesystemManager()
	p := filepath.Join(t.TempDir(), "note.png")
	writeFile(t, p, []byte("content"))

	f, err := m.Resolve(p)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	rc, err := m.Open(f)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "content" {
		t.Errorf("content = %q", data)
	}
}

func TestOSFilesystemManager_FindFiles(t *testing.T) {
	m := NewOSFilesystemManager()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.png"), []byte("b"))
	writeFile(t, filepath.Join(dir, "a.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, ".DS_Store"), []byte("x"))
	writeFile(t, filepath.Join(dir, "draft.xcf"), []byte("x"))
	writeFile(t, filepath.Join(dir, "sub", "c.png"), []byte("c"))
	writeFile(t, filepath.Join(dir, IgnoreFileName), []byte("*.xcf\n"))

	names := func(files []*File) []string {
		out := make([]string, len(files))
		for i, f := range files {
			out[i] = f.Name
		}
		return out
	}

	tests := []struct {
		name      string
		recursive bool
		want      []string
	}{
		{"top level only", false, []string{"a.png", "b.png"}},
		{"recursive", true, []string{"a.png", "b.png", "c.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := m.FindFiles(dir, tt.recursive)
			if err != nil {
				t.Fatalf("FindFiles() error = %v", err)
			}
			got := names(files)
			if len(got) != len(tt.want) {
				t.Fatalf("FindFiles() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("FindFiles()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}
