package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstanceID: "test-instance-abc",
		BaseDir:    "/home/user/.local/share/capsule",
		LogDir:     "/home/user/.local/share/capsule/log",
		LogLevel:   "debug",
		Server: ServerConfig{
			Addr:          ":9000",
			SessionSecret: "00ff",
			UploadMaxSize: 1024,
		},
		Vaults: []VaultConfig{
			{Type: "s3", Name: "remote", S3Bucket: "capsules", S3Endpoint: "http://localhost:4566", S3UsePathStyle: true},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/capsule/keys/capsule.pub",
			PrivateKeyPath: "/home/user/.local/share/capsule/keys/capsule.key",
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/capsule/db"},
		Staging:  StagingConfig{Type: "memory", MaxSize: 2048},
		Gallery:  GalleryConfig{Source: "sample"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstanceID != original.InstanceID {
		t.Errorf("InstanceID = %q, want %q", got.InstanceID, original.InstanceID)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.Server != original.Server {
		t.Errorf("Server = %+v, want %+v", got.Server, original.Server)
	}
	if len(got.Vaults) != 1 {
		t.Fatalf("len(Vaults) = %d, want 1", len(got.Vaults))
	}
	if got.Vaults[0] != original.Vaults[0] {
		t.Errorf("Vaults[0] = %+v, want %+v", got.Vaults[0], original.Vaults[0])
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Staging.MaxSize != 2048 {
		t.Errorf("Staging.MaxSize = %d, want %d", got.Staging.MaxSize, 2048)
	}
	if got.Gallery.Source != "sample" {
		t.Errorf("Gallery.Source = %q, want %q", got.Gallery.Source, "sample")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("inst-1", "/data/capsule")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"InstanceID", cfg.InstanceID, "inst-1"},
		{"BaseDir", cfg.BaseDir, "/data/capsule"},
		{"LogDir", cfg.LogDir, "/data/capsule/log"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"Encryption.Type", cfg.Encryption.Type, "none"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/capsule/keys/capsule.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/capsule/keys/capsule.key"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/capsule/db"},
		{"Staging.StagingDir", cfg.Staging.StagingDir, "/data/capsule/staging"},
		{"Gallery.Source", cfg.Gallery.Source, "database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}

	if len(cfg.Vaults) != 1 || cfg.Vaults[0].FSVaultRoot != "/data/capsule/vault" {
		t.Errorf("Vaults = %+v, want one filesystem vault under base dir", cfg.Vaults)
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file readable only by owner", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "capsule.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "capsule.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "capsule.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstanceID != "read-test" {
			t.Errorf("InstanceID = %q, want %q", got.InstanceID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/capsule.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
