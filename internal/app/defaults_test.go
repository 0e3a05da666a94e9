package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name       string
		env        map[string]string
		wantConfig string
		wantBase   string
	}{
		{
			name: "explicit overrides",
			env: map[string]string{
				"CAPSULE_CONFIG_PATH": "/custom/config.toml",
				"CAPSULE_HOME":        "/custom/capsule",
				"XDG_CONFIG_HOME":     "/xdg/config",
				"XDG_DATA_HOME":       "/xdg/data",
			},
			wantConfig: "/custom/config.toml",
			wantBase:   "/custom/capsule",
		},
		{
			name: "xdg directories",
			env: map[string]string{
				"XDG_CONFIG_HOME": "/xdg/config",
				"XDG_DATA_HOME":   "/xdg/data",
			},
			wantConfig: "/xdg/config/capsule.toml",
			wantBase:   "/xdg/data/capsule",
		},
		{
			name:       "home directory",
			env:        map[string]string{},
			wantConfig: filepath.Join(home, ".config", "capsule.toml"),
			wantBase:   filepath.Join(home, ".local", "share", "capsule"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"CAPSULE_CONFIG_PATH", "CAPSULE_HOME", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(k, tt.env[k])
			}

			d, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if d.ConfigPath != tt.wantConfig {
				t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, tt.wantConfig)
			}
			if d.BaseDir != tt.wantBase {
				t.Errorf("BaseDir = %q, want %q", d.BaseDir, tt.wantBase)
			}
			if want := filepath.Join(tt.wantBase, "log"); d.LogDir != want {
				t.Errorf("LogDir = %q, want %q", d.LogDir, want)
			}
		})
	}
}
