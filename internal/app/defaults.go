package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths used when the config file does not say otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves the default paths. CAPSULE_CONFIG_PATH and
// CAPSULE_HOME override them directly; otherwise the XDG base directories
// are used, falling back to ~/.config and ~/.local/share.
func GetDefaults() (*Defaults, error) {
	configPath, err := envPath("CAPSULE_CONFIG_PATH", "XDG_CONFIG_HOME", ".config", "capsule.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envPath("CAPSULE_HOME", "XDG_DATA_HOME", filepath.Join(".local", "share"), "capsule")
	if err != nil {
		return nil, err
	}
	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

func envPath(override, xdgVar, homeRel, name string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, homeRel, name), nil
}
