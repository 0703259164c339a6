// Package paths resolves where breaklinks keeps its configuration and its
// content database.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user configuration directory.
const AppName = "breaklinks"

// DataDirName is the CWD-relative data directory used when nothing else is set.
const DataDirName = ".breaklinks-db"

// Environment overrides.
const (
	EnvConfigDir = "BREAKLINKS_CONFIG_DIR"
	EnvDataDir   = "BREAKLINKS_DATA_DIR"
)

// userDirs is swapped out in tests.
var userDirs = struct {
	home   func() (string, error)
	config func() (string, error)
	getwd  func() (string, error)
}{
	home:   os.UserHomeDir,
	config: os.UserConfigDir,
	getwd:  os.Getwd,
}

// DefaultConfigDir returns the per-user configuration directory:
// $XDG_CONFIG_HOME/breaklinks or ~/.config/breaklinks on Linux, and
// os.UserConfigDir()/breaklinks elsewhere.
func DefaultConfigDir() (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := userDirs.config()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := userDirs.home()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// ResolveConfigDir picks the first of: flag, $BREAKLINKS_CONFIG_DIR,
// DefaultConfigDir. Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstSet(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir picks the first of: flag, the config file's data_dir,
// $BREAKLINKS_DATA_DIR, $(CWD)/.breaklinks-db. The result is absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir := firstSet(flag, configValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := userDirs.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DataDirName), nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
