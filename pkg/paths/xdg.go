// Package paths provides XDG-compliant path resolution for bnb.
//
// Resolution order:
// 1. BNB_HOME (portable root) → $BNB_HOME/{config,state,cache}
// 2. XDG env vars → $XDG_*_HOME/bnb
// 3. Platform defaults → ~/.config/bnb, ~/.local/state/bnb, ~/.cache/bnb
package paths

import (
	"os"
	"path/filepath"
)

const appName = "bnb"

func home(sub, xdgVar string, fallback ...string) string {
	if root := os.Getenv("BNB_HOME"); root != "" {
		return filepath.Join(root, sub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		parts := append([]string{homeDir}, fallback...)
		return filepath.Join(append(parts, appName)...)
	}
	return ""
}

// ConfigDir returns the bnb configuration directory.
// Used for the global bnb.yml.
func ConfigDir() string {
	return home("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the bnb state directory.
// Used for the durable session file and logs.
func StateDir() string {
	return home("state", "XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the bnb cache directory.
func CacheDir() string {
	return home("cache", "XDG_CACHE_HOME", ".cache")
}

// SessionFile returns the default path of the file-backed session store.
func SessionFile() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "session.yml")
}

// LogDir returns the directory for component log files.
func LogDir() string {
	dir := StateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "logs")
}

// EnsureDirs creates all bnb directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{ConfigDir(), StateDir(), CacheDir()} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
