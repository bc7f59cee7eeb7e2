package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveDataDir returns the directory holding the agent's local state:
// the event log database and the instance lock file.
func ResolveDataDir(cfg *Config) (string, error) {
	dir := strings.TrimSpace(cfg.Paths.DataDir)
	if dir == "" {
		home, err := resolveHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ConfigDir), nil
	}
	if strings.HasPrefix(dir, "~") {
		home, err := resolveHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, dir[1:]), nil
	}
	return dir, nil
}

// EnsureDataDir resolves the data directory and creates it if missing.
func EnsureDataDir(cfg *Config) (string, error) {
	dir, err := ResolveDataDir(cfg)
	if err != nil {
		return "", err
	}
	if err := EnsureDir(dir); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return dir, nil
}

// EventDBPath returns the path of the SQLite event log database.
func EventDBPath(cfg *Config) (string, error) {
	dir, err := ResolveDataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "timeline.db"), nil
}

// LockPath returns the path of the single-instance lock file.
func LockPath(cfg *Config) (string, error) {
	dir, err := ResolveDataDir(cfg)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "agent.lock"), nil
}
