package config

import (
	"os"
	"path/filepath"
)

// DBPath returns the sqlite database path inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "messages.db")
}

// LogDir returns the log directory inside the data dir.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// LogPath returns the daemon log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogDir(), "msgd.log")
}

// EnsureDirs creates the data directory tree with owner-only permissions.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.DataDir, c.LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
