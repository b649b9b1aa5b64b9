package logging

import (
	"os"
	"path/filepath"
)

// DefaultDataDir returns ~/.archivesearch, falling back to the temp dir.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".archivesearch")
	}
	return filepath.Join(home, ".archivesearch")
}

// LogDir returns the log directory under dataDir (DefaultDataDir when empty).
func LogDir(dataDir string) string {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the server log path under dataDir.
func LogPath(dataDir string) string {
	return filepath.Join(LogDir(dataDir), "server.log")
}
