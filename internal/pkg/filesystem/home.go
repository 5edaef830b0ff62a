package filesystem

import (
	"os"
	"path/filepath"
)

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// UserConfigDir returns the platform config directory ($XDG_CONFIG_HOME,
// ~/Library/Application Support, %AppData%), falling back to ~/.config.
func UserConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return filepath.Join(UserHomeDir(), ".config")
}
