package models

import (
	"os"
	"path/filepath"
	"runtime"
)

// getDefaultDataDir returns the platform data directory for appName:
//   - Linux and other Unix: $XDG_DATA_HOME/<app>/models or ~/.local/share/<app>/models
//   - macOS: ~/Library/Application Support/<app>/models
//   - Windows: %APPDATA%\<app>\models
func getDefaultDataDir(appName string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName, "models"), nil
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", appName, "models"), nil
	default:
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, appName, "models"), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "AppData", "Roaming", appName, "models"), nil
	}
	return filepath.Join(home, ".local", "share", appName, "models"), nil
}
