package utils

import (
	"fmt"
	"os"
	"path/filepath"

	coreconfig "github.com/postpilot/postpilot/core/config"
)

// CreateFolder creates every given folder, parents included.
func CreateFolder(folders ...string) error {
	for _, folder := range folders {
		if err := os.MkdirAll(folder, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", folder, err)
		}
	}
	return nil
}

// MediaPath resolves a stored media reference against the media directory.
// Absolute references are used as-is.
func MediaPath(ref string) string {
	if filepath.IsAbs(ref) || coreconfig.Global == nil {
		return ref
	}
	return filepath.Join(coreconfig.Global.Paths.Media, ref)
}
