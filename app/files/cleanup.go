package files

import (
	"log/slog"
	"os"
	"path/filepath"
)

// RemoveTempFiles deletes leftover in-flight artifacts from a previous
// ungraceful shutdown. Only files carrying TempSuffix are touched; a missing
// folder is not an error.
func RemoveTempFiles(folder string) (int, error) {
	if _, err := os.Stat(folder); os.IsNotExist(err) {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(folder, "*"+TempSuffix))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			slog.Error("Failed to remove temporary file", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Warn("Removed leftover temporary files", "folder", folder, "count", removed)
	}

	return removed, nil
}
