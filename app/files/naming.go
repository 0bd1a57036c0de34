package files

import (
	"fmt"
	"strings"
	"time"
)

// TempSuffix marks an in-flight transfer. A file carrying it must never be
// treated as completed output.
const TempSuffix = ".tmp"

// FallbackFolder is used when a source has no usable title.
const FallbackFolder = "Unknown"

const timestampLayout = "2006-01-02_15-04-05"

// illegal filesystem characters, matching the set the ledger was built with.
// Changing it would break re-scan verification of previously completed files.
const illegalChars = `<>:"/\|?*`

// SanitizeName makes a label safe for use as a path segment. Empty or
// whitespace-only input maps to FallbackFolder.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return FallbackFolder
	}
	return replaceIllegal(name)
}

// PrefixedName derives the deterministic local filename for an item. The same
// inputs always produce the same name, so a re-scan regenerates the name of a
// previously downloaded file without consulting the ledger.
func PrefixedName(sentAt time.Time, originalName string, itemID int64, ext string) string {
	prefix := sentAt.UTC().Format(timestampLayout)
	if originalName != "" {
		return prefix + "_" + replaceIllegal(originalName)
	}
	return fmt.Sprintf("%s_file_%d%s", prefix, itemID, ext)
}

func replaceIllegal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(illegalChars, r) {
			b.WriteRune('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
