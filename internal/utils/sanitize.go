package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var slugReg = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a station or program name into a stable identifier
// usable as socket path prefix and config namespace.
func Slugify(name string) string {
	clean := slugReg.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(clean, "_")
}

// CleanFilename strips the extension and separators from a sound file
// name, to be used as a fallback title.
func CleanFilename(filename string) string {
	ext := filepath.Ext(filename)
	clean := strings.TrimSuffix(filepath.Base(filename), ext)
	clean = strings.ReplaceAll(clean, "_", " ")
	clean = strings.ReplaceAll(clean, "-", " ")
	return strings.TrimSpace(clean)
}
