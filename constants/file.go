package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for contract ingestion.
// Segmentation needs page geometry, so only native PDFs qualify.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExtension reports whether an extension (with or without dot) is
// accepted for ingestion.
func IsAllowedExtension(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
