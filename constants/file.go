package constants

import (
	"path/filepath"
	"strings"
)

// Format is the coarse document classification used by the pipeline.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// AllowedExtensions holds the default allowed file extensions for invoice intake.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a Format; "" when unsupported.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "bmp", "tif", "tiff":
		return IMAGE
	default:
		return ""
	}
}

// FormatOf classifies a file path by its extension.
func FormatOf(path string) Format {
	return MapExtToFormat(filepath.Ext(path))
}

// IsVisionModel reports whether a model identifier names a vision-capable
// model family.
func IsVisionModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "moondream") || strings.Contains(m, "llava")
}
