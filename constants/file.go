package constants

import "strings"

const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// AllowedExtensions holds the file extensions accepted for extraction.
var AllowedExtensions = map[string]string{
	"pdf":  PDF,
	"png":  IMAGE,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
	"gif":  IMAGE,
	"bmp":  IMAGE,
	"tif":  IMAGE,
	"tiff": IMAGE,
	"webp": IMAGE,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF, IMAGE or "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}
