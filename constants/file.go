package constants

import "strings"

// MaxUploadBytes is the hard limit for a single selected file (10 MiB).
const MaxUploadBytes int64 = 10 * 1024 * 1024

const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEPDF  = "application/pdf"
)

// AllowedMIMETypes holds the types accepted after normalization.
var AllowedMIMETypes = map[string]struct{}{
	MIMEJPEG: {},
	MIMEPNG:  {},
	MIMEPDF:  {},
}

// AllowedExtensions maps the accepted file extensions to their MIME type.
var AllowedExtensions = map[string]string{
	"pdf":  MIMEPDF,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"heic": MIMEJPEG,
	"heif": MIMEJPEG,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtForMIME returns the canonical extension (with dot) for an allowed type.
func ExtForMIME(mimeType string) string {
	switch mimeType {
	case MIMEPDF:
		return ".pdf"
	case MIMEPNG:
		return ".png"
	case MIMEJPEG:
		return ".jpg"
	}
	return ""
}
