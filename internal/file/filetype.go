package file

import "strings"

// Coarse file categories.
const (
	TypeImage       = "image"
	TypeVideo       = "video"
	TypeAudio       = "audio"
	TypeText        = "text"
	TypeApplication = "application"
	TypeOther       = "other"
)

// FileTypeFromMime derives the coarse category from the top-level MIME token.
func FileTypeFromMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return TypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return TypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return TypeAudio
	case strings.HasPrefix(mimeType, "text"):
		return TypeText
	case strings.HasPrefix(mimeType, "application/"):
		return TypeApplication
	default:
		return TypeOther
	}
}
