package file

import (
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const fallbackMimeType = "application/octet-stream"

// UploadPolicy holds the request-shape limits enforced before the service runs.
type UploadPolicy struct {
	// MaxFileSize in bytes; zero disables the check.
	MaxFileSize int64
	// AllowedMimeTypes; empty allows everything.
	AllowedMimeTypes []string
}

// CheckSize fails with ErrFileTooLarge when size exceeds the ceiling.
func (p UploadPolicy) CheckSize(size int64) error {
	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return p.tooLarge()
	}
	return nil
}

func (p UploadPolicy) tooLarge() error {
	return fmt.Errorf("%w: exceeds maximum allowed size of %s", ErrFileTooLarge, humanize.IBytes(uint64(p.MaxFileSize)))
}

// CheckMimeType fails with ErrMimeTypeNotAllowed when mimeType is not listed.
func (p UploadPolicy) CheckMimeType(mimeType string) error {
	if len(p.AllowedMimeTypes) == 0 {
		return nil
	}
	for _, allowed := range p.AllowedMimeTypes {
		if strings.EqualFold(allowed, mimeType) {
			return nil
		}
	}
	return fmt.Errorf("%w: '%s'", ErrMimeTypeNotAllowed, mimeType)
}

// ResolveMimeType returns the declared media type without parameters. When the
// part declares none, the content is sniffed.
func ResolveMimeType(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return strings.ToLower(mediaType)
		}
	}

	if len(data) == 0 {
		return fallbackMimeType
	}
	detected := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil && mediaType != "" {
		return mediaType
	}
	return fallbackMimeType
}
