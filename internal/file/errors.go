package file

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation is the parent of every request-shape violation.
	ErrValidation = errors.New("invalid upload")
	// ErrNoFile signals that the request carried no file part.
	ErrNoFile = fmt.Errorf("%w: no files provided", ErrValidation)
	// ErrMultipleFiles signals more than one file part.
	ErrMultipleFiles = fmt.Errorf("%w: only one file can be uploaded at a time", ErrValidation)
	// ErrFileTooLarge signals that the upload exceeds configured limits.
	ErrFileTooLarge = fmt.Errorf("%w: file too large", ErrValidation)
	// ErrMimeTypeNotAllowed signals a MIME type outside the allow-list.
	ErrMimeTypeNotAllowed = fmt.Errorf("%w: file type not allowed", ErrValidation)

	// ErrRecordPersistence signals that the insert returned no row.
	ErrRecordPersistence = errors.New("failed to create file record")
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrForbidden signals that the caller neither owns the file nor is an admin.
	ErrForbidden = errors.New("access denied")
)

// RateLimitError is returned when a user has exhausted the upload window.
type RateLimitError struct {
	CurrentCount int
	Limit        int
	Window       time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("upload rate limit exceeded. Maximum %d uploads per %s. Current count: %d",
		e.Limit, windowText(e.Window), e.CurrentCount)
}

// windowText renders whole-minute windows as "N minutes", anything else as a Go duration.
func windowText(d time.Duration) string {
	if d < time.Minute || d%time.Minute != 0 {
		return d.String()
	}
	n := int64(d / time.Minute)
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
