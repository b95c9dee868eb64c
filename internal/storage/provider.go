// Package storage abstracts the binary object backends (local disk, S3, R2)
// behind one Provider contract.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrConfiguration signals a missing or invalid provider configuration.
	ErrConfiguration = errors.New("storage configuration error")
	// ErrWrite signals that an object could not be written.
	ErrWrite = errors.New("storage write failed")
	// ErrDelete signals that an object could not be removed.
	ErrDelete = errors.New("storage delete failed")
)

// UploadResult describes a stored object.
type UploadResult struct {
	// Path is the canonical provider-relative path of the object.
	Path string
	// URL is the absolute public URL, empty when the provider has no public serving configured.
	URL string
}

// Provider is implemented by every storage backend.
type Provider interface {
	// Name identifies the backend in file records and metrics.
	Name() string
	// Upload writes data under fileName, creating intermediate structure as needed.
	// Failures wrap ErrWrite and are not retried.
	Upload(ctx context.Context, data []byte, fileName, mimeType string) (UploadResult, error)
	// Delete removes the object at path. A missing object is not an error.
	Delete(ctx context.Context, path string) error
	// URL derives a best-effort public URL for path without any I/O.
	URL(path string) string
	// Exists reports whether the object is present; probe failures report false.
	Exists(ctx context.Context, path string) bool
}
