package storage

import (
	"context"
	"time"

	"github.com/abduss/filedrive/internal/metrics"
)

type instrumented struct {
	Provider
}

// Instrument wraps p so every I/O operation is timed in the storage metrics.
func Instrument(p Provider) Provider {
	return instrumented{Provider: p}
}

func (i instrumented) Upload(ctx context.Context, data []byte, fileName, mimeType string) (UploadResult, error) {
	started := time.Now()
	res, err := i.Provider.Upload(ctx, data, fileName, mimeType)
	metrics.ObserveStorageOperation(i.Name(), "upload", started, err)
	return res, err
}

func (i instrumented) Delete(ctx context.Context, path string) error {
	started := time.Now()
	err := i.Provider.Delete(ctx, path)
	metrics.ObserveStorageOperation(i.Name(), "delete", started, err)
	return err
}

func (i instrumented) Exists(ctx context.Context, path string) bool {
	started := time.Now()
	ok := i.Provider.Exists(ctx, path)
	metrics.ObserveStorageLookup(i.Name(), started, ok)
	return ok
}
