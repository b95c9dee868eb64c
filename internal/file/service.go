package file

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/audit"
	"github.com/abduss/filedrive/internal/metrics"
	"github.com/abduss/filedrive/internal/storage"
)

const (
	defaultListLimit = 50
	auditCategory    = "file"
	auditTargetType  = "file"
)

type recordStore interface {
	Create(ctx context.Context, rec Record) (Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, error)
}

type auditRecorder interface {
	Record(ctx context.Context, e audit.Event)
}

// Service manages the file lifecycle against one storage provider.
// Size, MIME and ownership checks are the caller's responsibility.
type Service struct {
	repo     recordStore
	provider storage.Provider
	audit    auditRecorder
	log      *zap.Logger

	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// NewService constructs a file service.
func NewService(repo recordStore, provider storage.Provider, recorder auditRecorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		provider: provider,
		audit:    recorder,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewV7,
	}
}

// UploadFile writes data to storage, then inserts the record. When the insert
// fails the stored object is removed again.
func (s *Service) UploadFile(ctx context.Context, data []byte, originalName, mimeType string, meta RequestMeta) (Record, error) {
	rec, err := s.upload(ctx, data, originalName, mimeType, meta)
	metrics.ObserveUpload(s.provider.Name(), err)
	if err != nil {
		s.audit.Record(ctx, audit.Event{
			UserID:     meta.UserID,
			Category:   auditCategory,
			Action:     "upload",
			TargetType: auditTargetType,
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
			Status:     audit.StatusFailure,
			Details: map[string]any{
				"originalName": originalName,
				"mimeType":     mimeType,
				"size":         humanize.IBytes(uint64(len(data))),
				"error":        err.Error(),
			},
		})
		return Record{}, err
	}

	s.audit.Record(ctx, audit.Event{
		UserID:     meta.UserID,
		Category:   auditCategory,
		Action:     "upload",
		TargetType: auditTargetType,
		TargetID:   rec.ID.String(),
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Status:     audit.StatusSuccess,
		Details: map[string]any{
			"originalName":    originalName,
			"fileName":        rec.FileName,
			"mimeType":        mimeType,
			"size":            humanize.IBytes(uint64(rec.Size)),
			"storageProvider": rec.StorageProvider,
		},
	})
	return rec, nil
}

func (s *Service) upload(ctx context.Context, data []byte, originalName, mimeType string, meta RequestMeta) (Record, error) {
	id, err := s.newID()
	if err != nil {
		return Record{}, fmt.Errorf("generate file id: %w", err)
	}
	fileName, err := s.storageName(originalName)
	if err != nil {
		return Record{}, err
	}

	stored, err := s.provider.Upload(ctx, data, fileName, mimeType)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:              id,
		OriginalName:    originalName,
		FileName:        fileName,
		MimeType:        mimeType,
		FileType:        FileTypeFromMime(mimeType),
		Size:            int64(len(data)),
		Path:            stored.Path,
		StorageProvider: s.provider.Name(),
		UploadedBy:      meta.UserID,
		IsActive:        true,
	}
	if stored.URL != "" {
		rec.URL = &stored.URL
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		if delErr := s.provider.Delete(ctx, stored.Path); delErr != nil {
			s.log.Warn("failed to remove orphaned object",
				zap.String("path", stored.Path),
				zap.String("provider", s.provider.Name()),
				zap.Error(delErr),
			)
		}
		return Record{}, err
	}
	return created, nil
}

// storageName builds YYYY-MM-DD/{id}{ext} with an id distinct from the record id.
func (s *Service) storageName(originalName string) (string, error) {
	objectID, err := s.newID()
	if err != nil {
		return "", fmt.Errorf("generate storage id: %w", err)
	}
	return fmt.Sprintf("%s/%s%s", s.now().Format("2006-01-02"), objectID, filepath.Ext(originalName)), nil
}

// GetFile looks up a record. Lookup failures are reported as not found.
func (s *Service) GetFile(ctx context.Context, id uuid.UUID) (Record, bool) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrFileNotFound) {
			s.log.Warn("file lookup failed", zap.String("file_id", id.String()), zap.Error(err))
		}
		return Record{}, false
	}
	return rec, true
}

// DeleteFile removes the stored object and the record. It returns false when
// the record does not exist. A storage failure is logged and does not stop the
// record from being removed.
func (s *Service) DeleteFile(ctx context.Context, id uuid.UUID, meta RequestMeta) (bool, error) {
	rec, ok := s.GetFile(ctx, id)
	if !ok {
		return false, nil
	}

	storageErr := s.provider.Delete(ctx, rec.Path)
	metrics.ObserveDelete(s.provider.Name(), storageErr)
	if storageErr != nil {
		s.log.Error("failed to delete file from storage",
			zap.String("file_id", id.String()),
			zap.String("path", rec.Path),
			zap.Error(storageErr),
		)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}

	s.audit.Record(ctx, audit.Event{
		UserID:     meta.UserID,
		Category:   auditCategory,
		Action:     "delete",
		TargetType: auditTargetType,
		TargetID:   id.String(),
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		Status:     audit.StatusSuccess,
		Details: map[string]any{
			"originalName": rec.OriginalName,
			"fileName":     rec.FileName,
			"mimeType":     rec.MimeType,
			"size":         rec.Size,
		},
	})
	return true, nil
}

// GetFilesByUser pages through a user's active records, newest first.
func (s *Service) GetFilesByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
