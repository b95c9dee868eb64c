package file

import (
	"time"

	"github.com/google/uuid"
)

// Record is the persisted metadata for one uploaded object.
type Record struct {
	ID              uuid.UUID  `json:"id"`
	OriginalName    string     `json:"original_name"`
	FileName        string     `json:"file_name"`
	MimeType        string     `json:"mime_type"`
	FileType        string     `json:"file_type"`
	Size            int64      `json:"size"`
	Path            string     `json:"path"`
	URL             *string    `json:"url,omitempty"`
	StorageProvider string     `json:"storage_provider"`
	UploadedBy      *uuid.UUID `json:"uploaded_by,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// OwnedBy reports whether userID uploaded the record.
func (r Record) OwnedBy(userID uuid.UUID) bool {
	return r.UploadedBy != nil && *r.UploadedBy == userID
}

// AccessibleBy applies the owner-or-admin rule.
func (r Record) AccessibleBy(userID uuid.UUID, isAdmin bool) bool {
	return isAdmin || r.OwnedBy(userID)
}

// RequestMeta carries the caller identity recorded in audit events.
type RequestMeta struct {
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
}
