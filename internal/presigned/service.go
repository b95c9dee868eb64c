// Package presigned issues time-limited download links for stored files.
package presigned

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"time"
)

// S3 caps presigned URL lifetime at seven days.
const maxTTL = 7 * 24 * time.Hour

type objectPresigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// Link is a download URL. ExpiresAt is nil for permanent public URLs.
type Link struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Service signs GET requests against one bucket.
type Service struct {
	client  objectPresigner
	bucket  string
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewService builds a presigner for bucket. ttl is clamped to what S3 accepts.
func NewService(client objectPresigner, bucket string, ttl time.Duration) *Service {
	if ttl <= 0 || ttl > maxTTL {
		ttl = maxTTL
	}
	return &Service{
		client:  client,
		bucket:  bucket,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// GenerateGetURL signs a download of object that saves as downloadName.
func (s *Service) GenerateGetURL(ctx context.Context, object, downloadName string) (Link, error) {
	reqParams := make(url.Values)
	if downloadName != "" {
		reqParams.Set("response-content-disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	}

	expiresAt := s.nowFunc().Add(s.ttl)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, s.ttl, reqParams)
	if err != nil {
		return Link{}, fmt.Errorf("presign %s: %w", object, err)
	}

	return Link{URL: u.String(), ExpiresAt: &expiresAt}, nil
}
