package storage

import (
	"fmt"
	"strings"

	"github.com/abduss/filedrive/internal/config"
)

// NewProvider builds the provider selected by cfg.Provider. It performs no I/O.
func NewProvider(cfg config.StorageConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderLocal:
		if cfg.Local == nil {
			return nil, fmt.Errorf("%w: local storage configuration is required", ErrConfiguration)
		}
		return NewLocalProvider(cfg.Local.UploadDir, cfg.Local.PublicPath), nil
	case config.ProviderS3, config.ProviderR2:
		opts, err := remoteOptions(cfg)
		if err != nil {
			return nil, err
		}
		return NewS3Provider(opts), nil
	default:
		return nil, fmt.Errorf("%w: unsupported storage provider %q", ErrConfiguration, cfg.Provider)
	}
}

// remoteOptions maps the S3 or R2 block of cfg onto S3Options.
func remoteOptions(cfg config.StorageConfig) (S3Options, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderS3:
		if cfg.S3 == nil {
			return S3Options{}, fmt.Errorf("%w: s3 storage configuration is required", ErrConfiguration)
		}
		return S3Options{
			Kind:            KindS3,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			BucketName:      cfg.S3.BucketName,
			PublicURL:       cfg.S3.PublicURL,
			Endpoint:        cfg.S3.Endpoint,
			Timeout:         cfg.RequestTimeout,
		}, nil
	case config.ProviderR2:
		if cfg.R2 == nil {
			return S3Options{}, fmt.Errorf("%w: r2 storage configuration is required", ErrConfiguration)
		}
		return S3Options{
			Kind:            KindR2,
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicURL:       cfg.R2.PublicURL,
			Timeout:         cfg.RequestTimeout,
		}, nil
	default:
		return S3Options{}, fmt.Errorf("%w: provider %q has no bucket", ErrConfiguration, cfg.Provider)
	}
}
