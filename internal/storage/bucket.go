package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/abduss/filedrive/internal/config"
	"github.com/minio/minio-go/v7"
	minioCreds "github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectStoreTimeout = 5 * time.Second

// Bucket identifies the remote bucket behind an S3 or R2 configuration.
type Bucket struct {
	Name   string
	Region string
}

// NewMinIOClient establishes a MinIO client against the configured S3 or R2 endpoint.
// Local storage has no bucket and yields ErrConfiguration.
func NewMinIOClient(cfg config.StorageConfig) (*minio.Client, Bucket, error) {
	opts, err := remoteOptions(cfg)
	if err != nil {
		return nil, Bucket{}, err
	}

	endpoint, region, err := resolveEndpoint(opts)
	if err != nil {
		return nil, Bucket{}, err
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, Bucket{}, fmt.Errorf("%w: invalid endpoint %q", ErrConfiguration, endpoint)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:        minioCreds.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:       u.Scheme == "https",
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, Bucket{}, fmt.Errorf("create minio client: %w", err)
	}

	return client, Bucket{Name: opts.BucketName, Region: region}, nil
}

// EnsureBucket ensures the target bucket exists, creating it if necessary.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket Bucket) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket.Name)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}

	if exists {
		return nil
	}

	if err := client.MakeBucket(ctx, bucket.Name, minio.MakeBucketOptions{Region: bucket.Region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket.Name, err)
	}

	return nil
}

// ProbeBucket fails unless the bucket is reachable and present.
func ProbeBucket(ctx context.Context, client *minio.Client, bucket Bucket) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket.Name)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", bucket.Name)
	}
	return nil
}
