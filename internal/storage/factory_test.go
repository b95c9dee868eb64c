package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abduss/filedrive/internal/config"
)

func TestNewProviderLocal(t *testing.T) {
	p, err := NewProvider(config.StorageConfig{
		Provider: config.ProviderLocal,
		Local:    &config.LocalStorageConfig{UploadDir: "/u", PublicPath: "/up"},
	})
	require.NoError(t, err)

	assert.Equal(t, "local", p.Name())
	assert.Equal(t, "/up/a/b.png", p.URL("a/b.png"))
}

func TestNewProviderS3AndR2(t *testing.T) {
	s3, err := NewProvider(config.StorageConfig{
		Provider: config.ProviderS3,
		S3:       &config.S3StorageConfig{BucketName: "assets"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", s3.Name())

	r2, err := NewProvider(config.StorageConfig{
		Provider: "R2",
		R2:       &config.R2StorageConfig{AccountID: "acct", BucketName: "media"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3-r2", r2.Name())
}

func TestNewProviderMissingBlock(t *testing.T) {
	for _, provider := range []string{config.ProviderLocal, config.ProviderS3, config.ProviderR2} {
		t.Run(provider, func(t *testing.T) {
			_, err := NewProvider(config.StorageConfig{Provider: provider})
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(config.StorageConfig{Provider: "gcs"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewProviderR2WithoutAccountIsLazy(t *testing.T) {
	p, err := NewProvider(config.StorageConfig{
		Provider: config.ProviderR2,
		R2:       &config.R2StorageConfig{BucketName: "media"},
	})
	require.NoError(t, err)

	_, err = p.Upload(context.Background(), []byte("x"), "a.png", "image/png")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestInstrumentDelegates(t *testing.T) {
	dir := t.TempDir()
	p := Instrument(NewLocalProvider(dir, "/uploads"))
	ctx := context.Background()

	res, err := p.Upload(ctx, []byte("x"), "a.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a.txt", res.URL)
	assert.True(t, p.Exists(ctx, "a.txt"))
	require.NoError(t, p.Delete(ctx, "a.txt"))
	assert.Equal(t, "local", p.Name())
}

func TestNewMinIOClientRejectsLocal(t *testing.T) {
	_, _, err := NewMinIOClient(config.StorageConfig{Provider: config.ProviderLocal})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewMinIOClientR2(t *testing.T) {
	client, bucket, err := NewMinIOClient(config.StorageConfig{
		Provider: config.ProviderR2,
		R2:       &config.R2StorageConfig{AccountID: "acct", AccessKeyID: "k", SecretAccessKey: "s", BucketName: "media"},
	})
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, Bucket{Name: "media", Region: "auto"}, bucket)
	assert.Equal(t, "acct.r2.cloudflarestorage.com", client.EndpointURL().Host)
}
