package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// S3-compatible backend flavours.
const (
	KindS3 = "s3"
	KindR2 = "r2"
)

const (
	defaultS3Endpoint = "https://s3.amazonaws.com"
	defaultS3Region   = "us-east-1"
	r2Region          = "auto"
	defaultS3Timeout  = 60 * time.Second
)

// S3Options parameterizes an S3Provider.
type S3Options struct {
	Kind            string
	Region          string
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Endpoint        string
	Timeout         time.Duration
	// Transport overrides the HTTP transport; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// S3Provider talks to AWS S3 or Cloudflare R2 with SigV4-signed path-style requests.
// The signing client is built on first use, so construction never fails.
type S3Provider struct {
	opts S3Options

	once    sync.Once
	client  *signingClient
	initErr error
}

type signingClient struct {
	http     *http.Client
	signer   *v4.Signer
	creds    aws.CredentialsProvider
	endpoint string
	region   string
}

// NewS3Provider creates a provider for the given flavour.
func NewS3Provider(opts S3Options) *S3Provider {
	if opts.Kind == "" {
		opts.Kind = KindS3
	}
	return &S3Provider{opts: opts}
}

func (p *S3Provider) Name() string {
	if p.opts.Kind == KindR2 {
		return "s3-r2"
	}
	return "s3"
}

func (p *S3Provider) Upload(ctx context.Context, data []byte, fileName, mimeType string) (UploadResult, error) {
	client, err := p.ensureClient()
	if err != nil {
		return UploadResult{}, err
	}

	resp, err := client.do(context.WithoutCancel(ctx), http.MethodPut, p.objectURL(client, fileName), data, mimeType)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: put %s: %v", ErrWrite, fileName, err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadResult{}, fmt.Errorf("%w: put %s: status %d", ErrWrite, fileName, resp.StatusCode)
	}

	result := UploadResult{Path: fileName}
	if p.opts.PublicURL != "" {
		result.URL = p.URL(fileName)
	}
	return result, nil
}

// Delete treats 404 as success.
func (p *S3Provider) Delete(ctx context.Context, path string) error {
	client, err := p.ensureClient()
	if err != nil {
		return err
	}

	resp, err := client.do(context.WithoutCancel(ctx), http.MethodDelete, p.objectURL(client, path), nil, "")
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrDelete, path, err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: delete %s: status %d", ErrDelete, path, resp.StatusCode)
	}
	return nil
}

func (p *S3Provider) URL(path string) string {
	key := strings.TrimLeft(path, "/")
	if p.opts.PublicURL != "" {
		return strings.TrimRight(p.opts.PublicURL, "/") + "/" + key
	}
	if p.opts.Kind == KindR2 {
		return fmt.Sprintf("https://%s.r2.dev/%s", p.opts.BucketName, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", p.opts.BucketName, key)
}

func (p *S3Provider) Exists(ctx context.Context, path string) bool {
	client, err := p.ensureClient()
	if err != nil {
		return false
	}

	resp, err := client.do(ctx, http.MethodHead, p.objectURL(client, path), nil, "")
	if err != nil {
		return false
	}
	defer drain(resp)

	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (p *S3Provider) ensureClient() (*signingClient, error) {
	p.once.Do(func() {
		p.client, p.initErr = newSigningClient(p.opts)
	})
	return p.client, p.initErr
}

func (p *S3Provider) objectURL(client *signingClient, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return client.endpoint + "/" + url.PathEscape(p.opts.BucketName) + "/" + strings.Join(segments, "/")
}

func newSigningClient(opts S3Options) (*signingClient, error) {
	endpoint, region, err := resolveEndpoint(opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultS3Timeout
	}

	return &signingClient{
		http:     &http.Client{Timeout: timeout, Transport: opts.Transport},
		signer:   v4.NewSigner(),
		creds:    credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		endpoint: endpoint,
		region:   region,
	}, nil
}

// resolveEndpoint derives the API endpoint and signing region for a flavour.
func resolveEndpoint(opts S3Options) (string, string, error) {
	if opts.Kind == KindR2 {
		if opts.AccountID == "" {
			return "", "", fmt.Errorf("%w: R2 account id is required", ErrConfiguration)
		}
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID), r2Region, nil
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}
	region := opts.Region
	if region == "" {
		region = defaultS3Region
	}
	return strings.TrimRight(endpoint, "/"), region, nil
}

func (c *signingClient) do(ctx context.Context, method, objectURL string, body []byte, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, objectURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.ContentLength = int64(len(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	creds, err := c.creds.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieve credentials: %w", err)
	}

	err = c.signer.SignHTTP(ctx, creds, req, payloadHash, "s3", c.region, time.Now(), func(o *v4.SignerOptions) {
		// S3 expects the path escaped exactly once.
		o.DisableURIPathEscaping = true
	})
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	return c.http.Do(req)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
