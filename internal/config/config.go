package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage provider discriminants accepted by the factory.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
	ProviderR2    = "r2"
)

// EnvDevelopment is the only environment allowed to run with the built-in token secret.
const EnvDevelopment = "development"

// DefaultAccessTokenSecret is used when FILEDRIVE_JWT_SECRET is unset in development.
const DefaultAccessTokenSecret = "change-me-to-a-32-byte-secret"

// Config aggregates runtime configuration for the file service.
type Config struct {
	Environment string
	Server      ServerConfig
	Postgres    PostgresConfig
	Cache       CacheConfig
	Auth        AuthConfig
	Metrics     MetricsConfig
	Files       FilesConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MigrationURL returns the DSN in the form expected by the pgx5 migrate driver.
func (p PostgresConfig) MigrationURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// CacheConfig selects the key-value store backing the upload rate limiter.
type CacheConfig struct {
	Driver        string // redis | memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration
	MemorySize    int
	MemoryMaxTTL  time.Duration
}

// AuthConfig groups access-token validation settings.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenTTL    time.Duration
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// FilesConfig is the file manager configuration surface.
type FilesConfig struct {
	Storage          StorageConfig
	MaxFileSize      int64
	AllowedMimeTypes []string
	UploadRateLimit  *RateLimitConfig
	DownloadURLTTL   time.Duration
}

// RateLimitConfig bounds uploads per user within a fixed window.
type RateLimitConfig struct {
	MaxUploadsPerWindow int
	WindowSize          time.Duration
}

// StorageConfig selects and parameterizes one storage provider.
// Only the block matching Provider is required.
type StorageConfig struct {
	Provider       string
	Local          *LocalStorageConfig
	S3             *S3StorageConfig
	R2             *R2StorageConfig
	RequestTimeout time.Duration
	EnsureBucket   bool
}

// LocalStorageConfig stores files on the local filesystem.
type LocalStorageConfig struct {
	UploadDir  string
	PublicPath string
}

// S3StorageConfig targets AWS S3 or any S3-compatible endpoint.
type S3StorageConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Endpoint        string
}

// R2StorageConfig targets Cloudflare R2.
type R2StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	files, err := loadFilesConfig()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment: strings.ToLower(getString("FILEDRIVE_ENV", EnvDevelopment)),
		Server: ServerConfig{
			Host:         getString("FILEDRIVE_API_HOST", "0.0.0.0"),
			Port:         getInt("FILEDRIVE_API_PORT", 8080),
			ReadTimeout:  getDuration("FILEDRIVE_API_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("FILEDRIVE_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDuration("FILEDRIVE_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "filedrive"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "filedrive"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		Cache: CacheConfig{
			Driver:        strings.ToLower(getString("CACHE_DRIVER", "memory")),
			RedisAddr:     getString("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getString("REDIS_PASSWORD", ""),
			RedisDB:       getInt("REDIS_DB", 0),
			RedisTimeout:  getDuration("REDIS_TIMEOUT", 3*time.Second),
			MemorySize:    getInt("CACHE_MEMORY_SIZE", 10000),
			MemoryMaxTTL:  getDuration("CACHE_MEMORY_MAX_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			AccessTokenSecret: getString("FILEDRIVE_JWT_SECRET", DefaultAccessTokenSecret),
			AccessTokenTTL:    getDuration("FILEDRIVE_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("FILEDRIVE_METRICS_PATH", "/metrics"),
		},
		Files: files,
	}

	if _, ok := os.LookupEnv("FILEDRIVE_JWT_SECRET"); !ok && cfg.Environment != EnvDevelopment {
		return Config{}, fmt.Errorf("FILEDRIVE_JWT_SECRET must be set in %s environment", cfg.Environment)
	}
	if cfg.Auth.AccessTokenSecret == "" {
		return Config{}, fmt.Errorf("FILEDRIVE_JWT_SECRET must not be empty")
	}

	switch cfg.Cache.Driver {
	case "redis", "memory":
	default:
		return Config{}, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}

	return cfg, nil
}

func loadFilesConfig() (FilesConfig, error) {
	files := FilesConfig{
		Storage: StorageConfig{
			Provider:       strings.ToLower(getString("FILE_STORAGE_PROVIDER", ProviderLocal)),
			RequestTimeout: getDuration("FILE_STORAGE_REQUEST_TIMEOUT", 60*time.Second),
			EnsureBucket:   getBool("FILE_STORAGE_ENSURE_BUCKET", false),
			Local: &LocalStorageConfig{
				UploadDir:  getString("FILE_LOCAL_UPLOAD_DIR", "./uploads"),
				PublicPath: getString("FILE_LOCAL_PUBLIC_PATH", "/uploads"),
			},
		},
		MaxFileSize:      getInt64("FILE_MAX_SIZE", 0),
		AllowedMimeTypes: getList("FILE_ALLOWED_MIME_TYPES"),
		DownloadURLTTL:   getDuration("FILE_DOWNLOAD_URL_TTL", 15*time.Minute),
	}

	if anySet("S3_REGION", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_BUCKET_NAME", "S3_PUBLIC_URL", "S3_ENDPOINT") {
		files.Storage.S3 = &S3StorageConfig{
			Region:          getString("S3_REGION", ""),
			AccessKeyID:     getString("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getString("S3_SECRET_ACCESS_KEY", ""),
			BucketName:      getString("S3_BUCKET_NAME", ""),
			PublicURL:       getString("S3_PUBLIC_URL", ""),
			Endpoint:        getString("S3_ENDPOINT", ""),
		}
	}

	if anySet("R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_URL") {
		files.Storage.R2 = &R2StorageConfig{
			AccountID:       getString("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getString("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getString("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getString("R2_BUCKET_NAME", ""),
			PublicURL:       getString("R2_PUBLIC_URL", ""),
		}
	}

	maxUploads := getInt("FILE_UPLOAD_RATE_LIMIT_MAX", 100)
	window := getDuration("FILE_UPLOAD_RATE_LIMIT_WINDOW", time.Minute)
	if maxUploads > 0 {
		if window < time.Millisecond {
			return FilesConfig{}, fmt.Errorf("upload rate limit window must be positive, got %s", window)
		}
		files.UploadRateLimit = &RateLimitConfig{
			MaxUploadsPerWindow: maxUploads,
			WindowSize:          window,
		}
	}

	return files, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getList splits a comma-separated variable, dropping empty items.
func getList(key string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func anySet(keys ...string) bool {
	for _, key := range keys {
		if _, ok := os.LookupEnv(key); ok {
			return true
		}
	}
	return false
}
