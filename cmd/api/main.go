package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/audit"
	"github.com/abduss/filedrive/internal/auth"
	"github.com/abduss/filedrive/internal/cache"
	"github.com/abduss/filedrive/internal/config"
	"github.com/abduss/filedrive/internal/database"
	"github.com/abduss/filedrive/internal/file"
	"github.com/abduss/filedrive/internal/logger"
	"github.com/abduss/filedrive/internal/metrics"
	"github.com/abduss/filedrive/internal/presigned"
	"github.com/abduss/filedrive/internal/ratelimit"
	"github.com/abduss/filedrive/internal/server"
	"github.com/abduss/filedrive/internal/storage"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("filedrive api stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.AccessTokenSecret == config.DefaultAccessTokenSecret {
		log.Warn("using the built-in token secret; set FILEDRIVE_JWT_SECRET outside development")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	if err := database.Migrate(cfg.Postgres.MigrationURL(), log); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbPool.Close()

	readiness := []server.ReadinessCheck{{Component: "postgres", Check: dbPool.Ping}}

	var store cache.Store
	switch cfg.Cache.Driver {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisStore := cache.NewRedisStore(client)
		store = redisStore
		readiness = append(readiness, server.ReadinessCheck{Component: "cache", Check: redisStore.Ping})
	default:
		memoryStore := cache.NewMemoryStore(cfg.Cache.MemorySize, cfg.Cache.MemoryMaxTTL)
		store = memoryStore
		readiness = append(readiness, server.ReadinessCheck{Component: "cache", Check: memoryStore.Ping})
	}

	// fail fast on a broken storage block; per-request providers are built the same way
	if _, err := storage.NewProvider(cfg.Files.Storage); err != nil {
		return fmt.Errorf("storage provider: %w", err)
	}
	providers := func() (storage.Provider, error) {
		p, err := storage.NewProvider(cfg.Files.Storage)
		if err != nil {
			return nil, err
		}
		return storage.Instrument(p), nil
	}

	var linkSigner *presigned.Service
	if cfg.Files.Storage.Provider != config.ProviderLocal {
		minioClient, bucket, err := storage.NewMinIOClient(cfg.Files.Storage)
		if err != nil {
			return fmt.Errorf("connect object storage: %w", err)
		}
		if cfg.Files.Storage.EnsureBucket {
			if err := storage.EnsureBucket(ctx, minioClient, bucket); err != nil {
				return fmt.Errorf("ensure bucket: %w", err)
			}
		}
		readiness = append(readiness, server.ReadinessCheck{
			Component: "object_storage",
			Check:     func(ctx context.Context) error { return storage.ProbeBucket(ctx, minioClient, bucket) },
		})
		linkSigner = presigned.NewService(minioClient, bucket.Name, cfg.Files.DownloadURLTTL)
	}

	var limiter *ratelimit.UploadLimiter
	if rl := cfg.Files.UploadRateLimit; rl != nil {
		limiter = ratelimit.NewUploadLimiter(store, rl.MaxUploadsPerWindow, rl.WindowSize, log.Named("ratelimit"))
	}

	recorder := audit.NewRecorder(audit.NewPostgresSink(dbPool), log.Named("audit"))
	fileRepo := file.NewRepository(dbPool)

	deps := file.HandlerDeps{
		Repo:      fileRepo,
		Providers: providers,
		Audit:     recorder,
		Policy: file.UploadPolicy{
			MaxFileSize:      cfg.Files.MaxFileSize,
			AllowedMimeTypes: cfg.Files.AllowedMimeTypes,
		},
		Log: log.Named("file"),
	}
	// a typed nil would defeat the handler's nil check
	if limiter != nil {
		deps.Limiter = limiter
	}

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		Log:         log.Named("http"),
		Readiness:   readiness,
		AuthService: auth.NewService(cfg.Auth),
		FileHandler: file.NewHandler(deps),
		LinkHandler: presigned.NewHandler(linkSigner, fileRepo, providers, log.Named("presigned")),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("filedrive api listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage_provider", cfg.Files.Storage.Provider),
			zap.String("cache_driver", cfg.Cache.Driver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", zap.Error(err))
	}
	return nil
}
