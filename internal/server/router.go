package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/auth"
	"github.com/abduss/filedrive/internal/config"
	"github.com/abduss/filedrive/internal/file"
	"github.com/abduss/filedrive/internal/logger"
	"github.com/abduss/filedrive/internal/metrics"
	"github.com/abduss/filedrive/internal/presigned"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config      config.Config
	Log         *zap.Logger
	Readiness   []ReadinessCheck
	AuthService *auth.Service
	FileHandler *file.Handler
	LinkHandler *presigned.Handler
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(deps.Log))
	router.Use(metrics.Middleware())

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	// local uploads are served straight from disk under their public path
	storageCfg := deps.Config.Files.Storage
	if storageCfg.Provider == config.ProviderLocal && storageCfg.Local != nil && strings.HasPrefix(storageCfg.Local.PublicPath, "/") {
		router.Static(storageCfg.Local.PublicPath, storageCfg.Local.UploadDir)
	}

	api := router.Group("/v1")
	if deps.AuthService != nil {
		protected := api.Group("/")
		protected.Use(auth.AuthMiddleware(deps.AuthService))

		if deps.FileHandler != nil {
			file.RegisterRoutes(protected, deps.FileHandler)
		}
		if deps.LinkHandler != nil {
			deps.LinkHandler.RegisterRoutes(protected)
		}
	}

	return router
}
