package presigned

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/auth"
	"github.com/abduss/filedrive/internal/file"
	"github.com/abduss/filedrive/internal/logger"
)

type FileRepository interface {
	Get(ctx context.Context, id uuid.UUID) (file.Record, error)
}

type Handler struct {
	// presigner is nil when the configured provider has no bucket.
	presigner *Service
	files     FileRepository
	providers file.ProviderFactory
	log       *zap.Logger
}

func NewHandler(ps *Service, files FileRepository, providers file.ProviderFactory, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		presigner: ps,
		files:     files,
		providers: providers,
		log:       log,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/files/:id/url", h.DownloadURL)
}

func (h *Handler) DownloadURL(c *gin.Context) {
	log := logger.FromGin(c, h.log)

	userID, user, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	rec, err := h.files.Get(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, file.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		log.Error("lookup file", zap.String("file_id", fileID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load file"})
		return
	}

	if !rec.AccessibleBy(userID, user.IsAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
		return
	}

	link, err := h.resolve(c.Request.Context(), rec)
	if err != nil {
		log.Error("generate download url", zap.String("file_id", fileID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate download url"})
		return
	}

	c.JSON(http.StatusOK, link)
}

// resolve signs remote objects and falls back to the public URL otherwise.
func (h *Handler) resolve(ctx context.Context, rec file.Record) (Link, error) {
	if h.presigner != nil && rec.StorageProvider != "local" {
		return h.presigner.GenerateGetURL(ctx, rec.Path, rec.OriginalName)
	}
	if rec.URL != nil {
		return Link{URL: *rec.URL}, nil
	}

	provider, err := h.providers()
	if err != nil {
		return Link{}, err
	}
	return Link{URL: provider.URL(rec.Path)}, nil
}
