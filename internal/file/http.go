package file

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abduss/filedrive/internal/auth"
	"github.com/abduss/filedrive/internal/logger"
	"github.com/abduss/filedrive/internal/metrics"
	"github.com/abduss/filedrive/internal/ratelimit"
	"github.com/abduss/filedrive/internal/storage"
)

// multipart framing allowance on top of MaxFileSize
const multipartOverhead = 1 << 20

const maxListLimit = 200

// ProviderFactory builds the storage provider for one request.
type ProviderFactory func() (storage.Provider, error)

type uploadLimiter interface {
	CheckAndIncrement(ctx context.Context, userID string, incrementBy int) ratelimit.Result
	Limit() int
	Window() time.Duration
}

// HandlerDeps wires the upload pipeline.
type HandlerDeps struct {
	Repo      recordStore
	Providers ProviderFactory
	Audit     auditRecorder
	// Limiter is optional; nil disables upload rate limiting.
	Limiter uploadLimiter
	Policy  UploadPolicy
	Log     *zap.Logger
}

// Handler serves the /files endpoints.
type Handler struct {
	deps HandlerDeps
}

// NewHandler builds the file HTTP handler.
func NewHandler(deps HandlerDeps) *Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Handler{deps: deps}
}

// RegisterRoutes mounts file operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, handler *Handler) {
	group.POST("/files", handler.uploadFile)
	group.GET("/files", handler.listFiles)
	group.GET("/files/:id", handler.getFile)
	group.DELETE("/files/:id", handler.deleteFile)
}

func (h *Handler) service() (*Service, error) {
	provider, err := h.deps.Providers()
	if err != nil {
		return nil, err
	}
	return NewService(h.deps.Repo, provider, h.deps.Audit, h.deps.Log), nil
}

func (h *Handler) uploadFile(c *gin.Context) {
	log := logger.FromGin(c, h.deps.Log)

	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if h.deps.Policy.MaxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.deps.Policy.MaxFileSize+multipartOverhead)
	}

	part, err := singleFilePart(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": h.deps.Policy.tooLarge().Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := readPart(part)
	if err != nil {
		log.Warn("read upload part", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	mimeType := ResolveMimeType(part.Header.Get("Content-Type"), data)

	if err := h.deps.Policy.CheckSize(int64(len(data))); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if err := h.deps.Policy.CheckMimeType(mimeType); err != nil {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}

	if h.deps.Limiter != nil {
		result := h.deps.Limiter.CheckAndIncrement(c.Request.Context(), userID.String(), 1)
		if !result.Allowed {
			metrics.ObserveRateLimited()
			limitErr := &RateLimitError{
				CurrentCount: result.CurrentCount,
				Limit:        h.deps.Limiter.Limit(),
				Window:       h.deps.Limiter.Window(),
			}
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":         limitErr.Error(),
				"current_count": limitErr.CurrentCount,
				"limit":         limitErr.Limit,
				"window":        limitErr.Window.String(),
			})
			return
		}
	}

	service, err := h.service()
	if err != nil {
		log.Error("build storage provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage is not configured"})
		return
	}

	rec, err := service.UploadFile(c.Request.Context(), data, part.Filename, mimeType, requestMeta(c, &userID))
	if err != nil {
		log.Error("upload failed", zap.String("original_name", part.Filename), zap.Error(err))
		switch {
		case errors.Is(err, storage.ErrWrite):
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store file"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "file": rec})
}

func (h *Handler) listFiles(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil || limit < 1 || limit > maxListLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	service, err := h.service()
	if err != nil {
		logger.FromGin(c, h.deps.Log).Error("build storage provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage is not configured"})
		return
	}

	list, err := service.GetFilesByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		logger.FromGin(c, h.deps.Log).Error("list files", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list files"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": list, "limit": limit, "offset": offset})
}

func (h *Handler) getFile(c *gin.Context) {
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

	service, err := h.service()
	if err != nil {
		logger.FromGin(c, h.deps.Log).Error("build storage provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage is not configured"})
		return
	}

	rec, found := service.GetFile(c.Request.Context(), fileID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrFileNotFound.Error()})
		return
	}
	if !rec.AccessibleBy(userID, user.IsAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"file": rec})
}

func (h *Handler) deleteFile(c *gin.Context) {
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

	service, err := h.service()
	if err != nil {
		logger.FromGin(c, h.deps.Log).Error("build storage provider", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage is not configured"})
		return
	}

	rec, found := service.GetFile(c.Request.Context(), fileID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrFileNotFound.Error()})
		return
	}
	if !rec.AccessibleBy(userID, user.IsAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error()})
		return
	}

	deleted, err := service.DeleteFile(c.Request.Context(), fileID, requestMeta(c, &userID))
	if err != nil {
		logger.FromGin(c, h.deps.Log).Error("delete file", zap.String("file_id", fileID.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete file"})
		return
	}

	message := "File deleted successfully"
	if !deleted {
		message = "File not found"
	}
	c.JSON(http.StatusOK, gin.H{"success": deleted, "message": message})
}

// singleFilePart returns the only named file part of the multipart body.
func singleFilePart(c *gin.Context) (*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, ErrNoFile
	}

	var parts []*multipart.FileHeader
	for _, headers := range form.File {
		for _, fh := range headers {
			if fh.Filename != "" {
				parts = append(parts, fh)
			}
		}
	}

	switch len(parts) {
	case 0:
		return nil, ErrNoFile
	case 1:
		return parts[0], nil
	default:
		return nil, ErrMultipleFiles
	}
}

func readPart(part *multipart.FileHeader) ([]byte, error) {
	f, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func requestMeta(c *gin.Context, userID *uuid.UUID) RequestMeta {
	return RequestMeta{
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
