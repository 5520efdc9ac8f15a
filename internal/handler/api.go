package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fuaSmart/medical-project/internal/models"
	"github.com/fuaSmart/medical-project/internal/repository"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Handler serves the read-only data API.
type Handler struct {
	repo   repository.QueryRepository
	logger *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(repo repository.QueryRepository, logger *zap.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/messages", h.GetMessages)
	r.GET("/channels", h.GetChannels)
	r.GET("/image_detections", h.GetImageDetections)
	r.GET("/image_detections/classes", h.GetDetectionClasses)

	r.GET("/healthz", h.HealthCheck)
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Ethiopian Medical Data API!"})
}

// GetMessages handles GET /messages
// Query parameters:
// - limit: 1..100, default 10
// - offset: default 0
// - channel_username: case-insensitive substring (optional)
// - min_views: minimum view count (optional)
func (h *Handler) GetMessages(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	filter := models.MessageFilter{
		Limit:           limit,
		Offset:          offset,
		ChannelUsername: c.Query("channel_username"),
	}
	if raw := c.Query("min_views"); raw != "" {
		minViews, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_views must be an integer."})
			return
		}
		filter.MinViews = &minViews
	}

	messages, err := h.repo.ListMessages(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to get messages", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

// GetChannels handles GET /channels
func (h *Handler) GetChannels(c *gin.Context) {
	channels, err := h.repo.ListChannels(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get channels", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve channels"})
		return
	}
	c.JSON(http.StatusOK, channels)
}

// GetImageDetections handles GET /image_detections
// Query parameters:
// - limit, offset: as for /messages
// - object_class: case-insensitive substring (optional)
// - min_confidence: 0..1, default 0
// - channel_username: case-insensitive substring (optional)
func (h *Handler) GetImageDetections(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}

	filter := models.DetectionFilter{
		Limit:           limit,
		Offset:          offset,
		ObjectClass:     c.Query("object_class"),
		ChannelUsername: c.Query("channel_username"),
	}
	if raw := c.Query("min_confidence"); raw != "" {
		minConfidence, err := strconv.ParseFloat(raw, 64)
		if err != nil || minConfidence < 0 || minConfidence > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_confidence must be a number between 0 and 1."})
			return
		}
		filter.MinConfidence = minConfidence
	}

	detections, err := h.repo.ListDetections(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to get image detections", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve image detections"})
		return
	}
	c.JSON(http.StatusOK, detections)
}

// GetDetectionClasses handles GET /image_detections/classes
func (h *Handler) GetDetectionClasses(c *gin.Context) {
	classes, err := h.repo.ListDetectionClasses(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get detection classes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve detection classes"})
		return
	}
	c.JSON(http.StatusOK, classes)
}

// HealthCheck reports whether the database answers.
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// paging reads limit and offset, writing a 400 response when they are invalid.
func paging(c *gin.Context) (limit, offset int, ok bool) {
	limit, offset = defaultLimit, 0

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Limit must be between 1 and 100."})
			return 0, 0, false
		}
		limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Offset must be a non-negative integer."})
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
