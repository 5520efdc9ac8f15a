package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ControlHandler is the scraper's side channel: it accepts the Telegram login
// code and reports whether the session is authorized.
type ControlHandler struct {
	authCode      chan<- string
	authCompleted <-chan struct{}
	logger        *zap.Logger
	sendTimeout   time.Duration
}

// NewControlHandler creates a ControlHandler wired to a Telegram client's auth channels.
func NewControlHandler(authCode chan<- string, authCompleted <-chan struct{}, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{
		authCode:      authCode,
		authCompleted: authCompleted,
		logger:        logger,
		sendTimeout:   5 * time.Second,
	}
}

// RegisterRoutes registers the control routes.
func (h *ControlHandler) RegisterRoutes(r *gin.Engine) {
	tg := r.Group("/telegram")
	{
		// Endpoint to submit Telegram authentication code
		tg.POST("/auth/code", h.handleAuthCode)
		tg.GET("/auth/status", h.handleAuthStatus)
	}
}

type authCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *ControlHandler) handleAuthCode(c *gin.Context) {
	var req authCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind JSON for auth code", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	select {
	case <-h.authCompleted:
		c.JSON(http.StatusConflict, gin.H{"error": "Telegram session is already authorized."})
		return
	default:
	}

	select {
	case h.authCode <- req.Code:
		c.JSON(http.StatusOK, gin.H{"message": "Authentication code received."})
	case <-c.Request.Context().Done():
		h.logger.Warn("Auth code request timed out or cancelled.")
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "Request timed out or cancelled."})
	case <-time.After(h.sendTimeout):
		h.logger.Error("Telegram client not ready to receive code.")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Telegram client not ready to receive code."})
	}
}

func (h *ControlHandler) handleAuthStatus(c *gin.Context) {
	select {
	case <-h.authCompleted:
		c.JSON(http.StatusOK, gin.H{"authorized": true})
	default:
		c.JSON(http.StatusOK, gin.H{"authorized": false})
	}
}
