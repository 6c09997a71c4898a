package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourcaryourway/support-chat/internal/service"
	"github.com/yourcaryourway/support-chat/pkg/response"
)

type HTTPHandler struct {
	sessions service.SessionQueryService
}

func NewHTTPHandler(sessions service.SessionQueryService) *HTTPHandler {
	return &HTTPHandler{sessions: sessions}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/sessions", h.ListSessions)
	}

	r.GET("/health", h.HealthCheck)
}

// ListSessions returns the WAITING and ACTIVE sessions for support agents.
func (h *HTTPHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListOpenSessions(c.Request.Context())
	if err != nil {
		c.Error(err)
		response.InternalError(c, "failed to list sessions")
		return
	}

	response.List(c, sessions, len(sessions))
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
