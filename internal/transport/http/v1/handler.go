// Package v1 provides the HTTP handlers of the chat API.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// Engine is the conversation engine as seen by the HTTP layer.
type Engine interface {
	Handle(ctx context.Context, text string) (string, error)
	History(limit int) []domain.Turn
	Clear(ctx context.Context)
	Status() domain.Status
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests.
type Handler struct {
	engine Engine
}

// NewHandler creates a new handler.
func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine: engine,
	}
}

// RegisterRoutes registers the chat API with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/chat", h.Chat)
	api.GET("/history", h.History)
	api.POST("/clear", h.Clear)
	api.GET("/status", h.Status)

	e.GET("/health", h.Health)
}

// Health returns health status, including the durable store.
func (h *Handler) Health(c echo.Context) error {
	if err := h.engine.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "unhealthy",
			"version": "0.1.0",
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
