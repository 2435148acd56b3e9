// Package api provides HTTP handlers for the session tracker.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/sessionlog/config"
	"github.com/xiaot623/sessionlog/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store  store.Store
	config *config.Config
}

// NewHandler creates a new handler.
func NewHandler(store store.Store, config *config.Config) *Handler {
	return &Handler{
		store:  store,
		config: config,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.POST("/v1/sessions/:session_id/events", h.AppendEvent)
	e.POST("/v1/sessions/:session_id/complete", h.CompleteSession)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
