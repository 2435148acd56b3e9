package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/sessionlog/domain"
)

// CreateSession creates a session, or returns the existing one unchanged.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" || req.Language == "" {
		return errorJSON(c, http.StatusBadRequest, "session_id and language are required")
	}

	ctx := c.Request().Context()
	session, err := h.store.CreateOrGetSession(ctx, req.SessionID, req.Language)
	if err != nil {
		log.Printf("ERROR: failed to create session: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to create session")
	}

	return c.JSON(http.StatusCreated, session)
}

// GetSession returns a session with a page of its events.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit, offset := h.pageWindow(c.QueryParam("limit"), c.QueryParam("offset"))

	ctx := c.Request().Context()
	session, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to get session: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to get session")
	}
	if session == nil {
		return errorJSON(c, http.StatusNotFound, "session not found")
	}

	events, err := h.store.ListEvents(ctx, sessionID, limit, offset)
	if err != nil {
		log.Printf("ERROR: failed to list events: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to list events")
	}
	if events == nil {
		events = []domain.Event{}
	}

	// The total is an exact count over the full set, not derived from the page.
	total, err := h.store.CountEvents(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to count events: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to count events")
	}

	return c.JSON(http.StatusOK, domain.SessionWithEvents{
		Session:    session,
		Events:     events,
		Pagination: newPagination(total, limit, offset),
	})
}

// CompleteSession marks a session completed. Safe to call repeatedly;
// ended_at reflects the most recent call.
// POST /v1/sessions/:session_id/complete
func (h *Handler) CompleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	ctx := c.Request().Context()
	session, err := h.store.CompleteSession(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return errorJSON(c, http.StatusNotFound, "session not found")
	}
	if err != nil {
		log.Printf("ERROR: failed to complete session: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to complete session")
	}

	return c.JSON(http.StatusOK, session)
}
