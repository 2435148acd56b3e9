package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/sessionlog/domain"
)

// AppendEvent appends an event to a session. Retrying with the same event_id
// returns the stored event with the same status as a fresh insert.
// POST /v1/sessions/:session_id/events
func (h *Handler) AppendEvent(c echo.Context) error {
	sessionID := c.Param("session_id")

	var req domain.AppendEventRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if !domain.ValidEventType(req.Type) {
		return errorJSON(c, http.StatusBadRequest, "unknown event type")
	}
	if req.EventID == "" {
		req.EventID = "evt_" + uuid.New().String()
	}
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().UnixMilli()
	}

	ctx := c.Request().Context()
	event, err := h.store.AppendEvent(ctx, &domain.Event{
		EventID:   req.EventID,
		SessionID: sessionID,
		Type:      req.Type,
		Payload:   req.Payload,
		Timestamp: req.Timestamp,
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		return errorJSON(c, http.StatusNotFound, "session not found")
	}
	if err != nil {
		log.Printf("ERROR: failed to append event: %v", err)
		return errorJSON(c, http.StatusInternalServerError, "failed to append event")
	}

	return c.JSON(http.StatusCreated, event)
}
