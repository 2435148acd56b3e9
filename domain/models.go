// Package domain defines the core domain models for the session tracker.
package domain

import (
	"encoding/json"
	"time"
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// EventType represents the type of an event.
type EventType string

const (
	EventTypeMessageSent     EventType = "message_sent"
	EventTypeMessageReceived EventType = "message_received"
	EventTypeUserJoined      EventType = "user_joined"
	EventTypeUserLeft        EventType = "user_left"
)

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventTypeMessageSent, EventTypeMessageReceived, EventTypeUserJoined, EventTypeUserLeft:
		return true
	}
	return false
}

// Session represents a conversation session.
type Session struct {
	SessionID string        `json:"session_id"`
	Language  string        `json:"language"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// Event represents a single event within a session. Seq is assigned by
// storage on first insert and orders events with identical timestamps; it is
// not part of the API payload.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Seq       int64           `json:"-"`
}

// CreateSessionRequest is the body of POST /v1/sessions.
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
}

// AppendEventRequest is the body of POST /v1/sessions/:session_id/events.
type AppendEventRequest struct {
	EventID   string          `json:"event_id,omitempty"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Pagination describes the page window of a session read.
type Pagination struct {
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
	NextOffset *int `json:"next_offset"`
}

// SessionWithEvents is the response of GET /v1/sessions/:session_id.
type SessionWithEvents struct {
	Session    *Session   `json:"session"`
	Events     []Event    `json:"events"`
	Pagination Pagination `json:"pagination"`
}
