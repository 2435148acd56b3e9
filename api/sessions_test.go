package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/sessionlog/domain"
)

func postJSON(e *echo.Echo, target string, body []byte) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestCreateSession(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body, _ := json.Marshal(domain.CreateSessionRequest{SessionID: "s1", Language: "en"})
	c, rec := postJSON(e, "/v1/sessions", body)

	if err := h.CreateSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.SessionID != "s1" || session.Language != "en" || session.Status != domain.SessionStatusActive {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateSessionReplay(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body, _ := json.Marshal(domain.CreateSessionRequest{SessionID: "s1", Language: "en"})
	c, rec := postJSON(e, "/v1/sessions", body)
	if err := h.CreateSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	// A retried create succeeds and returns the original record; the new
	// language is ignored.
	body, _ = json.Marshal(domain.CreateSessionRequest{SessionID: "s1", Language: "fr"})
	c, rec = postJSON(e, "/v1/sessions", body)
	if err := h.CreateSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.Language != "en" {
		t.Fatalf("expected original language, got %q", session.Language)
	}
}

func TestCreateSessionMissingFields(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body, _ := json.Marshal(domain.CreateSessionRequest{SessionID: "s1"})
	c, rec := postJSON(e, "/v1/sessions", body)
	if err := h.CreateSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || resp.Path != "/v1/sessions" {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/missing", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("session_id")
	c.SetParamValues("missing")

	if err := h.GetSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetSessionPagination(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	ctx := context.Background()

	if _, err := db.CreateOrGetSession(ctx, "s1", "en"); err != nil {
		t.Fatalf("CreateOrGetSession failed: %v", err)
	}
	for i := 0; i < 150; i++ {
		_, err := db.AppendEvent(ctx, &domain.Event{
			EventID:   fmt.Sprintf("e%03d", i),
			SessionID: "s1",
			Type:      domain.EventTypeMessageSent,
			Timestamp: int64(1000 + i),
		})
		if err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}

	get := func(target string) domain.SessionWithEvents {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("session_id")
		c.SetParamValues("s1")
		if err := h.GetSession(c); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp domain.SessionWithEvents
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	resp := get("/v1/sessions/s1?limit=50&offset=0")
	if len(resp.Events) != 50 || resp.Events[0].EventID != "e000" {
		t.Fatalf("unexpected first page: %+v", resp.Pagination)
	}
	if resp.Pagination.Total != 150 || !resp.Pagination.HasMore {
		t.Fatalf("unexpected pagination: %+v", resp.Pagination)
	}
	if resp.Pagination.NextOffset == nil || *resp.Pagination.NextOffset != 50 {
		t.Fatalf("unexpected next_offset: %+v", resp.Pagination.NextOffset)
	}

	resp = get("/v1/sessions/s1?limit=50&offset=100")
	if len(resp.Events) != 50 || resp.Events[0].EventID != "e100" {
		t.Fatalf("unexpected last page: %+v", resp.Pagination)
	}
	if resp.Pagination.HasMore || resp.Pagination.NextOffset != nil {
		t.Fatalf("expected final page, got %+v", resp.Pagination)
	}

	// Limit above the maximum is clamped to 100.
	resp = get("/v1/sessions/s1?limit=500")
	if len(resp.Events) != 100 || resp.Pagination.Limit != 100 {
		t.Fatalf("expected clamped limit, got %+v", resp.Pagination)
	}

	// Offset past the total yields an empty page with the exact total.
	resp = get("/v1/sessions/s1?offset=400")
	if len(resp.Events) != 0 || resp.Pagination.Total != 150 || resp.Pagination.HasMore {
		t.Fatalf("unexpected out-of-range page: %+v", resp.Pagination)
	}
}

func TestCompleteSessionEndpoint(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)

	if _, err := db.CreateOrGetSession(context.Background(), "s1", "en"); err != nil {
		t.Fatalf("CreateOrGetSession failed: %v", err)
	}

	c, rec := postJSON(e, "/v1/sessions/s1/complete", nil)
	c.SetParamNames("session_id")
	c.SetParamValues("s1")

	if err := h.CompleteSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var session domain.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.Status != domain.SessionStatusCompleted || session.EndedAt == nil {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCompleteSessionNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := postJSON(e, "/v1/sessions/missing/complete", nil)
	c.SetParamNames("session_id")
	c.SetParamValues("missing")

	if err := h.CompleteSession(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
