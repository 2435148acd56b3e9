package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/sessionlog/domain"
)

// ErrorResponse is the uniform body of every non-2xx response.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
	Path       string `json:"path"`
	Message    string `json:"message"`
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, ErrorResponse{
		StatusCode: code,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Path:       c.Request().URL.Path,
		Message:    message,
	})
}

// pageWindow parses limit/offset query params and clamps them to the
// configured bounds.
func (h *Handler) pageWindow(limitParam, offsetParam string) (limit, offset int) {
	limit = h.config.DefaultPageSize
	if limitParam != "" {
		if v, err := strconv.Atoi(limitParam); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > h.config.MaxPageSize {
		limit = h.config.MaxPageSize
	}

	if offsetParam != "" {
		if v, err := strconv.Atoi(offsetParam); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}

func newPagination(total, limit, offset int) domain.Pagination {
	p := domain.Pagination{
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	if offset+limit < total {
		p.HasMore = true
		next := offset + limit
		p.NextOffset = &next
	}
	return p
}
