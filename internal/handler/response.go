package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/apperr"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  []apperr.FieldError `json:"errors,omitempty"`
	Count   *int                `json:"count,omitempty"`
	Details string              `json:"details,omitempty"`
}

func respond(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

func respondList[T any](c echo.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: items, Count: &n})
}

const defaultTimeout = 5 * time.Second

// requestContext bounds store calls made on behalf of one request.
func requestContext(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}
