package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe. It does not touch the database.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Root describes the API.
func Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Multi-Product Learning API",
		"version": "1.0.0",
		"endpoints": echo.Map{
			"health":  "/health",
			"metrics": "/metrics",
			"api":     "/api/v1",
		},
	})
}
