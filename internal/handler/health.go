package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports liveness for load balancers.  It does not touch any
// client database.
func Health(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   version,
		})
	}
}

// Healthz is the plain-text probe.
func Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
