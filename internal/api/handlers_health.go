// handlers_health.go - Health check handlers
package api

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	savePath string
	started  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version, savePath string) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		savePath: savePath,
		started:  time.Now(),
	}
}

// HandleHealth reports liveness and whether the storage root is reachable.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	status, code := "ok", http.StatusOK
	if info, err := os.Stat(h.savePath); err != nil || !info.IsDir() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"status":  status,
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}
