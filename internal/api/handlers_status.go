// handlers_status.go - Progress and run history for operators
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// StatusHandlerImpl implements the StatusHandler interface
type StatusHandlerImpl struct {
	progress ProgressReader
	runs     RunLister
}

// NewStatusHandler creates a status handler. runs may be nil when the
// journal is disabled.
func NewStatusHandler(progress ProgressReader, runs RunLister) StatusHandler {
	return &StatusHandlerImpl{progress: progress, runs: runs}
}

// HandleProgress returns every stored watermark, as JSON or msgpack.
func (h *StatusHandlerImpl) HandleProgress(c echo.Context) error {
	snap, err := h.progress.Load()
	if err != nil {
		return NewInternalError("failed to load progress", err)
	}
	body := map[string]interface{}{
		"entries": snap.Entries(),
		"count":   len(snap),
	}
	return respond(c, body)
}

// HandleRuns returns the latest journaled task runs.
func (h *StatusHandlerImpl) HandleRuns(c echo.Context) error {
	if h.runs == nil {
		return NewServiceUnavailableError("run journal is disabled")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}
	runs, err := h.runs.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to query runs", err)
	}
	return respond(c, map[string]interface{}{"runs": runs})
}

func wantsMsgpack(c echo.Context) bool {
	return c.QueryParam("format") == "msgpack" ||
		strings.Contains(c.Request().Header.Get(echo.HeaderAccept), "application/msgpack")
}

func respond(c echo.Context, body interface{}) error {
	if !wantsMsgpack(c) {
		return c.JSON(http.StatusOK, body)
	}
	data, err := msgpack.Marshal(body)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
