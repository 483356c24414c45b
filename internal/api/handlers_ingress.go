// handlers_ingress.go - File receive endpoint used by field agents
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/storage"
)

// liveCheckDataID is what agents send as dataid when they have nothing to upload.
const liveCheckDataID = "-"

// IngressHandlerImpl implements the IngressHandler interface
type IngressHandlerImpl struct {
	store  FileStore
	logger *slog.Logger
}

// NewIngressHandler creates a new ingress handler instance
func NewIngressHandler(store FileStore, logger *slog.Logger) IngressHandler {
	return &IngressHandlerImpl{
		store:  store,
		logger: logging.NewComponentLogger(logger, "ingress"),
	}
}

// HandleFileSave accepts a multipart upload with form fields deviceid, dataid
// and orgfilename and a file part named "filename". Every form field is kept
// in the sidecar.
func (h *IngressHandlerImpl) HandleFileSave(c echo.Context) error {
	form, err := c.FormParams()
	if err != nil {
		return NewBadRequestError("invalid form body", err)
	}
	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	for _, field := range []string{"deviceid", "dataid", "orgfilename"} {
		if strings.TrimSpace(params[field]) == "" {
			return NewValidationError(field)
		}
	}

	logger := h.logger.With(
		logging.String(logging.FieldRequestID, requestID(c)),
		logging.String(logging.FieldDeviceID, params["deviceid"]),
	)

	if params["dataid"] == liveCheckDataID {
		logger.Debug("live check")
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "alive",
		})
	}

	file, err := c.FormFile("filename")
	if err != nil || file.Size == 0 {
		return NewBadRequestError("no file data", err)
	}
	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	saved, err := h.store.Save(params, src)
	if errors.Is(err, storage.ErrInvalidComponent) {
		return NewBadRequestError("invalid deviceid, dataid or orgfilename", err)
	}
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	logger.Info("file received",
		logging.String(logging.FieldFile, saved.Path),
		logging.String(logging.FieldDataID, saved.DataID),
		logging.Int64("size", saved.Size),
	)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("%s saved", saved.OrgFileName),
	})
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
