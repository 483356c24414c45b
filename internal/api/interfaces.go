// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/plc-filebridge/backend/internal/journal"
	"github.com/plc-filebridge/backend/internal/progress"
	"github.com/plc-filebridge/backend/internal/storage"
)

// IngressHandler receives files from field agents.
type IngressHandler interface {
	HandleFileSave(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// StatusHandler exposes delivery progress for operators.
type StatusHandler interface {
	HandleProgress(c echo.Context) error
	HandleRuns(c echo.Context) error
}

// FileStore persists uploads. Satisfied by *storage.LocalStore.
type FileStore interface {
	Save(params map[string]string, r io.Reader) (*storage.SavedFile, error)
}

// ProgressReader loads stored watermarks. Satisfied by *progress.Store.
type ProgressReader interface {
	Load() (progress.Snapshot, error)
}

// RunLister lists journaled runs. Satisfied by *journal.DuckJournal.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]journal.RunSummary, error)
}
