// Package journal keeps a queryable history of task runs and rejected cell
// writes. Redelivery is never driven from it; it exists for operators.
package journal

import (
	"context"
	"time"

	"github.com/plc-filebridge/backend/internal/models"
)

// Recorder stores task reports.
type Recorder interface {
	Record(ctx context.Context, report models.TaskReport) error
	Close() error
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID       string    `json:"runId" msgpack:"runId"`
	CycleID     string    `json:"cycleId" msgpack:"cycleId"`
	FilePath    string    `json:"filePath" msgpack:"filePath"`
	DataID      string    `json:"dataId" msgpack:"dataId"`
	Status      string    `json:"status" msgpack:"status"`
	Error       string    `json:"error,omitempty" msgpack:"error,omitempty"`
	Rows        int       `json:"rows" msgpack:"rows"`
	FailedCells int       `json:"failedCells" msgpack:"failedCells"`
	StartedAt   time.Time `json:"startedAt" msgpack:"startedAt"`
	DurationMS  int64     `json:"durationMs" msgpack:"durationMs"`
}

// Nop discards reports.
type Nop struct{}

func (Nop) Record(context.Context, models.TaskReport) error { return nil }

func (Nop) Close() error { return nil }
