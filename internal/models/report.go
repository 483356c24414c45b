package models

import "time"

// Task outcomes recorded in reports.
const (
	TaskSucceeded = "ok"
	TaskFailed    = "failed"
)

// CellFailure records a single rejected tag write.
type CellFailure struct {
	NodeID  string    `json:"nodeId" msgpack:"nodeId"`
	Value   string    `json:"value" msgpack:"value"`
	RowTime time.Time `json:"rowTime" msgpack:"rowTime"`
	Err     string    `json:"error" msgpack:"error"`
}

// SheetReport is what one sheet contributed to a task.
type SheetReport struct {
	Sheet     string        `json:"sheet" msgpack:"sheet"`
	Rows      int           `json:"rows" msgpack:"rows"`
	Written   int           `json:"written" msgpack:"written"`
	Failures  []CellFailure `json:"failures,omitempty" msgpack:"failures,omitempty"`
	Watermark string        `json:"watermark,omitempty" msgpack:"watermark,omitempty"`
}

// TaskReport is the journal entry for one processed file.
type TaskReport struct {
	RunID     string        `json:"runId" msgpack:"runId"`
	CycleID   string        `json:"cycleId" msgpack:"cycleId"`
	FilePath  string        `json:"filePath" msgpack:"filePath"`
	DeviceID  string        `json:"deviceId" msgpack:"deviceId"`
	DataID    string        `json:"dataId" msgpack:"dataId"`
	Status    string        `json:"status" msgpack:"status"`
	Error     string        `json:"error,omitempty" msgpack:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt" msgpack:"startedAt"`
	Duration  time.Duration `json:"duration" msgpack:"duration"`
	Sheets    []SheetReport `json:"sheets,omitempty" msgpack:"sheets,omitempty"`
}

// FailedCells counts cell failures across all sheets.
func (r TaskReport) FailedCells() int {
	n := 0
	for _, s := range r.Sheets {
		n += len(s.Failures)
	}
	return n
}

// RowsSent counts rows attempted across all sheets.
func (r TaskReport) RowsSent() int {
	n := 0
	for _, s := range r.Sheets {
		n += s.Rows
	}
	return n
}
