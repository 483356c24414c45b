package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-filebridge/backend/internal/models"
)

func openTestJournal(t *testing.T) *DuckJournal {
	t.Helper()
	j, err := OpenDuck(filepath.Join(t.TempDir(), "journal.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestDuckJournal_RecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Record(ctx, models.TaskReport{
		RunID: "r1", CycleID: "c1", FilePath: "/data/a.xlsx", DataID: "L1",
		Status: models.TaskSucceeded, StartedAt: started, Duration: 1500 * time.Millisecond,
		Sheets: []models.SheetReport{{
			Sheet: "Sheet1", Rows: 2, Written: 5, Watermark: "2024-05-01 09:59:00",
			Failures: []models.CellFailure{{NodeID: "ns=2;s=L1.Temp", Value: "1", RowTime: started, Err: "BadNodeIdUnknown"}},
		}},
	}))
	require.NoError(t, j.Record(ctx, models.TaskReport{
		RunID: "r2", CycleID: "c2", FilePath: "/data/b.xlsx",
		Status: models.TaskFailed, Error: "opc-ua connect failed", StartedAt: started.Add(time.Minute),
	}))

	runs, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].RunID)
	assert.Equal(t, models.TaskFailed, runs[0].Status)
	assert.Equal(t, "opc-ua connect failed", runs[0].Error)
	assert.Equal(t, 2, runs[1].Rows)
	assert.Equal(t, 1, runs[1].FailedCells)
	assert.Equal(t, int64(1500), runs[1].DurationMS)

	failures, err := j.Failures(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "ns=2;s=L1.Temp", failures[0].NodeID)
	assert.Equal(t, "BadNodeIdUnknown", failures[0].Err)
}

func TestDuckJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.duckdb")
	j, err := OpenDuck(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), models.TaskReport{RunID: "r1", CycleID: "c", FilePath: "/f", Status: models.TaskSucceeded, StartedAt: time.Now()}))
	require.NoError(t, j.Close())

	j, err = OpenDuck(path)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDuckJournal_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.duckdb")
	_, err := OpenDuckReadOnly(path)
	require.Error(t, err)

	j, err := OpenDuck(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(context.Background(), models.TaskReport{RunID: "r1", CycleID: "c", FilePath: "/f", Status: models.TaskSucceeded, StartedAt: time.Now()}))
	require.NoError(t, j.Close())

	ro, err := OpenDuckReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()
	runs, err := ro.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].RunID)
}
