package tagwriter_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plc-filebridge/backend/internal/models"
	"github.com/plc-filebridge/backend/internal/tagwriter"
	"github.com/plc-filebridge/backend/internal/testutil"
)

func at(d, h, m, s int) time.Time {
	return time.Date(2024, 1, d, h, m, s, 0, time.UTC)
}

func table(sheet string, rows ...models.Row) *models.NormalizedTable {
	return &models.NormalizedTable{
		SheetName: sheet,
		Columns:   []string{models.TimeColumn, "Temp", "Mode"},
		Rows:      rows,
	}
}

func row(ts time.Time, temp any, mode any) models.Row {
	return models.Row{Time: ts, Cells: []any{ts, temp, mode}}
}

func dial(t *testing.T, server *testutil.FakeServer) tagwriter.Client {
	t.Helper()
	c, err := server.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestWriteTable_WatermarkFiltering(t *testing.T) {
	server := testutil.NewFakeServer()
	w := tagwriter.NewWriter(nil, nil)

	tbl := table("Sheet1",
		row(time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), int64(1), "A"),
		row(at(1, 0, 0, 1), int64(2), "B"),
	)
	res, err := w.WriteTable(context.Background(), dial(t, server), "LINE3", tbl, at(1, 0, 0, 0), true)
	require.NoError(t, err)

	assert.True(t, res.Advanced)
	assert.True(t, at(1, 0, 0, 1).Equal(res.Watermark))
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, []testutil.Write{
		{Session: 1, NodeID: "ns=2;s=LINE3.Temp", Value: "2"},
		{Session: 1, NodeID: "ns=2;s=LINE3.Mode", Value: "B"},
		{Session: 1, NodeID: "ns=2;s=LINE3.TIME", Value: "2024-01-01 00:00:01"},
	}, server.Writes())
}

func TestWriteTable_NoWatermarkSendsAll(t *testing.T) {
	server := testutil.NewFakeServer()
	w := tagwriter.NewWriter(nil, nil)

	tbl := table("Press", row(at(1, 1, 0, 0), 1.5, nil), row(at(1, 2, 0, 0), 2.25, "RUN"))
	res, err := w.WriteTable(context.Background(), dial(t, server), "L", tbl, time.Time{}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.Skipped)
	assert.True(t, at(1, 2, 0, 0).Equal(res.Watermark))
	assert.Len(t, server.Writes(), 5)
	assert.Equal(t, "2.25", server.Values()["ns=2;s=L.Press.Temp"])
	assert.Equal(t, "2024-01-01 02:00:00", server.Values()["ns=2;s=L.Press.TIME"])
}

func TestWriteTable_NothingNew(t *testing.T) {
	server := testutil.NewFakeServer()
	res, err := tagwriter.NewWriter(nil, nil).WriteTable(context.Background(), dial(t, server), "L",
		table("Sheet1", row(at(1, 0, 0, 0), int64(1), "A")), at(1, 0, 0, 0), true)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Empty(t, server.Writes())
}

func TestWriteTable_PartialFailureContinues(t *testing.T) {
	server := testutil.NewFakeServer()
	server.FailNodes["ns=2;s=L.Temp"] = true
	w := tagwriter.NewWriter(nil, nil)

	tbl := table("Sheet1", row(at(1, 0, 0, 1), int64(1), "A"), row(at(1, 0, 0, 2), int64(2), "B"))
	res, err := w.WriteTable(context.Background(), dial(t, server), "L", tbl, time.Time{}, false)
	require.NoError(t, err)

	assert.Len(t, res.Failures, 2)
	assert.Equal(t, "ns=2;s=L.Temp", res.Failures[0].NodeID)
	assert.Equal(t, 4, res.Written)
	assert.True(t, res.Advanced)
	assert.True(t, at(1, 0, 0, 2).Equal(res.Watermark))
}

func TestWriteTable_ConnectionLostAborts(t *testing.T) {
	server := testutil.NewFakeServer()
	server.DropOnNode = "ns=2;s=L.Mode"

	tbl := table("Sheet1", row(at(1, 0, 0, 1), int64(1), "A"), row(at(1, 0, 0, 2), int64(2), "B"))
	_, err := tagwriter.NewWriter(nil, nil).WriteTable(context.Background(), dial(t, server), "L", tbl, time.Time{}, false)
	assert.ErrorIs(t, err, tagwriter.ErrConnectionLost)
	assert.Len(t, server.Writes(), 1)
}
