package tagwriter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/models"
)

// SheetResult summarizes the delivery of one sheet.
type SheetResult struct {
	Sheet     string
	Rows      int
	Written   int
	Skipped   int
	Failures  []models.CellFailure
	Watermark time.Time
	// Advanced is false when no row was newer than the previous watermark.
	Advanced bool
}

// Writer sends normalized rows over a Client.
type Writer struct {
	genericPrefixes []string
	logger          *slog.Logger
}

// NewWriter creates a writer. Nil prefixes use DefaultGenericSheetPrefixes.
func NewWriter(genericPrefixes []string, logger *slog.Logger) *Writer {
	if genericPrefixes == nil {
		genericPrefixes = DefaultGenericSheetPrefixes
	}
	return &Writer{
		genericPrefixes: genericPrefixes,
		logger:          logging.NewComponentLogger(logger, "tagwriter"),
	}
}

// WriteTable writes every row newer than the previous watermark, oldest first,
// with TIME as the last tag of each row. Cell failures are logged and
// collected; the returned watermark is the newest TIME attempted regardless.
// ErrConnectionLost is returned, with no watermark, when a failure leaves the
// session disconnected.
func (w *Writer) WriteTable(ctx context.Context, client Client, dataID string, table *models.NormalizedTable, prev time.Time, hasPrev bool) (SheetResult, error) {
	result := SheetResult{Sheet: table.SheetName}
	rows := table.RowsAfter(prev, hasPrev)
	if len(rows) == 0 {
		return result, nil
	}

	logger := w.logger.With(logging.String(logging.FieldSheet, table.SheetName))
	logger.Info("sending new rows", logging.Int("rows", len(rows)), logging.String(logging.FieldDataID, dataID))

	order := columnOrder(len(table.Columns))
	nodeIDs := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		nodeIDs[i] = NodeID(dataID, table.SheetName, col, w.genericPrefixes)
	}

	for _, row := range rows {
		for _, idx := range order {
			if idx >= len(row.Cells) {
				continue
			}
			value, ok := EncodeValue(row.Cells[idx])
			if !ok {
				result.Skipped++
				continue
			}
			if err := client.Write(ctx, nodeIDs[idx], value); err != nil {
				result.Failures = append(result.Failures, models.CellFailure{
					NodeID:  nodeIDs[idx],
					Value:   value,
					RowTime: row.Time,
					Err:     err.Error(),
				})
				logger.Warn("tag write failed", logging.String(logging.FieldNodeID, nodeIDs[idx]), logging.Error(err))
				if !client.Connected() {
					return result, fmt.Errorf("%w: sheet %q: %v", ErrConnectionLost, table.SheetName, err)
				}
				continue
			}
			result.Written++
		}
		result.Rows++
		if row.Time.After(result.Watermark) || !result.Advanced {
			result.Watermark = row.Time
			result.Advanced = true
		}
	}
	return result, nil
}

// columnOrder lists cell indices with TIME (index 0) moved to the end.
func columnOrder(n int) []int {
	order := make([]int, 0, n)
	for i := 1; i < n; i++ {
		order = append(order, i)
	}
	if n > 0 {
		order = append(order, 0)
	}
	return order
}
