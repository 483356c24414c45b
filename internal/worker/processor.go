package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/models"
	"github.com/plc-filebridge/backend/internal/parser"
	"github.com/plc-filebridge/backend/internal/progress"
	"github.com/plc-filebridge/backend/internal/tagwriter"
)

// Processor delivers one file: normalize, filter by watermark, write.
type Processor struct {
	normalizer *parser.Normalizer
	writer     *tagwriter.Writer
	dialer     tagwriter.Dialer
	logger     *slog.Logger
}

func NewProcessor(normalizer *parser.Normalizer, writer *tagwriter.Writer, dialer tagwriter.Dialer, logger *slog.Logger) *Processor {
	return &Processor{
		normalizer: normalizer,
		writer:     writer,
		dialer:     dialer,
		logger:     logging.NewComponentLogger(logger, "processor"),
	}
}

// Process returns the watermarks to store for task. An error means nothing
// from this file may be recorded; the file is retried next cycle.
func (p *Processor) Process(ctx context.Context, task models.Task, snap progress.Snapshot) (models.Delta, []models.SheetReport, error) {
	logger := p.logger.With(logging.String(logging.FieldFile, task.FilePath))

	tables, err := p.normalizer.NormalizeFile(task)
	if err != nil {
		return nil, nil, fmt.Errorf("load workbook: %w", err)
	}
	if !hasPendingRows(task, tables, snap) {
		logger.Debug("no new rows")
		return nil, nil, nil
	}

	client, err := p.dialer.Dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := client.Close(ctx); cerr != nil {
			logger.Debug("close session", logging.Error(cerr))
		}
	}()

	var (
		delta   models.Delta
		reports []models.SheetReport
	)
	for _, table := range tables {
		key := models.ProgressKey{FilePath: task.FilePath, Sheet: table.SheetName}
		prev, ok := snap.Lookup(key)
		if !ok {
			if raw, present := snap[key.String()]; present {
				logger.Warn("stored watermark is unreadable; resending sheet",
					logging.String(logging.FieldSheet, table.SheetName),
					logging.String("watermark", raw),
				)
			}
		}

		res, err := p.writer.WriteTable(ctx, client, task.DataID, table, prev, ok)
		if err != nil {
			return nil, nil, err
		}
		if !res.Advanced {
			continue
		}
		delta = append(delta, models.Watermark{Key: key, Time: res.Watermark})
		reports = append(reports, models.SheetReport{
			Sheet:     table.SheetName,
			Rows:      res.Rows,
			Written:   res.Written,
			Failures:  res.Failures,
			Watermark: models.FormatWatermark(res.Watermark),
		})
	}
	return delta, reports, nil
}

func hasPendingRows(task models.Task, tables []*models.NormalizedTable, snap progress.Snapshot) bool {
	for _, table := range tables {
		prev, ok := snap.Lookup(models.ProgressKey{FilePath: task.FilePath, Sheet: table.SheetName})
		if len(table.RowsAfter(prev, ok)) > 0 {
			return true
		}
	}
	return false
}
