package parser

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/plc-filebridge/backend/internal/logging"
	"github.com/plc-filebridge/backend/internal/models"
)

// maxFailureExamples caps the unparseable TIME values echoed to the log.
const maxFailureExamples = 3

// SheetStats summarizes what normalization discarded from one sheet.
type SheetStats struct {
	Sheet           string
	SkippedRows     int
	UnnamedColumns  int
	DuplicateColumn []string
	EmptyTime       int
	Unparseable     int
	Examples        []string
	Kept            int
}

// Normalizer turns workbook sheets into NormalizedTables.
type Normalizer struct {
	registry   *Registry
	timestamps *TimestampParser
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer. Nil arguments get defaults.
func NewNormalizer(registry *Registry, timestamps *TimestampParser, logger *slog.Logger) *Normalizer {
	if registry == nil {
		registry = NewRegistry()
	}
	if timestamps == nil {
		timestamps = NewTimestampParser()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Normalizer{
		registry:   registry,
		timestamps: timestamps,
		logger:     logger.With(logging.String(logging.FieldComponent, "normalizer")),
	}
}

// NormalizeFile reads the task's workbook and normalizes every sheet.
// A decode failure fails the whole file; bad rows never do.
func (n *Normalizer) NormalizeFile(task models.Task) ([]*models.NormalizedTable, error) {
	reader, err := n.registry.ReaderFor(task.FilePath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(task.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	sheets, err := reader.Read(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", task.FilePath, err)
	}

	fallback := FallbackDateFromPath(task.FilePath)
	logger := n.logger.With(logging.String(logging.FieldFile, task.FilePath))
	if fallback == nil {
		logger.Debug("file name carries no date; bare times will be rejected")
	}

	var tables []*models.NormalizedTable
	for _, sheet := range sheets {
		table, stats := n.NormalizeSheet(sheet, task.Header, task.RowsToSkip(), fallback)
		n.logStats(logger, stats)
		if table != nil {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

// NormalizeSheet applies header flattening, column pruning, TIME parsing and
// ordering to a single sheet. It returns nil when no usable row remains.
func (n *Normalizer) NormalizeSheet(sheet RawSheet, header models.HeaderSpec, rowsToSkip int, fallback *time.Time) (*models.NormalizedTable, SheetStats) {
	stats := SheetStats{Sheet: sheet.Name}
	if err := header.Validate(); err != nil {
		header = models.DefaultHeaderSpec
	}
	if len(sheet.Rows) < header.Max() {
		return nil, stats
	}

	headerRows := make([][]string, len(header))
	for i, r := range header {
		headerRows[i] = sheet.Rows[r-1]
	}
	data := sheet.Rows[header.Max():]
	if len(data) == 0 {
		return nil, stats
	}

	if rowsToSkip > 0 {
		if len(data) <= rowsToSkip {
			stats.SkippedRows = len(data)
			return nil, stats
		}
		data = data[rowsToSkip:]
		stats.SkippedRows = rowsToSkip
	}

	width := 0
	for _, row := range headerRows {
		width = max(width, len(row))
	}
	for _, row := range data {
		width = max(width, len(row))
	}

	names := FlattenHeader(headerRows, width)
	keep, unnamed, dropped := selectColumns(names)
	stats.UnnamedColumns = unnamed
	stats.DuplicateColumn = dropped
	if len(keep) == 0 {
		return nil, stats
	}

	columns := make([]string, len(keep))
	for i, idx := range keep {
		columns[i] = names[idx]
	}
	columns[0] = models.TimeColumn

	rows := make([]models.Row, 0, len(data))
	for _, raw := range data {
		timeCell := cellAt(raw, keep[0])
		if IsMissing(timeCell) {
			stats.EmptyTime++
			continue
		}
		ts, ok := n.timestamps.Parse(timeCell, fallback)
		if !ok {
			stats.Unparseable++
			if len(stats.Examples) < maxFailureExamples {
				stats.Examples = append(stats.Examples, timeCell)
			}
			continue
		}

		cells := make([]any, len(keep))
		cells[0] = ts
		for i, idx := range keep[1:] {
			cells[i+1] = ParseCell(cellAt(raw, idx))
		}
		rows = append(rows, models.Row{Time: ts, Cells: cells})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})
	stats.Kept = len(rows)
	if len(rows) == 0 {
		return nil, stats
	}

	return &models.NormalizedTable{
		SheetName: sheet.Name,
		Columns:   columns,
		Rows:      rows,
	}, stats
}

func (n *Normalizer) logStats(logger *slog.Logger, stats SheetStats) {
	logger = logger.With(logging.String(logging.FieldSheet, stats.Sheet))
	if stats.SkippedRows > 0 {
		logger.Info("skipped leading rows before data start", logging.Int("rows", stats.SkippedRows))
	}
	if stats.UnnamedColumns > 0 {
		logger.Info("ignoring unnamed columns", logging.Int("count", stats.UnnamedColumns))
	}
	if len(stats.DuplicateColumn) > 0 {
		logger.Info("ignoring duplicate columns", logging.Any("columns", stats.DuplicateColumn))
	}
	if stats.Unparseable > 0 {
		logger.Warn("TIME values could not be parsed",
			logging.Int("count", stats.Unparseable),
			logging.Any("examples", stats.Examples),
		)
	}
	if stats.Kept == 0 {
		logger.Debug("sheet has no usable rows")
	}
}
