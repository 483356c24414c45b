package models

import "time"

// TimeColumn is the name given to the first surviving column of every sheet.
const TimeColumn = "TIME"

// Row is one data row of a normalized sheet. Cells is aligned with the
// table's Columns; Cells[0] holds Time. A nil cell is a missing value.
// Non-nil cells are int64, float64, string or time.Time.
type Row struct {
	Time  time.Time `json:"time"`
	Cells []any     `json:"cells"`
}

// NormalizedTable is a sheet reduced to uniquely named columns and rows
// ordered by TIME.
type NormalizedTable struct {
	SheetName string   `json:"sheetName"`
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
}

// TimeRange returns the first and last TIME of the table.
func (t *NormalizedTable) TimeRange() (time.Time, time.Time, bool) {
	if t == nil || len(t.Rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return t.Rows[0].Time, t.Rows[len(t.Rows)-1].Time, true
}

// RowsAfter returns the rows strictly newer than watermark. Rows must be sorted.
// Watermarks are stored at second precision, so row times are compared at
// that precision too.
func (t *NormalizedTable) RowsAfter(watermark time.Time, ok bool) []Row {
	if !ok {
		return t.Rows
	}
	watermark = watermark.Truncate(time.Second)
	for i, r := range t.Rows {
		if r.Time.Truncate(time.Second).After(watermark) {
			return t.Rows[i:]
		}
	}
	return nil
}
