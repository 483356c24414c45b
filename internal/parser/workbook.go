package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/plc-filebridge/backend/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for files no reader accepts.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrMalformedWorkbook is returned when a workbook cannot be decoded.
	ErrMalformedWorkbook = errors.New("malformed workbook")
)

// RawSheet is the unmodified cell text of one sheet, row by row.
type RawSheet struct {
	Name string
	Rows [][]string
}

// WorkbookReader decodes every sheet of a workbook.
type WorkbookReader interface {
	// Name returns the unique name of the reader.
	Name() string
	// Extensions lists the lower-case file extensions handled, with dot.
	Extensions() []string
	// Read decodes the workbook bytes.
	Read(data []byte) ([]RawSheet, error)
}

// XLSXReader reads Office Open XML workbooks.
type XLSXReader struct{}

func NewXLSXReader() *XLSXReader { return &XLSXReader{} }

func (r *XLSXReader) Name() string { return "xlsx" }

func (r *XLSXReader) Extensions() []string { return []string{".xlsx", ".xlsm"} }

// Read returns raw cell values so that numbers keep full precision and date
// cells arrive as day serials rather than display strings.
func (r *XLSXReader) Read(data []byte) ([]RawSheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	defer f.Close()

	dates := newDateStyles(f)
	var sheets []RawSheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformedWorkbook, name, err)
		}
		dates.convert(name, rows)
		sheets = append(sheets, RawSheet{Name: name, Rows: trimTrailingEmpty(rows)})
	}
	return sheets, nil
}

// dateStyles rewrites day serials in date-formatted cells as
// "2006-01-02 15:04:05" text, which ParseCell types as a time.
type dateStyles struct {
	f        *excelize.File
	date1904 bool
	isDate   map[int]bool
}

func newDateStyles(f *excelize.File) *dateStyles {
	d := &dateStyles{f: f, isDate: map[int]bool{}}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		d.date1904 = *props.Date1904
	}
	return d
}

func (d *dateStyles) convert(sheet string, rows [][]string) {
	for ri, row := range rows {
		for ci, raw := range row {
			if !serialRe.MatchString(raw) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
			if err != nil {
				continue
			}
			styleID, err := d.f.GetCellStyle(sheet, cell)
			if err != nil || !d.styleIsDate(styleID) {
				continue
			}
			serial, err := strconv.ParseFloat(raw, 64)
			// time-only values have no calendar date; TIME parsing anchors them
			if err != nil || serial < 1 {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, d.date1904)
			if err != nil {
				continue
			}
			row[ci] = t.Round(time.Second).Format(models.WatermarkLayout)
		}
	}
}

func (d *dateStyles) styleIsDate(id int) bool {
	if v, ok := d.isDate[id]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(id); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			v = isDateFormatCode(*style.CustomNumFmt)
		} else {
			v = isBuiltinDateFormat(style.NumFmt)
		}
	}
	d.isDate[id] = v
	return v
}

// isBuiltinDateFormat reports whether a built-in number format id shows a
// date, including the East Asian locale ids.
func isBuiltinDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 17, id == 22:
		return true
	case id >= 27 && id <= 36, id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom format code has date tokens
// outside quoted literals, bracketed sections and escapes.
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		case strings.ContainsRune("yYdD", rune(c)):
			return true
		case c == 'm' || c == 'M':
			return true
		}
	}
	return false
}

// XLSReader reads legacy BIFF workbooks.
type XLSReader struct {
	charset string
}

func NewXLSReader() *XLSReader { return &XLSReader{charset: "utf-8"} }

func (r *XLSReader) Name() string { return "xls" }

func (r *XLSReader) Extensions() []string { return []string{".xls"} }

func (r *XLSReader) Read(data []byte) (sheets []RawSheet, err error) {
	// the BIFF decoder panics on truncated streams
	defer func() {
		if p := recover(); p != nil {
			sheets = nil
			err = fmt.Errorf("%w: %v", ErrMalformedWorkbook, p)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), r.charset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		rows := make([][]string, 0, int(ws.MaxRow)+1)
		for ri := 0; ri <= int(ws.MaxRow); ri++ {
			row := ws.Row(ri)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for ci := range cells {
				cells[ci] = row.Col(ci)
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, RawSheet{Name: ws.Name, Rows: trimTrailingEmpty(rows)})
	}
	return sheets, nil
}

func trimTrailingEmpty(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && rowIsEmpty(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func rowIsEmpty(row []string) bool {
	for _, c := range row {
		if !IsMissing(c) {
			return false
		}
	}
	return true
}
