package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// CSVSheetName is the sheet name given to the single table of a CSV file.
const CSVSheetName = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVReader reads comma separated exports. Field PCs write either UTF-8 or
// the Windows Korean code page, so input that is not valid UTF-8 is decoded
// as EUC-KR.
type CSVReader struct{}

func NewCSVReader() *CSVReader { return &CSVReader{} }

func (r *CSVReader) Name() string { return "csv" }

func (r *CSVReader) Extensions() []string { return []string{".csv"} }

func (r *CSVReader) Read(data []byte) ([]RawSheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, korean.EUCKR.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return []RawSheet{{Name: CSVSheetName, Rows: trimTrailingEmpty(rows)}}, nil
}
