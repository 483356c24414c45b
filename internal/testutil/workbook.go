package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Sheet is a fixture sheet; rows are written from A1 down.
type Sheet struct {
	Name string
	Rows [][]any
}

// WriteWorkbook saves sheets, in order, as an xlsx file at path.
func WriteWorkbook(t testing.TB, path string, sheets ...Sheet) {
	t.Helper()
	require.NotEmpty(t, sheets)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sheet.Name))
		} else {
			_, err := f.NewSheet(sheet.Name)
			require.NoError(t, err)
		}
		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(sheet.Name, cell, &values))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

// WriteSidecar writes the JSON metadata next to a data file.
func WriteSidecar(t testing.TB, dataPath, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(dataPath+".json", []byte(body), 0o644))
}
