package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/plc-filebridge/backend/internal/models"
)

func TestCSVReader_UTF8WithBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Time,Temp\n2024-05-01 10:00:00,21.5\n\n")...)
	sheets, err := NewCSVReader().Read(data)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, CSVSheetName, sheets[0].Name)
	assert.Equal(t, [][]string{{"Time", "Temp"}, {"2024-05-01 10:00:00", "21.5"}}, sheets[0].Rows)
}

func TestCSVReader_EUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte("시간,온도\n2024-05-01 10:00:00,21\n"))
	require.NoError(t, err)

	sheets, err := NewCSVReader().Read(encoded)
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, []string{"시간", "온도"}, sheets[0].Rows[0])
}

func TestCSVReader_RaggedRows(t *testing.T) {
	sheets, err := NewCSVReader().Read([]byte("Time,A,B\n10:00:00,1\n10:00:01,1,2,3\n"))
	require.NoError(t, err)
	require.Len(t, sheets[0].Rows, 3)
	assert.Len(t, sheets[0].Rows[1], 2)
}

func TestCSVReader_Empty(t *testing.T) {
	sheets, err := NewCSVReader().Read(nil)
	require.NoError(t, err)
	assert.Empty(t, sheets)
}

func TestNormalizer_CSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "press_20240501.csv")
	require.NoError(t, os.WriteFile(path, []byte("Time,Temp,Mode\n10:00:01,20.5,RUN\n10:00:00,19,STOP\n"), 0o644))

	tables, err := NewNormalizer(nil, nil, nil).NormalizeFile(models.Task{FilePath: path, Header: models.HeaderSpec{1}})
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, CSVSheetName, tables[0].SheetName)
	require.Len(t, tables[0].Rows, 2)
	assert.True(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Equal(tables[0].Rows[0].Time))
	assert.Equal(t, "STOP", tables[0].Rows[0].Cells[2])
}
