package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenHeader_Hierarchical(t *testing.T) {
	rows := [][]string{
		{"A", ""},
		{"x", "y"},
	}
	assert.Equal(t, []string{"A.x", "A.y"}, FlattenHeader(rows, 2))
}

func TestFlattenHeader_CarriesTopLabelOnly(t *testing.T) {
	rows := [][]string{
		{"Time", "Line1", "Unnamed: 2_level_0", "Line2"},
		{"", "temp", "press", ""},
		{"", "", "", "flow"},
	}
	assert.Equal(t, []string{"Time", "Line1.temp", "Line1.press", "Line2.flow"}, FlattenHeader(rows, 4))
}

func TestFlattenHeader_SingleRowBlanksStayUnnamed(t *testing.T) {
	names := FlattenHeader([][]string{{"TIME", "", "Unnamed: 2", "Temp"}}, 5)
	assert.Equal(t, []string{"TIME", "", "", "Temp", ""}, names)
}

func TestLogicalName(t *testing.T) {
	assert.Equal(t, "Temp", LogicalName("Temp.1"))
	assert.Equal(t, "Temp", LogicalName("Temp"))
	assert.Equal(t, "A.x", LogicalName("A.x"))
	assert.Equal(t, "T.12", LogicalName("T.12"))
	assert.Equal(t, ".1", LogicalName(".1"))
}

func TestSelectColumns(t *testing.T) {
	keep, unnamed, dropped := selectColumns([]string{"TIME", "Temp", "", "Temp.1", "Press"})
	assert.Equal(t, []int{0, 1, 4}, keep)
	assert.Equal(t, 1, unnamed)
	assert.Equal(t, []string{"Temp.1"}, dropped)
}
