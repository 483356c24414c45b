package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCell(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"", nil},
		{"  ", nil},
		{"NaN", nil},
		{"#N/A", nil},
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"0", int64(0)},
		{"1.5", 1.5},
		{"-0.25", -0.25},
		{"1e3", 1000.0},
		{"007", "007"},
		{"RUN", "RUN"},
		{"12:00", "12:00"},
		{"2024-01-01 12:00:00", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"2024-13-01 12:00:00", "2024-13-01 12:00:00"},
		{"99999999999999999999", 1e20},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCell(tt.raw))
		})
	}
}

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(""))
	assert.True(t, IsMissing("null"))
	assert.False(t, IsMissing("0"))
	assert.False(t, IsMissing("-"))
}
