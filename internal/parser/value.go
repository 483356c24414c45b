package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/plc-filebridge/backend/internal/models"
)

var (
	floatRegex = regexp.MustCompile(`^[+-]?(?:\d+\.\d*|\.\d+|\d+)(?:[eE][+-]?\d+)?$`)

	// Spreadsheet exports spell missing values in many ways; these are read as empty.
	missingMarkers = map[string]struct{}{
		"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {}, "-NaN": {}, "-nan": {},
		"1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {},
		"n/a": {}, "nan": {}, "null": {},
	}
)

// IsMissing reports whether a raw cell holds no value.
func IsMissing(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	_, ok := missingMarkers[s]
	return ok
}

// ParseCell converts a raw cell to its typed value: nil, int64, float64,
// time.Time or string. Only the "2006-01-02 15:04:05" layout, which readers
// emit for date-formatted cells, becomes a time.
func ParseCell(raw string) any {
	if IsMissing(raw) {
		return nil
	}
	s := strings.TrimSpace(raw)

	if len(s) == len(models.WatermarkLayout) {
		if t, err := models.ParseWatermark(s); err == nil {
			return t
		}
	}

	if isIntegerFast(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	if floatRegex.MatchString(s) && !hasLeadingZero(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	}
	return raw
}

// isIntegerFast checks for a plain decimal integer without regex. Codes with
// leading zeros ("007") stay text.
func isIntegerFast(s string) bool {
	if len(s) == 0 {
		return false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
		if i >= len(s) {
			return false
		}
	}
	if s[i] == '0' && len(s)-i > 1 {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
