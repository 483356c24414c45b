// Package models contains domain types for the file bridge worker and ingress service.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// HeaderSpec lists the 1-based workbook rows that form a sheet's header.
// A single entry is a plain header row; several entries form a hierarchical header.
type HeaderSpec []int

// DefaultHeaderSpec is used when a sidecar omits or garbles its headerline.
var DefaultHeaderSpec = HeaderSpec{1}

// ParseHeaderSpec accepts "3", "[1,2]" or "[1, 2]".
func ParseHeaderSpec(raw string) (HeaderSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty header spec")
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		var rows []int
		if err := json.Unmarshal([]byte(s), &rows); err != nil {
			return nil, fmt.Errorf("header spec %q: %w", raw, err)
		}
		spec := HeaderSpec(rows)
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		return spec, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("header spec %q: %w", raw, err)
	}
	spec := HeaderSpec{n}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks that the spec has at least one row and no row below 1.
func (h HeaderSpec) Validate() error {
	if len(h) == 0 {
		return fmt.Errorf("header spec has no rows")
	}
	for _, r := range h {
		if r < 1 {
			return fmt.Errorf("header row %d is not 1-based", r)
		}
	}
	return nil
}

// IsMulti reports whether the header spans several rows.
func (h HeaderSpec) IsMulti() bool {
	return len(h) > 1
}

// Max returns the last header row.
func (h HeaderSpec) Max() int {
	m := 0
	for _, r := range h {
		if r > m {
			m = r
		}
	}
	return m
}

// String renders the spec the way sidecars carry it.
func (h HeaderSpec) String() string {
	if len(h) == 1 {
		return strconv.Itoa(h[0])
	}
	parts := make([]string, len(h))
	for i, r := range h {
		parts[i] = strconv.Itoa(r)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// UnmarshalJSON accepts a number, a numeric string, a bracketed string or an array.
func (h *HeaderSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*h = nil
		return nil
	}

	switch data[0] {
	case '[':
		var rows []int
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("header spec: %w", err)
		}
		*h = rows
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("header spec: %w", err)
		}
		spec, err := ParseHeaderSpec(s)
		if err != nil {
			return err
		}
		*h = spec
		return nil
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("header spec: %w", err)
		}
		*h = HeaderSpec{n}
		return nil
	}
}

// Sidecar is the metadata document stored next to every uploaded data file.
// Form values arrive as strings, so the numeric fields stay raw and are
// interpreted by Task construction.
type Sidecar struct {
	DeviceID    string          `json:"deviceid"`
	DataID      string          `json:"dataid"`
	OrgFileName string          `json:"orgfilename"`
	HeaderLine  json.RawMessage `json:"headerline,omitempty"`
	ColumnLine  json.RawMessage `json:"columnline,omitempty"`
}

// Task is one file to process in the current cycle.
type Task struct {
	FilePath   string     `json:"filePath"`
	DeviceID   string     `json:"deviceId"`
	DataID     string     `json:"dataId"`
	Header     HeaderSpec `json:"headerSpec"`
	ColumnLine int        `json:"columnLine"` // 1-based first data row; 0 when unknown
}

// RowsToSkip is the number of leading data rows to drop so that data starts
// at ColumnLine instead of directly under the header.
func (t Task) RowsToSkip() int {
	if t.ColumnLine <= 0 {
		return 0
	}
	n := t.ColumnLine - (t.Header.Max() + 1)
	if n < 0 {
		return 0
	}
	return n
}

// ParseColumnLine reads a raw sidecar columnline value. Anything that is not a
// positive integer yields 0 (no rows skipped).
func ParseColumnLine(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
	} else {
		s = string(raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0
	}
	return n
}
