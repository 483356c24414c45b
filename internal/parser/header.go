package parser

import "strings"

// placeholderMarker is what pandas-based exporters write into blank header slots.
const placeholderMarker = "Unnamed:"

// IsPlaceholder reports whether a header label is an unfilled slot.
func IsPlaceholder(label string) bool {
	s := strings.TrimSpace(label)
	return s == "" || strings.Contains(s, placeholderMarker)
}

// FlattenHeader assembles one name per column from stacked header rows.
// A blank top-level label inherits the last label to its left, which is how
// merged header cells read back; lower-level blanks are skipped.
func FlattenHeader(rows [][]string, width int) []string {
	names := make([]string, width)
	if len(rows) == 0 {
		return names
	}

	if len(rows) == 1 {
		for c := 0; c < width; c++ {
			label := strings.TrimSpace(cellAt(rows[0], c))
			if IsPlaceholder(label) {
				label = ""
			}
			names[c] = label
		}
		return names
	}

	last := ""
	for c := 0; c < width; c++ {
		top := strings.TrimSpace(cellAt(rows[0], c))
		current := top
		if IsPlaceholder(top) {
			current = last
		} else {
			last = top
		}

		parts := make([]string, 0, len(rows))
		if current != "" {
			parts = append(parts, current)
		}
		for _, row := range rows[1:] {
			p := strings.TrimSpace(cellAt(row, c))
			if !IsPlaceholder(p) {
				parts = append(parts, p)
			}
		}
		names[c] = strings.Join(parts, ".")
	}
	return names
}

// LogicalName strips a trailing ".<digit>" suffix that duplicate-name
// handling appends ("Temp.1" -> "Temp").
func LogicalName(name string) string {
	n := len(name)
	if n > 2 && name[n-2] == '.' && name[n-1] >= '0' && name[n-1] <= '9' {
		return name[:n-2]
	}
	return name
}

// selectColumns returns the indices of columns to keep: named, and first of
// their logical name. dropped lists the names that were discarded.
func selectColumns(names []string) (keep []int, unnamed int, dropped []string) {
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if IsPlaceholder(name) {
			unnamed++
			continue
		}
		logical := LogicalName(name)
		if _, ok := seen[logical]; ok {
			dropped = append(dropped, name)
			continue
		}
		seen[logical] = struct{}{}
		keep = append(keep, i)
	}
	return keep, unnamed, dropped
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
