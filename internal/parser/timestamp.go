package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/width"
)

// TimestampRule turns normalized cell text into an instant. fallback is the
// date embedded in the file name, or nil when the name carries none.
// Rules must not panic and report failure through ok.
type TimestampRule func(text string, fallback *time.Time) (t time.Time, ok bool)

// NamedRule pairs a rule with a label used in logs and tests.
type NamedRule struct {
	Name string
	Rule TimestampRule
}

// DefaultTimestampRules is the order in which vendor formats are tried.
func DefaultTimestampRules() []NamedRule {
	return []NamedRule{
		{Name: "localized", Rule: ParseLocalized},
		{Name: "bare-time", Rule: ParseBareTime},
		{Name: "dotted", Rule: ParseDotted},
		{Name: "excel-serial", Rule: ParseExcelSerial},
		{Name: "generic", Rule: ParseGeneric},
	}
}

// TimestampParser tries its rules in order and stops at the first success.
type TimestampParser struct {
	rules []NamedRule
}

// NewTimestampParser builds a parser. With no rules the default chain is used.
func NewTimestampParser(rules ...NamedRule) *TimestampParser {
	if len(rules) == 0 {
		rules = DefaultTimestampRules()
	}
	return &TimestampParser{rules: rules}
}

// Parse returns the instant for raw, or ok=false when no rule accepts it.
func (p *TimestampParser) Parse(raw string, fallback *time.Time) (time.Time, bool) {
	text := NormalizeTimestampText(raw)
	if text == "" {
		return time.Time{}, false
	}
	for _, r := range p.rules {
		if t, ok := r.Rule(text, fallback); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// RuleNames lists the configured rules in order.
func (p *TimestampParser) RuleNames() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name
	}
	return names
}

// NormalizeTimestampText folds full-width characters and collapses whitespace.
func NormalizeTimestampText(raw string) string {
	s := width.Fold.String(raw)
	return strings.Join(strings.Fields(s), " ")
}

var (
	localizedRe = regexp.MustCompile(`^(\d{4}|\d{2})\s*[년年]\s*(\d{1,2})\s*[월月]\s*(\d{1,2})\s*[일日]\s*` +
		`(?:(오전|오후|AM|PM|am|pm)\s*)?` +
		`(?:(\d{1,2})\s*[시時时]\s*)?(?:(\d{1,2})\s*[분分]\s*)?(?:(\d{1,2})(?:\.\d+)?\s*[초秒]\s*)?$`)
	bareTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?$`)
	dottedRe   = regexp.MustCompile(`^(\d{4}|\d{2})\.(\d{1,2})\.(\d{1,2})\.?(?:\s+(\d{1,2}):(\d{2})(?::(\d{2})(?:\.(\d{1,9}))?)?)?$`)
	serialRe   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParseLocalized handles calendar glyph markers such as "24년1월1일 10시20분30초".
func ParseLocalized(text string, _ *time.Time) (time.Time, bool) {
	m := localizedRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	year := expandYear(m[1])
	month, day := atoi(m[2]), atoi(m[3])
	hour, minute, second := atoi(m[5]), atoi(m[6]), atoi(m[7])

	switch m[4] {
	case "오후", "PM", "pm":
		if hour < 12 {
			hour += 12
		}
	case "오전", "AM", "am":
		if hour == 12 {
			hour = 0
		}
	}
	return makeTime(year, month, day, hour, minute, second, 0)
}

// ParseBareTime anchors a time of day such as "10:20" or "10:20:30" to the
// fallback date; missing seconds are zero. Without a fallback date the text
// is rejected rather than anchored to the current day, so a file without a
// dated name never gets rows stamped with the day it happened to be read.
func ParseBareTime(text string, fallback *time.Time) (time.Time, bool) {
	if len(text) > 18 {
		return time.Time{}, false
	}
	m := bareTimeRe.FindStringSubmatch(text)
	if m == nil || fallback == nil {
		return time.Time{}, false
	}
	// seconds default to zero when the device omits them
	y, mo, d := fallback.Date()
	return makeTime(y, int(mo), d, atoi(m[1]), atoi(m[2]), atoi(m[3]), fraction(m[4]))
}

// ParseDotted handles "2024.01.01 10:20:30" and "24.01.01 10:20:30".
func ParseDotted(text string, _ *time.Time) (time.Time, bool) {
	m := dottedRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	return makeTime(expandYear(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]), atoi(m[5]), atoi(m[6]), fraction(m[7]))
}

// ParseExcelSerial converts spreadsheet day serials that reach us as raw cell
// values. Fractions below one are a time of day and need the fallback date.
func ParseExcelSerial(text string, fallback *time.Time) (time.Time, bool) {
	if !serialRe.MatchString(text) {
		return time.Time{}, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return time.Time{}, false
	}

	if f < 1 && strings.Contains(text, ".") {
		if fallback == nil {
			return time.Time{}, false
		}
		offset := time.Duration(f * float64(24*time.Hour)).Round(time.Second)
		y, mo, d := fallback.Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC).Add(offset), true
	}

	if f < 20000 || f > 80000 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	t = t.Round(time.Second)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
}

// ParseGeneric is the best-effort last resort.
func ParseGeneric(text string, _ *time.Time) (time.Time, bool) {
	if bareTimeRe.MatchString(text) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(text, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() < 1900 || t.Year() > 2200 {
		return time.Time{}, false
	}
	// keep the wall clock as written; watermarks are zone-less
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
}

var fallbackLayouts = []string{"2006-01-02", "20060102", "2006.01.02", "2006/01/02", "060102"}

// FallbackDateFromPath extracts the date carried by the trailing
// '_'-delimited token of a file's base name, e.g. "line3_20240501.xlsx".
func FallbackDateFromPath(path string) *time.Time {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	i := strings.LastIndexByte(base, '_')
	if i < 0 || i == len(base)-1 {
		return nil
	}
	token := NormalizeTimestampText(base[i+1:])

	if t, ok := ParseLocalized(token, nil); ok {
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, token, time.UTC); err == nil {
			return &t
		}
	}
	return nil
}

func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		// same pivot as strptime's %y
		if y < 69 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func fraction(s string) int {
	if s == "" {
		return 0
	}
	for len(s) < 9 {
		s += "0"
	}
	return atoi(s[:9])
}

func makeTime(year, month, day, hour, minute, second, nsec int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 || nsec < 0 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, nsec, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
