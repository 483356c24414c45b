package models

import (
	"fmt"
	"strings"
	"time"
)

// WatermarkLayout is the persisted form of every watermark.
const WatermarkLayout = "2006-01-02 15:04:05"

// ProgressKey identifies a (file, sheet) processing frontier.
type ProgressKey struct {
	FilePath string `json:"filePath" msgpack:"filePath"`
	Sheet    string `json:"sheet" msgpack:"sheet"`
}

// String renders the key as stored: "{absoluteFilePath}|{sheetName}".
func (k ProgressKey) String() string {
	return k.FilePath + "|" + k.Sheet
}

// ParseProgressKey splits a stored key on its last '|'.
func ParseProgressKey(s string) (ProgressKey, error) {
	i := strings.LastIndexByte(s, '|')
	if i < 0 {
		return ProgressKey{}, fmt.Errorf("progress key %q has no sheet separator", s)
	}
	return ProgressKey{FilePath: s[:i], Sheet: s[i+1:]}, nil
}

// Watermark is the new frontier produced by one sheet of a task.
type Watermark struct {
	Key  ProgressKey
	Time time.Time
}

// Delta is the list of watermarks a task returns on success.
type Delta []Watermark

// FormatWatermark renders t in the persisted layout.
func FormatWatermark(t time.Time) string {
	return t.Format(WatermarkLayout)
}

// ParseWatermark parses a persisted watermark as a naive UTC wall-clock time.
func ParseWatermark(s string) (time.Time, error) {
	return time.ParseInLocation(WatermarkLayout, strings.TrimSpace(s), time.UTC)
}
