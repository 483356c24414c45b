package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, mo time.Month, d, h, mi, s int) time.Time {
	return time.Date(y, mo, d, h, mi, s, 0, time.UTC)
}

func TestTimestampParser_Parse(t *testing.T) {
	p := NewTimestampParser()
	may1 := utc(2024, 5, 1, 0, 0, 0)

	tests := []struct {
		name     string
		raw      string
		fallback *time.Time
		want     time.Time
		ok       bool
	}{
		{"korean glyphs", "24년1월1일 10시20분30초", nil, utc(2024, 1, 1, 10, 20, 30), true},
		{"korean glyphs four digit year", "2024년 3월 9일 7시 5분 0초", nil, utc(2024, 3, 9, 7, 5, 0), true},
		{"afternoon marker", "24년1월1일 오후 3시10분", nil, utc(2024, 1, 1, 15, 10, 0), true},
		{"cjk glyphs", "2024年1月2日 08時00分00秒", nil, utc(2024, 1, 2, 8, 0, 0), true},
		{"full width digits", "２０２４-０１-０２ １０:００:００", nil, utc(2024, 1, 2, 10, 0, 0), true},
		{"bare time with fallback", "10:20:30", &may1, utc(2024, 5, 1, 10, 20, 30), true},
		{"bare time without seconds", "10:20", &may1, utc(2024, 5, 1, 10, 20, 0), true},
		{"bare time without fallback", "10:20:30", nil, time.Time{}, false},
		{"dotted", "2024.01.01 10:20:30", nil, utc(2024, 1, 1, 10, 20, 30), true},
		{"dotted short year", "24.01.01 10:20:30", nil, utc(2024, 1, 1, 10, 20, 30), true},
		{"iso", "2024-01-01 10:20:30", nil, utc(2024, 1, 1, 10, 20, 30), true},
		{"slashes", "2024/01/01 10:20:30", nil, utc(2024, 1, 1, 10, 20, 30), true},
		{"excel serial", "45292.5", nil, utc(2024, 1, 1, 12, 0, 0), true},
		{"excel fraction with fallback", "0.5", &may1, utc(2024, 5, 1, 12, 0, 0), true},
		{"excel fraction without fallback", "0.5", nil, time.Time{}, false},
		{"small number", "42", nil, time.Time{}, false},
		{"garbage", "not-a-time", nil, time.Time{}, false},
		{"empty", "   ", nil, time.Time{}, false},
		{"invalid day", "2024.02.30 10:00:00", nil, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Parse(tt.raw, tt.fallback)
			require.Equal(t, tt.ok, ok, "parse %q", tt.raw)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			}
		})
	}
}

func TestTimestampParser_CustomRules(t *testing.T) {
	calls := 0
	p := NewTimestampParser(NamedRule{Name: "never", Rule: func(string, *time.Time) (time.Time, bool) {
		calls++
		return time.Time{}, false
	}})

	_, ok := p.Parse("2024-01-01 00:00:00", nil)
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"never"}, p.RuleNames())
}

func TestTimestampParser_DefaultRuleOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"localized", "bare-time", "dotted", "excel-serial", "generic"},
		NewTimestampParser().RuleNames())
}

func TestFallbackDateFromPath(t *testing.T) {
	tests := []struct {
		path string
		want *time.Time
	}{
		{"/data/dev1/line3_20240501.xlsx", ptr(utc(2024, 5, 1, 0, 0, 0))},
		{"/data/dev1/line3_2024-05-01.xls", ptr(utc(2024, 5, 1, 0, 0, 0))},
		{"/data/dev1/report_24년5월1일.xlsx", ptr(utc(2024, 5, 1, 0, 0, 0))},
		{"/data/dev1/report_240501.xlsx", ptr(utc(2024, 5, 1, 0, 0, 0))},
		{"/data/dev1/report.xlsx", nil},
		{"/data/dev1/report_final.xlsx", nil},
		{"/data/dev1/report_.xlsx", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := FallbackDateFromPath(tt.path)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got))
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
