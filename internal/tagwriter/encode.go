package tagwriter

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/plc-filebridge/backend/internal/models"
)

// DefaultGenericSheetPrefixes marks sheet names that carry no meaning and are
// left out of node ids.
var DefaultGenericSheetPrefixes = []string{"Sheet"}

// NodeID builds "ns=2;s={dataid}[.{sheet}].{column}".
func NodeID(dataID, sheet, column string, genericPrefixes []string) string {
	var b strings.Builder
	b.WriteString("ns=2;s=")
	b.WriteString(dataID)
	if !isGenericSheet(sheet, genericPrefixes) {
		b.WriteByte('.')
		b.WriteString(sheet)
	}
	b.WriteByte('.')
	b.WriteString(column)
	return b.String()
}

func isGenericSheet(sheet string, prefixes []string) bool {
	if sheet == "" {
		return true
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(sheet, p) {
			return true
		}
	}
	return false
}

// EncodeValue renders a cell as the string sent to the server. ok is false
// for missing values, which are not written.
func EncodeValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return FormatFloat(x), true
	case time.Time:
		return x.Format(models.WatermarkLayout), true
	case string:
		return x, true
	default:
		return "", false
	}
}

// FormatFloat prints eight fractional digits and trims trailing zeros and a
// trailing point: 1.5 -> "1.5", 2.0 -> "2", 0.1+0.2 -> "0.3".
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
