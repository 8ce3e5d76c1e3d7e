package analysis

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Grid is a raw two-dimensional table as produced by a loader. Cells are
// nil, string, numeric, bool or time.Time values. Rows are not guaranteed
// to have the same length.
type Grid [][]any

// Row is one data row. After NormalizeRows, cells of monetary columns hold
// float64 values and every row is padded to the header width.
type Row []any

// CellText returns the display text of a raw cell.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func isBlank(v any) bool { return strings.TrimSpace(CellText(v)) == "" }

func isNumericValue(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint, uint64, uint32:
		return true
	}
	return false
}

func cellAt(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func nonBlankCount(row []any) int {
	n := 0
	for _, c := range row {
		if !isBlank(c) {
			n++
		}
	}
	return n
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
