package analysis

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HeaderScanRows is how many leading rows are examined for a header.
const HeaderScanRows = 8

// ErrNoHeaderFound is returned when none of the first HeaderScanRows rows
// looks like a header.
var ErrNoHeaderFound = errors.New("no header row found")

// HeaderSpec identifies the header row and the resolved column labels.
type HeaderSpec struct {
	RowIndex int      `json:"row_index"`
	Labels   []string `json:"labels"`
	// CategoryRow is the row index merged into blank labels, or -1.
	CategoryRow int `json:"category_row"`
}

var dayOfWeekTokens = func() map[string]struct{} {
	m := map[string]struct{}{}
	ja := []string{"月", "火", "水", "木", "金", "土", "日"}
	for _, d := range ja {
		m[d] = struct{}{}
		m[d+"曜"] = struct{}{}
		m[d+"曜日"] = struct{}{}
	}
	en := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun",
		"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	for _, d := range en {
		m[d] = struct{}{}
		m[strings.ToLower(d)] = struct{}{}
		m[strings.ToUpper(d)] = struct{}{}
	}
	return m
}()

var headerDecorations = strings.NewReplacer(
	"¥", "", "￥", "", "$", "", "€", "", "£", "",
	"%", "", "％", "", ",", "", "，", "",
)

// isPlainNumber reports whether s parses as a number once currency,
// percent and comma decorations and whitespace are removed.
func isPlainNumber(s string) bool {
	s = headerDecorations.Replace(s)
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// rowShape summarizes one candidate header row.
type rowShape struct {
	nonBlank int
	textual  int
	hasDay   bool
}

func shapeOf(row []any) rowShape {
	var sh rowShape
	for _, c := range row {
		if isBlank(c) {
			continue
		}
		sh.nonBlank++
		text := strings.TrimSpace(CellText(c))
		if _, ok := dayOfWeekTokens[text]; ok {
			sh.hasDay = true
		}
		if !isNumericValue(c) && !isPlainNumber(text) {
			sh.textual++
		}
	}
	return sh
}

func (sh rowShape) qualifies() bool {
	if sh.hasDay {
		return true
	}
	return sh.textual >= 2 && float64(sh.textual) >= 0.3*float64(sh.nonBlank)
}

// DetectHeader locates the header row within the first HeaderScanRows rows
// and resolves one label per column. A sparse row 0 above a denser row 1 is
// treated as a category row whose values fill blank header labels.
func DetectHeader(g Grid) (HeaderSpec, error) {
	limit := len(g)
	if limit > HeaderScanRows {
		limit = HeaderScanRows
	}
	idx := -1
	for i := 0; i < limit; i++ {
		if shapeOf(g[i]).qualifies() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return HeaderSpec{}, ErrNoHeaderFound
	}

	category := -1
	if idx > 0 && len(g) > 1 {
		top, next := nonBlankCount(g[0]), nonBlankCount(g[1])
		if top > 0 && top < next {
			category = 0
		}
	}

	header := g[idx]
	width := len(header)
	var fill []string
	if category >= 0 {
		if len(g[category]) > width {
			width = len(g[category])
		}
		fill = forwardFill(g[category], width)
	}

	labels := make([]string, width)
	for i := 0; i < width; i++ {
		label := strings.TrimSpace(CellText(cellAt(header, i)))
		if label == "" && fill != nil {
			label = fill[i]
		}
		if label == "" {
			label = fmt.Sprintf("column %d", i+1)
		}
		labels[i] = label
	}
	return HeaderSpec{RowIndex: idx, Labels: labels, CategoryRow: category}, nil
}

// forwardFill spreads each non-blank category cell rightwards until the
// next non-blank one, mirroring merged spreadsheet cells.
func forwardFill(row []any, width int) []string {
	out := make([]string, width)
	cur := ""
	for i := 0; i < width; i++ {
		if v := strings.TrimSpace(CellText(cellAt(row, i))); v != "" {
			cur = v
		}
		out[i] = cur
	}
	return out
}
