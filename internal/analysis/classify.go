package analysis

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// ClassifySampleRows is the maximum number of data rows inspected per column.
const ClassifySampleRows = 10

// Role is the semantic role of a column.
type Role string

const (
	RoleTemporal    Role = "temporal"
	RoleMonetary    Role = "monetary"
	RoleCategorical Role = "categorical"
	RoleOther       Role = "other"
)

func (r Role) valid() (Role, bool) {
	switch r {
	case RoleTemporal, RoleMonetary, RoleCategorical, RoleOther:
		return r, true
	}
	return RoleOther, false
}

// Source records which rule decided a column's role.
type Source string

const (
	SourceLearnedProfile     Source = "learnedProfile"
	SourceKeywordMatch       Source = "keywordMatch"
	SourcePatternMatch       Source = "patternMatch"
	SourcePositionalFallback Source = "positionalFallback"
)

// ColumnAssignment is the classification of a single column.
type ColumnAssignment struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Role   Role   `json:"role"`
	Source Source `json:"source"`
	// Field is the learned canonical field name, set for learned columns.
	Field string `json:"field,omitempty"`
}

// Classification holds one assignment per header column, in column order.
type Classification struct {
	Columns []ColumnAssignment `json:"columns"`
}

// Lookup returns the assignment of the first column carrying label.
func (c Classification) Lookup(label string) (ColumnAssignment, bool) {
	for _, col := range c.Columns {
		if col.Label == label {
			return col, true
		}
	}
	return ColumnAssignment{}, false
}

// First returns the first column with the given role.
func (c Classification) First(role Role) (ColumnAssignment, bool) {
	for _, col := range c.Columns {
		if col.Role == role {
			return col, true
		}
	}
	return ColumnAssignment{}, false
}

// WithRole returns all columns with the given role, in column order.
func (c Classification) WithRole(role Role) []ColumnAssignment {
	var out []ColumnAssignment
	for _, col := range c.Columns {
		if col.Role == role {
			out = append(out, col)
		}
	}
	return out
}

// Mappings converts the classification into a label -> field mapping,
// using learned fields where present and role names otherwise.
func (c Classification) Mappings() map[string]string {
	out := make(map[string]string, len(c.Columns))
	for _, col := range c.Columns {
		if _, dup := out[col.Label]; dup {
			continue
		}
		field := col.Field
		if field == "" {
			field = string(col.Role)
		}
		out[col.Label] = field
	}
	return out
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d{4}[-/]\d{1,2}([-/]\d{1,2})?([ T]\d{1,2}:\d{2}(:\d{2})?)?$`),
	regexp.MustCompile(`^\d{4}\.\d{1,2}\.\d{1,2}$`),
	regexp.MustCompile(`^\d{1,2}/\d{1,2}(/\d{2,4})?$`),
	regexp.MustCompile(`^\d{4}年\s*\d{1,2}月(\s*\d{1,2}日)?`),
	regexp.MustCompile(`^\d{1,2}月\s*\d{1,2}日`),
	regexp.MustCompile(`^(令和|平成|昭和|R|H)\s*\d{1,2}[年.]\s*\d{1,2}`),
}

func looksLikeDate(v any) bool {
	if _, ok := v.(time.Time); ok {
		return true
	}
	if isNumericValue(v) {
		return false
	}
	s := strings.TrimSpace(narrow(CellText(v)))
	for _, re := range datePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Classify assigns a role to every header column. learned maps exact label
// text to a canonical field name and takes precedence over heuristics; it
// may be nil. Only the first ClassifySampleRows rows of sample are read.
func Classify(header HeaderSpec, sample []Row, learned map[string]string) Classification {
	if len(sample) > ClassifySampleRows {
		sample = sample[:ClassifySampleRows]
	}
	cls := Classification{Columns: make([]ColumnAssignment, len(header.Labels))}
	for i, label := range header.Labels {
		cls.Columns[i] = classifyColumn(i, label, columnValues(sample, i), learned)
	}
	return cls
}

func classifyColumn(idx int, label string, values []any, learned map[string]string) ColumnAssignment {
	col := ColumnAssignment{Index: idx, Label: label}

	if field, ok := learned[label]; ok && strings.TrimSpace(field) != "" {
		col.Field = field
		col.Role = RoleForField(field)
		col.Source = SourceLearnedProfile
		return col
	}

	if role, ok := DefaultKeywords.Match(label); ok {
		col.Role = role
		col.Source = SourceKeywordMatch
		return col
	}

	// A temporal decision above returns early, so temporal columns never
	// reach the monetary pattern below.
	if role, ok := patternRole(values); ok {
		col.Role = role
		col.Source = SourcePatternMatch
		return col
	}

	col.Role = RoleOther
	col.Source = SourcePositionalFallback
	return col
}

func patternRole(values []any) (Role, bool) {
	if len(values) == 0 {
		return RoleOther, false
	}
	dates, numbers := 0, 0
	large := false
	for _, v := range values {
		if looksLikeDate(v) {
			dates++
		}
		if f, ok := ParseNumber(v); ok {
			numbers++
			if math.Abs(f) >= 100 {
				large = true
			}
		}
	}
	n := float64(len(values))
	if float64(dates) >= 0.3*n {
		return RoleTemporal, true
	}
	if float64(numbers) >= 0.6*n && large {
		return RoleMonetary, true
	}
	return RoleOther, false
}

// columnValues returns the non-blank values of column i across rows.
func columnValues(rows []Row, i int) []any {
	var out []any
	for _, r := range rows {
		v := cellAt(r, i)
		if isBlank(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
