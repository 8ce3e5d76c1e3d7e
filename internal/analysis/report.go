package analysis

import (
	"fmt"
	"math"
	"strings"
)

// maxSeriesLines caps the time series section; the JSON output is complete.
const maxSeriesLines = 60

// Report is a markdown-friendly rendering of one pipeline run.
type Report struct {
	Name           string             `json:"name,omitempty"`
	Kind           DataKind           `json:"data_kind"`
	Header         HeaderSpec         `json:"header"`
	Classification Classification     `json:"classification"`
	ProfileHit     bool               `json:"profile_hit"`
	ProfileID      string             `json:"profile_id,omitempty"`
	Fingerprint    string             `json:"fingerprint,omitempty"`
	Result         *AggregationResult `json:"result,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// Markdown renders the report as plain sections suitable for a terminal or
// a markdown viewer.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Kind != "" {
		b.WriteString(fmt.Sprintf("Kind: %s (%s)\n", r.Kind.DisplayName(), r.Kind))
	}
	b.WriteString(fmt.Sprintf("Header row: %d", r.Header.RowIndex+1))
	if r.Header.CategoryRow >= 0 {
		b.WriteString(fmt.Sprintf(" (merged category row %d)", r.Header.CategoryRow+1))
	}
	b.WriteString("\n")
	if r.Result != nil {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Result.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n", len(r.Header.Labels)))
	if r.ProfileHit {
		b.WriteString(fmt.Sprintf("Profile: learned (%s)\n", r.ProfileID))
	} else {
		b.WriteString("Profile: none\n")
	}
	b.WriteString("\n")

	b.WriteString("[COLUMNS]\n")
	for _, c := range r.Classification.Columns {
		b.WriteString(fmt.Sprintf("- %s: %s (%s)", safeName(c.Label), c.Role, c.Source))
		if c.Field != "" && c.Field != string(c.Role) {
			b.WriteString(fmt.Sprintf(" → %s", c.Field))
		}
		b.WriteString("\n")
	}

	if res := r.Result; res != nil {
		if len(res.Series) > 0 {
			b.WriteString(fmt.Sprintf("\n[TIME SERIES] %s by %s\n", safeName(res.ValueColumn), safeName(res.GroupKey)))
			lim := len(res.Series)
			if lim > maxSeriesLines {
				lim = maxSeriesLines
			}
			for _, p := range res.Series[:lim] {
				b.WriteString(fmt.Sprintf("- %s: %s\n", safeVal(p.Key), formatAmount(p.Value)))
			}
			if len(res.Series) > lim {
				b.WriteString(fmt.Sprintf("- … %d more\n", len(res.Series)-lim))
			}
		}
		if len(res.Categories) > 0 {
			b.WriteString(fmt.Sprintf("\n[TOP CATEGORIES] by %s\n", safeName(res.CategorySource)))
			for i, c := range res.Categories {
				b.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, safeVal(c.Name), formatAmount(c.Value)))
			}
		}
		if len(res.TotalsOrder) > 0 {
			b.WriteString("\n[TOTALS]\n")
			b.WriteString("| column | sum | average | max | min | parsed |\n")
			b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
			for _, name := range res.TotalsOrder {
				st := res.Totals[name]
				b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d/%d |\n",
					safeVal(safeName(name)), formatAmount(st.Sum), formatAmount(st.Average),
					formatAmount(st.Max), formatAmount(st.Min), st.Parsed, st.Count))
			}
		}
	}

	warnings := append([]string(nil), r.Warnings...)
	if res := r.Result; res != nil {
		for _, name := range res.TotalsOrder {
			st := res.Totals[name]
			if st.Count > 0 && st.Parsed < st.Count {
				warnings = append(warnings, fmt.Sprintf("%s: %d of %d cells were blank or not numeric and counted as 0",
					safeName(name), st.Count-st.Parsed, st.Count))
			}
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// formatAmount prints integers without a fraction and everything else with
// two decimals.
func formatAmount(f float64) string {
	if math.Abs(f) < 1e15 && f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.2f", f)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
