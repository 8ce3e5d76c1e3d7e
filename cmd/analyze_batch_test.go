package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestAnalyzeBatch_OutDirAvoidsOverwrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	// Two CSV files with the same basename in different directories
	csv := "col1,col2\nA,1\nB,2\nC,3\n"
	writeFile(t, filepath.Join(home, "d1", "metrics.csv"), csv)
	writeFile(t, filepath.Join(home, "d2", "metrics.csv"), csv)
	outDir := filepath.Join(home, "summaries")

	out := runCmd(t, "analyze-batch", filepath.Join(home, "d*", "metrics.csv"), "--out-dir", outDir, "--quiet", "--no-store", "--workers", "2")
	if strings.TrimSpace(out) != "" {
		t.Fatalf("--quiet should print nothing, got:\n%s", out)
	}

	b1 := filepath.Join(outDir, "metrics.summary.md")
	b2 := filepath.Join(outDir, "metrics__2.summary.md")
	for _, p := range []string{b1, b2} {
		body, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("missing summary: %v", err)
		}
		if !strings.Contains(string(body), "[DATASET SUMMARY]") || !strings.Contains(string(body), "- A: 1") {
			t.Fatalf("unexpected summary in %s:\n%s", p, body)
		}
	}
}

func TestAnalyzeBatch_JSONAndSheetNames(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("Q1 Sales"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	rows := [][]any{
		{"日付", "店舗", "売上"},
		{"2024-01-01", "渋谷", 1000},
		{"2024-01-02", "新宿", 2500},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Q1 Sales", cell, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	xlsx := filepath.Join(home, "book.xlsx")
	if err := f.SaveAs(xlsx); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	outDir := filepath.Join(home, "out")

	out := runCmd(t, "analyze-batch", xlsx, "--sheet-name", "Q1 Sales", "--format", "json", "--out-dir", outDir, "--no-store")
	if !strings.Contains(out, "[1/1] ✓ book.xlsx → book__sheet-q1-sales.summary.json") {
		t.Fatalf("unexpected progress output:\n%s", out)
	}

	body, err := os.ReadFile(filepath.Join(outDir, "book__sheet-q1-sales.summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var rep struct {
		Kind   string `json:"data_kind"`
		Result struct {
			ValueColumn string `json:"value_column"`
			Rows        int    `json:"rows"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &rep); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if rep.Kind != "sales" || rep.Result.ValueColumn != "売上" || rep.Result.Rows != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestAnalyzeBatch_NoMatches(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := execCmd("analyze-batch", filepath.Join(t.TempDir(), "*.csv")); err == nil {
		t.Fatalf("expected an error when nothing matches")
	}
}
