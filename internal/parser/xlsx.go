package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

func (xlsxLoader) Load(path string, opt Options) (analysis.Grid, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opt)
	if err != nil {
		return nil, err
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	var g analysis.Grid
	for rows.Next() {
		if opt.MaxRows > 0 && len(g) >= opt.MaxRows {
			break
		}
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(g)+1, err)
		}
		row := make([]any, len(cols))
		for i, v := range cols {
			row[i] = v
		}
		g = append(g, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return g, nil
}

func pickSheet(sheets []string, opt Options) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if opt.SheetName != "" {
		for _, s := range sheets {
			if s == opt.SheetName {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", opt.SheetName, strings.Join(sheets, ", "))
	}
	if opt.SheetIndex > 0 {
		if opt.SheetIndex > len(sheets) {
			return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", opt.SheetIndex, len(sheets))
		}
		return sheets[opt.SheetIndex-1], nil
	}
	return sheets[0], nil
}
