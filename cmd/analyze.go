package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
	"github.com/KaramelBytes/gridloom-cli/internal/parser"
	"github.com/KaramelBytes/gridloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	anaOutputPath string
	anaDelimiter  string
	anaMaxRows    int
	anaGroupBy    string
	anaValue      string
	anaTop        int
	anaFormat     string
	anaSheetName  string
	anaSheetIndex int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Detect the header, classify columns and aggregate a CSV/TSV/XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := checkFormat(anaFormat); err != nil {
			return err
		}
		opt, err := loadOptions(anaDelimiter, anaSheetName, anaSheetIndex, anaMaxRows)
		if err != nil {
			return err
		}
		if err := applyTop(cmd, anaTop); err != nil {
			return err
		}
		grid, err := parser.LoadFile(path, opt)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		p, closeFn, err := openAnalyzePipeline(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		rep, err := p.Analyze(ctx, filepath.Base(path), grid, tenantID(), anaGroupBy, anaValue)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		out, err := renderReport(rep, anaFormat)
		if err != nil {
			return err
		}

		// Decide where to write: --output path or stdout
		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote analysis to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the report")
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "markdown", "report format: markdown | json")
	addInputFlags(analyzeCmd, &anaDelimiter, &anaSheetName, &anaSheetIndex, &anaMaxRows)
	analyzeCmd.Flags().StringVar(&anaGroupBy, "group-by", "", "column label for the time-series axis (default: first date column)")
	analyzeCmd.Flags().StringVar(&anaValue, "value", "", "column label to sum (default: first amount column)")
	analyzeCmd.Flags().IntVar(&anaTop, "top", 0, "number of categories in the breakdown (overrides config)")
}

// addInputFlags registers the grid loading flags shared by analyze,
// analyze-batch, confirm and profile.
func addInputFlags(cmd *cobra.Command, delimiter, sheetName *string, sheetIndex, maxRows *int) {
	cmd.Flags().StringVar(delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed if omitted)")
	cmd.Flags().StringVar(sheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	cmd.Flags().IntVar(sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	cmd.Flags().IntVar(maxRows, "max-rows", -1, "maximum rows to read (0 = unlimited, default from config)")
}

func loadOptions(delimiter, sheetName string, sheetIndex, maxRows int) (parser.Options, error) {
	opt := parser.Options{SheetName: sheetName, SheetIndex: sheetIndex, MaxRows: maxRows}
	if maxRows < 0 {
		opt.MaxRows = 0
		if cfg != nil {
			opt.MaxRows = cfg.MaxRows
		}
	}
	switch delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", delimiter)
	}
	return opt, nil
}

func applyTop(cmd *cobra.Command, top int) error {
	if !cmd.Flags().Changed("top") {
		return nil
	}
	c, err := requireConfig()
	if err != nil {
		return err
	}
	return c.Set("top_n", fmt.Sprint(top))
}

func checkFormat(format string) error {
	switch strings.ToLower(format) {
	case "markdown", "md", "json":
		return nil
	}
	return fmt.Errorf("unsupported --format: %s (use markdown|json)", format)
}

func renderReport(rep *analysis.Report, format string) ([]byte, error) {
	if strings.ToLower(format) == "json" {
		return utils.PrettyJSON(rep)
	}
	return []byte(rep.Markdown()), nil
}

func reportExt(format string) string {
	if strings.ToLower(format) == "json" {
		return ".summary.json"
	}
	return ".summary.md"
}
