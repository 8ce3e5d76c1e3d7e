package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
	"github.com/KaramelBytes/gridloom-cli/internal/parser"
	"github.com/KaramelBytes/gridloom-cli/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	abOutDir     string
	abDelimiter  string
	abMaxRows    int
	abGroupBy    string
	abValue      string
	abTop        int
	abFormat     string
	abSheetName  string
	abSheetIndex int
	abWorkers    int
	abQuiet      bool
)

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := utils.ExpandInputs(args)
		if err != nil {
			return err
		}
		if err := checkFormat(abFormat); err != nil {
			return err
		}
		opt, err := loadOptions(abDelimiter, abSheetName, abSheetIndex, abMaxRows)
		if err != nil {
			return err
		}
		if err := applyTop(cmd, abTop); err != nil {
			return err
		}
		c, err := requireConfig()
		if err != nil {
			return err
		}
		workers := abWorkers
		if workers <= 0 {
			workers = c.BatchWorkers
		}
		if abOutDir != "" {
			if err := utils.EnsureDir(abOutDir); err != nil {
				return fmt.Errorf("create --out-dir: %w", err)
			}
		}

		p, closeFn, err := openAnalyzePipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		bar := newBatchBar(cmd, len(files))
		reports := make([]*analysis.Report, len(files))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(workers)
		for i, path := range files {
			g.Go(func() error {
				grid, err := parser.LoadFile(path, opt)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				rep, err := p.Analyze(ctx, filepath.Base(path), grid, tenantID(), abGroupBy, abValue)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				reports[i] = rep
				if bar != nil {
					if err := bar.Add(1); err != nil {
						logger.Warn("Failed to update progress bar", "error", err)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// Outputs are written in input order so collision suffixes are stable.
		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			body, err := renderReport(reports[i], abFormat)
			if err != nil {
				return err
			}
			if abOutDir == "" {
				if !abQuiet {
					fmt.Fprintf(out, "[%d/%d] %s\n", i+1, total, filepath.Base(path))
					fmt.Fprintln(out, string(body))
				}
				continue
			}
			outFile := utils.UniquePath(abOutDir, summaryBase(path, abSheetName), reportExt(abFormat))
			if err := utils.SafeWriteFile(outFile, body); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] ✓ %s → %s\n", i+1, total, filepath.Base(path), filepath.Base(outFile))
			}
		}
		return nil
	},
}

func newBatchBar(cmd *cobra.Command, total int) *progressbar.ProgressBar {
	if abQuiet || total < 2 {
		return nil
	}
	w := cmd.ErrOrStderr()
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Analyzing files...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// summaryBase names a report after its input file and, when given, sheet.
func summaryBase(path, sheetName string) string {
	base := filepath.Base(path)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	if sheetName == "" {
		return safe
	}
	return safe + "__sheet-" + utils.Slug(sheetName, "sheet")
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "directory for one report per input (default: print to stdout)")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "markdown", "report format: markdown | json")
	addInputFlags(analyzeBatchCmd, &abDelimiter, &abSheetName, &abSheetIndex, &abMaxRows)
	analyzeBatchCmd.Flags().StringVar(&abGroupBy, "group-by", "", "column label for the time-series axis (default: first date column)")
	analyzeBatchCmd.Flags().StringVar(&abValue, "value", "", "column label to sum (default: first amount column)")
	analyzeBatchCmd.Flags().IntVar(&abTop, "top", 0, "number of categories in the breakdown (overrides config)")
	analyzeBatchCmd.Flags().IntVar(&abWorkers, "workers", 0, "files analyzed in parallel (default from config batch_workers)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
