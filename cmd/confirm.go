package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/gridloom-cli/internal/parser"
	"github.com/spf13/cobra"
)

var (
	cfmMaps       []string
	cfmAccept     bool
	cfmDelimiter  string
	cfmMaxRows    int
	cfmSheetName  string
	cfmSheetIndex int
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <file>",
	Short: "Remember a column mapping for this file's header layout",
	Long: `Confirm stores a label -> field mapping for the header set of <file>, scoped to the
tenant. Files with the same header labels, in any order, are then classified with the
stored mapping. --accept saves the detected roles; --map label=field sets or overrides
single columns. Targets "ignore", "unknown", "無視する" and "不明" are not stored, and a
"custom:" prefix is stripped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfmAccept && len(cfmMaps) == 0 {
			return fmt.Errorf("nothing to confirm: pass --accept and/or --map label=field")
		}
		if noStore {
			return fmt.Errorf("confirm needs the profile store; drop --no-store")
		}
		opt, err := loadOptions(cfmDelimiter, cfmSheetName, cfmSheetIndex, cfmMaxRows)
		if err != nil {
			return err
		}
		grid, err := parser.LoadFile(args[0], opt)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		p, closeFn, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		tenant := tenantID()
		det, err := p.DetectAndClassify(ctx, grid, tenant)
		if err != nil {
			return err
		}
		mappings := map[string]string{}
		if cfmAccept {
			mappings = det.Classification.Mappings()
		}
		overrides, err := parseMappings(cfmMaps, det.Header.Labels)
		if err != nil {
			return err
		}
		for label, field := range overrides {
			mappings[label] = field
		}
		if err := p.ConfirmMapping(ctx, tenant, det.Header.Labels, mappings); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Saved format profile for tenant '%s' (%d columns)\n", tenant, len(det.Header.Labels))
		labels := make([]string, 0, len(mappings))
		for label := range mappings {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(out, "  %s → %s\n", label, mappings[label])
		}
		return nil
	},
}

// parseMappings parses label=field pairs and checks every label is a
// header label.
func parseMappings(pairs []string, labels []string) (map[string]string, error) {
	known := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		known[l] = struct{}{}
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		label, field, ok := strings.Cut(pair, "=")
		label, field = strings.TrimSpace(label), strings.TrimSpace(field)
		if !ok || label == "" || field == "" {
			return nil, fmt.Errorf("invalid --map %q (want label=field)", pair)
		}
		if _, ok := known[label]; !ok {
			return nil, fmt.Errorf("invalid --map %q: no column labeled %q (labels: %s)", pair, label, strings.Join(labels, ", "))
		}
		out[label] = field
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(confirmCmd)
	confirmCmd.Flags().StringArrayVar(&cfmMaps, "map", nil, "label=field mapping (repeatable)")
	confirmCmd.Flags().BoolVar(&cfmAccept, "accept", false, "store the detected roles as the mapping")
	addInputFlags(confirmCmd, &cfmDelimiter, &cfmSheetName, &cfmSheetIndex, &cfmMaxRows)
}
