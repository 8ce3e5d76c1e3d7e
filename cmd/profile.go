package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/gridloom-cli/internal/analysis"
	"github.com/KaramelBytes/gridloom-cli/internal/parser"
	"github.com/KaramelBytes/gridloom-cli/internal/profile"
	"github.com/KaramelBytes/gridloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	pfDelimiter  string
	pfMaxRows    int
	pfSheetName  string
	pfSheetIndex int
	pfJSON       bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect learned format profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Show the detected header, column roles and any learned profile for a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grid, err := loadForProfile(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		p, closeFn, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		det, err := p.DetectAndClassify(ctx, grid, tenantID())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if pfJSON {
			b, err := utils.PrettyJSON(det)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintf(out, "Header row: %d\n", det.Header.RowIndex+1)
		fmt.Fprintf(out, "Fingerprint: %s\n", det.Fingerprint)
		fmt.Fprintf(out, "Kind: %s (%s)\n", det.Kind.DisplayName(), det.Kind)
		if det.ProfileHit {
			fmt.Fprintf(out, "Profile: %s (used %d times)\n", det.Profile.ID, det.Profile.UsageCount)
		} else {
			fmt.Fprintln(out, "Profile: none")
		}
		for _, c := range det.Classification.Columns {
			fmt.Fprintf(out, "  %d. %s: %s (%s)%s\n", c.Index+1, c.Label, c.Role, c.Source, fieldSuffix(c))
		}
		return nil
	},
}

var profileFingerprintCmd = &cobra.Command{
	Use:   "fingerprint <file>",
	Short: "Print the header fingerprint that keys a file's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grid, err := loadForProfile(args[0])
		if err != nil {
			return err
		}
		header, err := analysis.DetectHeader(grid)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), profile.Fingerprint(header.Labels))
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tenant's learned profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		profiles, err := store.List(cmd.Context(), tenantID())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if pfJSON {
			b, err := utils.PrettyJSON(profiles)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(profiles) == 0 {
			fmt.Fprintf(out, "No profiles for tenant '%s'\n", tenantID())
			return nil
		}
		for _, p := range profiles {
			fmt.Fprintf(out, "%s  updated %s  used %d  [%s]\n",
				p.ID, p.UpdatedAt.Local().Format("2006-01-02 15:04"), p.UsageCount, strings.Join(p.HeaderLabels, ", "))
		}
		return nil
	},
}

func loadForProfile(path string) (analysis.Grid, error) {
	opt, err := loadOptions(pfDelimiter, pfSheetName, pfSheetIndex, pfMaxRows)
	if err != nil {
		return nil, err
	}
	return parser.LoadFile(path, opt)
}

func fieldSuffix(c analysis.ColumnAssignment) string {
	if c.Field == "" {
		return ""
	}
	return " → " + c.Field
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileFingerprintCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.PersistentFlags().BoolVar(&pfJSON, "json", false, "print JSON instead of text")
	for _, c := range []*cobra.Command{profileShowCmd, profileFingerprintCmd} {
		addInputFlags(c, &pfDelimiter, &pfSheetName, &pfSheetIndex, &pfMaxRows)
	}
}
