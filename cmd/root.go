package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	cfgpkg "github.com/KaramelBytes/gridloom-cli/internal/config"
	"github.com/KaramelBytes/gridloom-cli/internal/logging"
	"github.com/KaramelBytes/gridloom-cli/internal/pipeline"
	"github.com/KaramelBytes/gridloom-cli/internal/profile"
	"github.com/spf13/cobra"
)

// defaultTenant scopes profiles when neither --tenant nor tenant_id is set.
const defaultTenant = "local"

// lookupTimeout caps how long analysis waits on the profile store.
const lookupTimeout = 5 * time.Second

var (
	// Global flags
	cfgFile    string
	debug      bool
	flagDB     string
	flagTenant string
	noStore    bool

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "gridloom",
	Short: "GridLoom CLI: turn messy spreadsheets into chart-ready summaries",
	Long: `GridLoom reads CSV/TSV/XLSX files with decorated or multi-row headers, classifies
each column (date, amount, category), normalizes numeric text such as 1.5万円 or (300),
and aggregates the rows into a time series and a top-N category breakdown. Confirmed
column mappings are remembered per header shape, so the same layout is recognized on
the next upload.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Runs before every command, so each Execute sees the current env.
	cobra.OnInitialize(loadConfig)

	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.gridloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "profile database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagTenant, "tenant", "", "tenant that owns learned profiles (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noStore, "no-store", false, "do not read or write learned profiles")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		cfg = nil
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagTenant != "" {
		cfg.TenantID = strings.TrimSpace(flagTenant)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}
	if debug {
		level = slog.LevelDebug
	}
	logger = logging.Setup(os.Stderr, level, cfg.LogFormat)
}

func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no valid configuration loaded (see warning above)")
	}
	return cfg, nil
}

func tenantID() string {
	if cfg != nil && cfg.TenantID != "" {
		return cfg.TenantID
	}
	return defaultTenant
}

// openStore opens and migrates the profile database. The returned function
// closes it.
func openStore(ctx context.Context) (profile.Store, func(), error) {
	c, err := requireConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := profile.NewSQLiteStore(c.DBPath, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("migrate profile database: %w", err)
	}
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close profile database", "error", err)
		}
	}, nil
}

func pipelineOptions(c *cfgpkg.Global) pipeline.Options {
	return pipeline.Options{
		SampleRows:    c.SampleRows,
		TopN:          c.TopN,
		KeyWidth:      c.KeyWidth,
		LookupTimeout: lookupTimeout,
	}
}

// openPipeline builds a pipeline over the profile store, or over no store
// with --no-store. A store that cannot be opened is an error.
func openPipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	c, err := requireConfig()
	if err != nil {
		return nil, nil, err
	}
	if noStore {
		return pipeline.New(nil, logger, pipelineOptions(c)), func() {}, nil
	}
	store, closeFn, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(store, logger, pipelineOptions(c)), closeFn, nil
}

// openAnalyzePipeline is openPipeline for read-only analysis: when the
// store cannot be opened the pipeline classifies with heuristics only.
func openAnalyzePipeline(ctx context.Context) (*pipeline.Pipeline, func(), error) {
	c, err := requireConfig()
	if err != nil {
		return nil, nil, err
	}
	if noStore {
		return pipeline.New(nil, logger, pipelineOptions(c)), func() {}, nil
	}
	store, closeFn, err := openStore(ctx)
	if err != nil {
		logger.Warn("profile store unavailable, classifying without learned profiles", "db", c.DBPath, "error", err)
		return pipeline.New(nil, logger, pipelineOptions(c)), func() {}, nil
	}
	return pipeline.New(store, logger, pipelineOptions(c)), closeFn, nil
}
