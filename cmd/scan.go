package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/feed"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/reporter"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/scanner"
	"github.com/spf13/cobra"
)

var (
	flagFeed              string
	flagRoot              string
	flagOutputDir         string
	flagOutput            string
	flagFormat            string
	flagNoFail            bool
	flagConcurrency       int
	flagPluginConcurrency int
	flagCompare           string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a hosting tree against a threat feed",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&flagFeed, "feed", "", "Threat feed (semicolon-delimited CSV or TOML)")
	scanCmd.Flags().StringVarP(&flagRoot, "root", "r", "", "Directory containing the sites (default from config)")
	scanCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "Directory for the CSV report file")
	scanCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().StringVarP(&flagFormat, "format", "f", "terminal", "Output format: terminal, json, sarif, csv")
	scanCmd.Flags().BoolVar(&flagNoFail, "no-fail", false, "Don't exit with error code if matches found")
	scanCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Sites scanned in parallel")
	scanCmd.Flags().IntVar(&flagPluginConcurrency, "plugin-concurrency", 0, "Plugins per site scanned in parallel")
	scanCmd.Flags().StringVar(&flagCompare, "compare", "", "Version ordering: padded, longer-wins, semver")
	_ = scanCmd.MarkFlagRequired("feed")

	rootCmd.AddCommand(scanCmd)
}

// applyScanFlags overrides config values with the flags given on the
// command line.
func applyScanFlags(cmd *cobra.Command) func(*models.Config) {
	return func(cfg *models.Config) {
		flags := cmd.Flags()
		if flags.Changed("root") {
			cfg.Root = flagRoot
		}
		if flags.Changed("output-dir") {
			cfg.OutputDir = flagOutputDir
		}
		if flags.Changed("output") {
			cfg.OutputFile = flagOutput
		}
		if flags.Changed("format") {
			cfg.OutputFormat = flagFormat
		}
		if flags.Changed("no-fail") {
			cfg.FailOnMatch = !flagNoFail
		}
		if flags.Changed("concurrency") {
			cfg.Concurrency = flagConcurrency
		}
		if flags.Changed("plugin-concurrency") {
			cfg.PluginConcurrency = flagPluginConcurrency
		}
		if flags.Changed("compare") {
			cfg.VersionCompare = flagCompare
		}
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applyScanFlags(cmd))
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	threats, err := feed.Load(flagFeed)
	if err != nil {
		return fmt.Errorf("failed to load threat feed: %w", err)
	}
	logger.Infow("threat feed loaded", "feed", flagFeed, "threats", len(threats))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := scanner.CheckVulnerabilities(ctx, cfg, threats, scanner.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	// Generate report
	rep := reporter.Get(cfg.OutputFormat)
	output, err := rep.Report(res.Matches)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Write output
	if cfg.OutputFile != "" {
		if err := os.WriteFile(cfg.OutputFile, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", cfg.OutputFile)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), string(output))
	}

	if len(res.Matches) > 0 && cfg.FailOnMatch {
		return errMatchesFound
	}

	return nil
}
