package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/config"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/logging"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig string
	flagDebug  bool
)

// errMatchesFound makes the process exit with code 1 instead of 2
var errMatchesFound = errors.New("vulnerable plugins found")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "plugin-vuln-checker",
	Short: "Match installed CMS plugins against a threat feed",
	Long: `plugin-vuln-checker walks a hosting tree, finds every site with a
wp-content/plugins directory, reads the declared version of each installed
plugin and reports the installations whose version falls inside an affected
range of the threat feed.

Matches are written to "<timestamp>_<host>.csv" in the output directory and
printed to stdout in the selected format.

Examples:
  # Scan /var/www with a semicolon-delimited feed
  plugin-vuln-checker scan --feed threats.csv --root /var/www

  # Output SARIF for code scanning
  plugin-vuln-checker scan --feed threats.csv --format sarif --output results.sarif

  # Don't fail on matches (exit 0 regardless)
  plugin-vuln-checker scan --feed threats.csv --no-fail

  # Accept feed uploads over HTTP
  plugin-vuln-checker serve --config config.toml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errMatchesFound) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}

// loadConfig reads the config file named by --config and applies the
// command's flag overrides before validating.
func loadConfig(apply func(*models.Config)) (*models.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apply != nil {
		apply(cfg)
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return cfg, nil
}

func newLogger(cfg *models.Config) (*zap.SugaredLogger, error) {
	logger, err := logging.New(flagDebug || cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
