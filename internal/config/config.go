// Package config loads and validates the plugin-vuln-checker TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
	"github.com/ethanolivertroy/plugin-vuln-checker/internal/version"
)

// Load reads a config.toml file on top of the defaults and returns a validated Config.
// An empty path skips the file and only applies defaults and environment overrides.
func Load(path string) (*models.Config, error) {
	cfg := models.DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	// Environment variable overrides for per-host values
	if root := os.Getenv("PVC_ROOT"); root != "" {
		cfg.Root = root
	}
	if dir := os.Getenv("PVC_OUTPUT_DIR"); dir != "" {
		cfg.OutputDir = dir
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises cfg in place and rejects values the scanner cannot use.
func Validate(cfg *models.Config) error {
	if strings.TrimSpace(cfg.Root) == "" {
		return fmt.Errorf("root is required")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}

	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	switch cfg.OutputFormat {
	case "terminal", "json", "sarif", "csv":
		// valid
	case "":
		cfg.OutputFormat = "terminal"
	default:
		return fmt.Errorf("unsupported output_format: %q", cfg.OutputFormat)
	}

	if cfg.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.PluginConcurrency < 1 {
		return fmt.Errorf("plugin_concurrency must be at least 1, got %d", cfg.PluginConcurrency)
	}

	if cfg.DescriptorExt == "" {
		cfg.DescriptorExt = ".php"
	}
	if !strings.HasPrefix(cfg.DescriptorExt, ".") {
		cfg.DescriptorExt = "." + cfg.DescriptorExt
	}

	cfg.VersionCompare = strings.ToLower(cfg.VersionCompare)
	if cfg.VersionCompare == "" {
		cfg.VersionCompare = version.SchemePadded
	}
	if _, err := version.ParseScheme(cfg.VersionCompare); err != nil {
		return err
	}

	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst < 1 {
		cfg.Server.RateBurst = cfg.Server.RateLimit
	}
	if (cfg.Server.CertFile == "") != (cfg.Server.KeyFile == "") {
		return fmt.Errorf("server.cert_file and server.key_file must be set together")
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 10
	}

	return nil
}
