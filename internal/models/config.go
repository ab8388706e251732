package models

import "time"

// Config holds configuration for the scanner
type Config struct {
	// Root directory containing one directory per hosted site
	Root string `toml:"root"`

	// Output settings
	OutputDir    string `toml:"output_dir"`    // Directory for the CSV report
	OutputFormat string `toml:"output_format"` // "terminal", "json", "sarif", "csv"
	OutputFile   string `toml:"output_file"`   // Optional stdout-report file path

	// Behavior settings
	FailOnMatch bool `toml:"fail_on_match"` // Exit with code 1 if matches found

	// Scan settings
	Concurrency       int    `toml:"concurrency"`        // Sites scanned in parallel
	PluginConcurrency int    `toml:"plugin_concurrency"` // Plugins per site scanned in parallel
	DescriptorExt     string `toml:"descriptor_ext"`     // Extension of the plugin's main source file
	VersionCompare    string `toml:"version_compare"`    // "padded", "longer-wins", "semver"

	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig configures the HTTP upload endpoint
type ServerConfig struct {
	Listen      string   `toml:"listen"`
	UploadDir   string   `toml:"upload_dir"`
	CertFile    string   `toml:"cert_file"`
	KeyFile     string   `toml:"key_file"`
	RateLimit   int      `toml:"rate_limit"` // Requests per second per IP (0 = disabled)
	RateBurst   int      `toml:"rate_burst"`
	MaxUploadMB int64    `toml:"max_upload_mb"`
	FeedTTL     Duration `toml:"feed_ttl"` // Uploaded feeds older than this are pruned
}

// LogConfig configures logging
type LogConfig struct {
	Debug bool `toml:"debug"`
}

// Duration is a time.Duration that decodes from strings like "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Root:              ".",
		OutputDir:         ".",
		OutputFormat:      "terminal",
		FailOnMatch:       true,
		Concurrency:       8,
		PluginConcurrency: 4,
		DescriptorExt:     ".php",
		VersionCompare:    "padded",
		Server: ServerConfig{
			Listen:      ":8443",
			UploadDir:   "uploads",
			RateLimit:   5,
			RateBurst:   10,
			MaxUploadMB: 10,
			FeedTTL:     Duration{24 * time.Hour},
		},
	}
}
