package sitecheck

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default targets.
const (
	DefaultURL      = "https://www.cbssports.com/betting"
	DefaultPostsURL = "https://jsonplaceholder.typicode.com/posts"
)

// Config configures every check. Zero values are not meaningful; start from
// DefaultConfig and override.
type Config struct {
	URL          string           `yaml:"url"`
	PostsURL     string           `yaml:"posts_url"`
	OutputDir    string           `yaml:"output_dir"`
	HTTPTimeout  time.Duration    `yaml:"http_timeout"`
	FailOnBroken bool             `yaml:"fail_on_broken"`
	Schedule     string           `yaml:"schedule"`
	Lighthouse   LighthouseConfig `yaml:"lighthouse"`
	Browser      BrowserConfig    `yaml:"browser"`
	History      HistoryConfig    `yaml:"history"`
}

// LighthouseConfig configures the Lighthouse CLI invocation.
type LighthouseConfig struct {
	Binary      string   `yaml:"binary"`
	ChromeFlags []string `yaml:"chrome_flags"`
	ReportPath  string   `yaml:"report_path"`
}

// BrowserConfig configures Chrome launch options.
type BrowserConfig struct {
	Headless    bool          `yaml:"headless"`     // Run in headless mode (default: true)
	Bin         string        `yaml:"bin"`          // Chrome binary; empty lets Rod find or download one
	Timeout     time.Duration `yaml:"timeout"`      // Page load timeout (default: 60s)
	NetworkIdle time.Duration `yaml:"network_idle"` // Quiet period that counts as network idle
}

// HistoryConfig configures the SQLite score history.
type HistoryConfig struct {
	// Path of the SQLite database. Empty disables history.
	Path string `yaml:"path"`
	// Window is how many previous runs feed the median.
	Window int `yaml:"window"`
	// Tolerance is how far below the median a score may drop before it
	// counts as a regression.
	Tolerance float64 `yaml:"tolerance"`
}

// DefaultBrowserConfig returns sensible defaults for page checks.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:    true,
		Timeout:     60 * time.Second,
		NetworkIdle: 500 * time.Millisecond,
	}
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		URL:         DefaultURL,
		PostsURL:    DefaultPostsURL,
		OutputDir:   ".",
		HTTPTimeout: 30 * time.Second,
		Schedule:    "@daily",
		Lighthouse: LighthouseConfig{
			Binary:      "lighthouse",
			ChromeFlags: []string{"--headless"},
			ReportPath:  "./lighthouse-report.json",
		},
		Browser: DefaultBrowserConfig(),
		History: HistoryConfig{
			Window:    10,
			Tolerance: 0.05,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. Keys absent from the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration can drive the checks.
func (c Config) Validate() error {
	var errs []error

	if err := validateHTTPURL("url", c.URL); err != nil {
		errs = append(errs, err)
	}
	if err := validateHTTPURL("posts_url", c.PostsURL); err != nil {
		errs = append(errs, err)
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("http_timeout must be positive"))
	}
	if c.Lighthouse.Binary == "" {
		errs = append(errs, errors.New("lighthouse.binary must be set"))
	}
	if c.Lighthouse.ReportPath == "" {
		errs = append(errs, errors.New("lighthouse.report_path must be set"))
	}
	if c.Browser.Timeout <= 0 {
		errs = append(errs, errors.New("browser.timeout must be positive"))
	}
	if c.Browser.NetworkIdle <= 0 {
		errs = append(errs, errors.New("browser.network_idle must be positive"))
	}
	if c.History.Window <= 0 {
		errs = append(errs, errors.New("history.window must be positive"))
	}
	if c.History.Tolerance < 0 {
		errs = append(errs, errors.New("history.tolerance must not be negative"))
	}

	return errors.Join(errs...)
}

func validateHTTPURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must be set", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", field)
	}
	return nil
}
