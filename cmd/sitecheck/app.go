package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thesyncim/sitecheck/pkg/sitecheck"
)

// app holds state shared by subcommands once flags are parsed.
type app struct {
	configPath   string
	verbose      bool
	url          string
	postsURL     string
	outputDir    string
	dbPath       string
	failOnBroken bool

	cfg    sitecheck.Config
	logger *zap.Logger

	// Replaced in tests.
	newLogger  func(verbose bool) (*zap.Logger, error)
	runnerOpts []sitecheck.RunnerOption
}

func newApp() *app {
	return &app{newLogger: buildLogger}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return config.Build()
}

func (a *app) bindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	f.StringVar(&a.url, "url", "", "Page to audit (default "+sitecheck.DefaultURL+")")
	f.StringVar(&a.postsURL, "api-url", "", "Posts endpoint (default "+sitecheck.DefaultPostsURL+")")
	f.StringVarP(&a.outputDir, "out", "o", "", "Directory for CSV reports")
	f.StringVar(&a.dbPath, "db", "", "SQLite history database (disabled when empty)")
	f.BoolVar(&a.failOnBroken, "fail-on-broken", false, "Fail when the page has broken requests")
}

// setup loads the config and builds the logger. Flags override the file.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := sitecheck.DefaultConfig()
	if a.configPath != "" {
		loaded, err := sitecheck.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = a.url
	}
	if flags.Changed("api-url") {
		cfg.PostsURL = a.postsURL
	}
	if flags.Changed("out") {
		cfg.OutputDir = a.outputDir
	}
	if flags.Changed("db") {
		cfg.History.Path = a.dbPath
	}
	if flags.Changed("fail-on-broken") {
		cfg.FailOnBroken = a.failOnBroken
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	logger, err := a.newLogger(a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) teardown() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newRunner builds a Runner and, when configured, opens the history
// database. The returned cleanup closes both.
func (a *app) newRunner(opts ...sitecheck.RunnerOption) (*sitecheck.Runner, func(), error) {
	var history *sitecheck.History
	if a.cfg.History.Path != "" {
		h, err := sitecheck.OpenHistory(a.cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		history = h
		opts = append(opts, sitecheck.WithHistory(h))
	}

	opts = append([]sitecheck.RunnerOption{sitecheck.WithLogger(a.logger)}, opts...)
	opts = append(opts, a.runnerOpts...)
	r, err := sitecheck.NewRunner(a.cfg, opts...)
	if err != nil {
		if history != nil {
			history.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := r.Close(); err != nil {
			a.logger.Warn("browser close error", zap.Error(err))
		}
		if history != nil {
			if err := history.Close(); err != nil {
				a.logger.Warn("history close error", zap.Error(err))
			}
		}
	}
	return r, cleanup, nil
}
