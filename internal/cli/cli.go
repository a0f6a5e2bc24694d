// Package cli implements the bnfold command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/bnfold/pkg/buildinfo"
	"github.com/matzehuels/bnfold/pkg/cache"
	"github.com/matzehuels/bnfold/pkg/observability"
	"github.com/matzehuels/bnfold/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "bnfold"

	// redisKeyPrefix namespaces keys in a shared Redis instance.
	redisKeyPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config

	configPath string
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: defaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "bnfold folds batch normalization into neighbouring layers",
		Long:          `bnfold rewrites inference graphs so that batch normalization layers are absorbed into adjacent dense and convolution layers, leaving a smaller graph that computes the same function.`,
		Version:       buildinfo.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/bnfold/config.toml)")

	root.AddCommand(c.foldCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the configured cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	backend, keyer, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(backend, keyer, c.Logger)
	r.Hooks = observability.LogFoldHooks{Logger: c.Logger}
	r.CacheHooks = observability.LogCacheHooks{Logger: c.Logger}
	return r, nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, cache.Keyer, error) {
	cfg := c.Config.Cache
	if noCache || cfg.Backend == backendNone {
		return cache.NewNullCache(), nil, nil
	}
	if cfg.Backend == backendRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			return nil, nil, err
		}
		return rc, cache.NewScopedKeyer(cache.NewDefaultKeyer(), redisKeyPrefix), nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil, nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, nil, err
	}
	return fc, nil, nil
}

// pipelineOptions converts config values to pipeline options.
func (c *CLI) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Concurrency: c.Config.Fold.Concurrency,
		TTL:         c.Config.Cache.TTL.Duration,
		Logger:      c.Logger,
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, falling back to the
// XDG standard (~/.cache/bnfold/).
func (c *CLI) cacheDir() (string, error) {
	if c.Config.Cache.Dir != "" {
		return c.Config.Cache.Dir, nil
	}
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// configDir returns the config directory (~/.config/bnfold/).
func configDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}
