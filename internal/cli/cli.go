package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/buildinfo"
	"github.com/illumorae/patchfill/pkg/cache"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "patchfill"

	// redisKeyPrefix namespaces CLI entries in a shared Redis.
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

	configPath string
	config     *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:     newLogger(w, level),
		configPath: defaultConfigPath(),
		config:     defaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Patchfill fills masked image regions with PatchMatch",
		Long:         `Patchfill removes objects and repairs damaged areas of images by synthesizing the masked region from patches copied out of the rest of the image, using a multi-scale randomized PatchMatch search.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", c.configPath, "config file")

	// Register all subcommands
	root.AddCommand(c.fillCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	rc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	// Results are scoped by release: a new build may fill differently.
	keyer := cache.NewScopedKeyer(nil, buildinfo.Get().Version+":")
	runner := pipeline.NewRunner(rc, keyer, c.Logger)
	if ttl, err := c.config.ttl(); err == nil {
		runner.TTL = ttl
	}
	return runner, nil
}

// newCache opens the configured backend. A file cache that cannot be
// created degrades to no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cc := c.config.Cache
	if noCache || cc.Backend == cache.BackendNone {
		return cache.NewNullCache(), nil
	}
	if cc.Backend == cache.BackendRedis {
		prefix := cc.RedisPrefix
		if prefix == "" {
			prefix = redisKeyPrefix
		}
		return cache.Open(ctx, cache.Config{
			Backend: cache.BackendRedis,
			Redis: cache.RedisConfig{
				Addr:     cc.RedisAddr,
				Password: cc.RedisPassword,
				DB:       cc.RedisDB,
				Prefix:   prefix,
			},
		})
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.Open(ctx, cache.Config{Backend: cache.BackendFile, Dir: dir})
	if err != nil {
		c.Logger.Warn("cache disabled", "error", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory or the XDG default.
func (c *CLI) cacheDir() (string, error) {
	if c.config != nil && c.config.Cache.Dir != "" {
		return c.config.Cache.Dir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/patchfill/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
