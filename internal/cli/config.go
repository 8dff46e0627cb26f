package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/api"
	"github.com/illumorae/patchfill/pkg/cache"
	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// configFileName is the name of the config file inside the config directory.
const configFileName = "config.toml"

// Config is the optional user configuration file. Command-line flags
// override every value set here.
type Config struct {
	Infill InfillConfig `toml:"infill"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// InfillConfig holds default infill options.
type InfillConfig struct {
	PatchSize     int     `toml:"patch_size"`
	Iterations    int     `toml:"iterations"`
	PyramidFloor  int     `toml:"pyramid_floor"`
	SearchCap     int     `toml:"search_cap"`
	Seed          *uint64 `toml:"seed,omitempty"`
	MaskThreshold uint8   `toml:"mask_threshold"`
	MaxPixels     int     `toml:"max_pixels"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend string `toml:"backend"` // file, redis or none
	Dir     string `toml:"dir,omitempty"`
	TTL     string `toml:"ttl"`

	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
	RedisPrefix   string `toml:"redis_prefix,omitempty"`
}

// ServerConfig configures "patchfill serve".
type ServerConfig struct {
	Addr           string `toml:"addr"`
	MaxUploadMB    int    `toml:"max_upload_mb"`
	RequestTimeout string `toml:"request_timeout"`
}

// defaultConfig returns the configuration used when no file exists.
func defaultConfig() *Config {
	return &Config{
		Infill: InfillConfig{
			PatchSize:     pipeline.DefaultPatchSize,
			Iterations:    pipeline.DefaultIterations,
			PyramidFloor:  pipeline.DefaultPyramidFloor,
			SearchCap:     pipeline.DefaultSearchCap,
			MaskThreshold: pipeline.DefaultMaskThreshold,
			MaxPixels:     pipeline.DefaultMaxPixels,
		},
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			TTL:     cache.TTLResult.String(),
		},
		Server: ServerConfig{
			Addr:           api.DefaultAddr,
			MaxUploadMB:    api.DefaultMaxUploadBytes >> 20,
			RequestTimeout: api.DefaultRequestTimeout.String(),
		},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", path)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case cache.BackendFile, cache.BackendRedis, cache.BackendNone:
	default:
		return fmt.Errorf("cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	if _, err := c.ttl(); err != nil {
		return err
	}
	if _, err := c.requestTimeout(); err != nil {
		return err
	}
	opts := c.Infill.options()
	return opts.ValidateAndSetDefaults()
}

// ttl returns the parsed cache TTL.
func (c *Config) ttl() (time.Duration, error) {
	if c.Cache.TTL == "" {
		return cache.TTLResult, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("cache.ttl: %w", err)
	}
	return d, nil
}

func (c *Config) requestTimeout() (time.Duration, error) {
	if c.Server.RequestTimeout == "" {
		return api.DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("server.request_timeout: %w", err)
	}
	return d, nil
}

// options converts the infill section to pipeline options.
func (ic InfillConfig) options() pipeline.Options {
	return pipeline.Options{
		PatchSize:     ic.PatchSize,
		Iterations:    ic.Iterations,
		PyramidFloor:  ic.PyramidFloor,
		SearchCap:     ic.SearchCap,
		Seed:          ic.Seed,
		MaskThreshold: ic.MaskThreshold,
		MaxPixels:     ic.MaxPixels,
	}
}

// configDir returns the config directory using XDG standard (~/.config/patchfill/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// defaultConfigPath returns the config file path, or "" if the home
// directory cannot be determined.
func defaultConfigPath() string {
	dir, err := configDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

// configCommand creates the config inspection command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), c.configPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(c.config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(c.configPath); err == nil {
				printWarning("Config file already exists")
				printFile(c.configPath)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(c.configPath), 0755); err != nil {
				return err
			}
			f, err := os.Create(c.configPath)
			if err != nil {
				return err
			}
			defer f.Close()
			if err := toml.NewEncoder(f).Encode(defaultConfig()); err != nil {
				return err
			}
			printSuccess("Wrote default configuration")
			printFile(c.configPath)
			return nil
		},
	})

	return cmd
}
