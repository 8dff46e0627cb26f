package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/cache"
	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Infill.PatchSize != pipeline.DefaultPatchSize {
		t.Errorf("PatchSize = %d, want default %d", cfg.Infill.PatchSize, pipeline.DefaultPatchSize)
	}
	if cfg.Cache.Backend != cache.BackendFile {
		t.Errorf("Backend = %q, want %q", cfg.Cache.Backend, cache.BackendFile)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil || cfg == nil {
		t.Fatalf("loadConfig(\"\") = %v, %v", cfg, err)
	}
}

func TestLoadConfigValues(t *testing.T) {
	path := writeConfig(t, `
[infill]
patch_size = 9
iterations = 3
seed = 42

[cache]
backend = "none"
ttl = "1h"

[server]
addr = "0.0.0.0:9000"
request_timeout = "30s"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Infill.PatchSize != 9 || cfg.Infill.Iterations != 3 {
		t.Errorf("infill = %+v", cfg.Infill)
	}
	if cfg.Infill.Seed == nil || *cfg.Infill.Seed != 42 {
		t.Errorf("Seed = %v, want 42", cfg.Infill.Seed)
	}
	// Unset keys keep their defaults.
	if cfg.Infill.PyramidFloor != pipeline.DefaultPyramidFloor {
		t.Errorf("PyramidFloor = %d, want default", cfg.Infill.PyramidFloor)
	}
	if ttl, _ := cfg.ttl(); ttl != time.Hour {
		t.Errorf("ttl() = %v, want 1h", ttl)
	}
	if d, _ := cfg.requestTimeout(); d != 30*time.Second {
		t.Errorf("requestTimeout() = %v, want 30s", d)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[infill\npatch_size = 9"},
		{"unknown key", "[infill]\npatch_sise = 9\n"},
		{"bad backend", "[cache]\nbackend = \"memcached\"\n"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n"},
		{"bad ttl", "[cache]\nttl = \"forever\"\n"},
		{"bad timeout", "[server]\nrequest_timeout = \"soon\"\n"},
		{"even patch size", "[infill]\npatch_size = 8\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("loadConfig() error = %v, want %s", err, errors.ErrCodeInvalidConfig)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := defaultConfig().validate(); err != nil {
		t.Errorf("defaultConfig().validate() = %v", err)
	}
}

func newFlagCommand(t *testing.T, args ...string) (*cobra.Command, *infillFlags) {
	t.Helper()
	var flags infillFlags
	cmd := &cobra.Command{Use: "test"}
	flags.register(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatal(err)
	}
	return cmd, &flags
}

func TestInfillFlagsOptions(t *testing.T) {
	cfg := defaultConfig().Infill
	cfg.PatchSize = 9
	seed := uint64(5)
	cfg.Seed = &seed

	tests := []struct {
		name      string
		args      []string
		wantPatch int
		wantSeed  uint64
	}{
		{"config wins over defaults", nil, 9, 5},
		{"explicit flag wins", []string{"--patch-size", "11"}, 11, 5},
		{"seed flag overrides config", []string{"--seed", "77"}, 9, 77},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, flags := newFlagCommand(t, tt.args...)
			opts, err := flags.options(cmd, cfg)
			if err != nil {
				t.Fatal(err)
			}
			if opts.PatchSize != tt.wantPatch {
				t.Errorf("PatchSize = %d, want %d", opts.PatchSize, tt.wantPatch)
			}
			if opts.Seed == nil || *opts.Seed != tt.wantSeed {
				t.Errorf("Seed = %v, want %d", opts.Seed, tt.wantSeed)
			}
		})
	}
}

func TestInfillFlagsZeroConfigUsesFlagDefault(t *testing.T) {
	cmd, flags := newFlagCommand(t)
	opts, err := flags.options(cmd, InfillConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if opts.PatchSize != pipeline.DefaultPatchSize || opts.SearchCap != pipeline.DefaultSearchCap {
		t.Errorf("opts = %+v, want flag defaults", opts)
	}
	if opts.Seed != nil {
		t.Errorf("Seed = %v, want nil", *opts.Seed)
	}
}

func TestInfillFlagsBadSeed(t *testing.T) {
	cmd, flags := newFlagCommand(t, "--seed", "-3")
	_, err := flags.options(cmd, InfillConfig{})
	if !errors.Is(err, errors.ErrCodeInvalidOptions) {
		t.Errorf("options() error = %v, want %s", err, errors.ErrCodeInvalidOptions)
	}
}
