package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

// infillFlags are the infill options shared by fill and batch.
type infillFlags struct {
	patchSize     int
	iterations    int
	pyramidFloor  int
	searchCap     int
	seed          string
	maskThreshold uint8
	invertMask    bool
	maskFromAlpha bool
	format        string
	noCache       bool
	refresh       bool
}

func (f *infillFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVarP(&f.patchSize, "patch-size", "p", pipeline.DefaultPatchSize, "patch side length in pixels (odd, >= 3)")
	fs.IntVarP(&f.iterations, "iterations", "i", pipeline.DefaultIterations, "search passes per pyramid level")
	fs.IntVar(&f.pyramidFloor, "pyramid-floor", pipeline.DefaultPyramidFloor, "smallest pyramid level side in pixels")
	fs.IntVar(&f.searchCap, "search-cap", pipeline.DefaultSearchCap, "random donor draws per pixel and radius")
	fs.StringVar(&f.seed, "seed", "", "random seed for reproducible output (enables caching)")
	fs.Uint8Var(&f.maskThreshold, "mask-threshold", pipeline.DefaultMaskThreshold, "mask luminance at or above which a pixel is filled")
	fs.BoolVar(&f.invertMask, "invert-mask", false, "fill the dark pixels of the mask instead of the bright ones")
	fs.BoolVar(&f.maskFromAlpha, "mask-from-alpha", false, "fill the transparent pixels of the image (no mask file)")
	fs.StringVarP(&f.format, "format", "f", "", "output format: png, jpeg, bmp, tiff (default: from output extension)")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable result caching")
	fs.BoolVar(&f.refresh, "refresh", false, "recompute even if a cached result exists")
}

// options merges flags over the config file: a flag wins when it was set
// explicitly, otherwise a non-zero config value is used.
func (f *infillFlags) options(cmd *cobra.Command, cfg InfillConfig) (pipeline.Options, error) {
	opts := pipeline.Options{
		PatchSize:     pick(cmd, "patch-size", f.patchSize, cfg.PatchSize),
		Iterations:    pick(cmd, "iterations", f.iterations, cfg.Iterations),
		PyramidFloor:  pick(cmd, "pyramid-floor", f.pyramidFloor, cfg.PyramidFloor),
		SearchCap:     pick(cmd, "search-cap", f.searchCap, cfg.SearchCap),
		MaskThreshold: pick(cmd, "mask-threshold", f.maskThreshold, cfg.MaskThreshold),
		MaskInvert:    f.invertMask,
		MaskFromAlpha: f.maskFromAlpha,
		Format:        f.format,
		Refresh:       f.refresh,
		Seed:          cfg.Seed,
		MaxPixels:     cfg.MaxPixels,
	}
	if f.seed != "" {
		seed, err := strconv.ParseUint(f.seed, 10, 64)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidOptions, "--seed must be an unsigned integer, got %q", f.seed)
		}
		opts.Seed = &seed
	}
	return opts, nil
}

func pick[T comparable](cmd *cobra.Command, name string, flag, config T) T {
	var zero T
	if cmd.Flags().Changed(name) || config == zero {
		return flag
	}
	return config
}
