// Package pipeline provides the decode → infill → encode pipeline shared by
// the CLI and the HTTP server.
//
// By centralizing this logic both entry points validate options, cache
// results, and report statistics the same way.
//
// # Architecture
//
// A run consists of four stages:
//
//  1. Decode: read the image and mask bytes (PNG, JPEG, GIF, BMP, TIFF, WebP)
//  2. Mask: threshold the mask image, or use the image's transparency
//  3. Infill: run the multi-scale PatchMatch search on the planar image
//  4. Encode: write the filled image in the requested format
//
// Seeded runs are fully deterministic, so their results are cached under a
// key derived from the input bytes and every output-affecting option.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	seed := uint64(7)
//	result, err := runner.Execute(ctx, pipeline.Input{
//	    Name:  "photo.png",
//	    Image: imageBytes,
//	    Mask:  maskBytes,
//	}, pipeline.Options{Seed: &seed})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("filled.png", result.Encoded, 0644)
package pipeline

import (
	"image"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/illumorae/patchfill/pkg/cache"
	"github.com/illumorae/patchfill/pkg/core/patchmatch"
	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/imageio"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultPatchSize is the side of the square patch compared during search.
	DefaultPatchSize = patchmatch.DefaultPatchSize

	// DefaultIterations is the number of search passes per pyramid level.
	DefaultIterations = patchmatch.DefaultIterations

	// DefaultPyramidFloor is the smallest shorter side of a pyramid level.
	DefaultPyramidFloor = patchmatch.DefaultPyramidFloor

	// DefaultSearchCap bounds random donor draws per pixel and radius.
	DefaultSearchCap = patchmatch.DefaultRandomSearchCap

	// DefaultMaskThreshold is the luminance at or above which a mask pixel is a hole.
	DefaultMaskThreshold = imageio.DefaultMaskThreshold

	// DefaultFormat is the output image format.
	DefaultFormat = imageio.FormatPNG

	// DefaultMaxPixels is the largest image, in pixels, a run accepts.
	DefaultMaxPixels = 50_000_000
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one infill run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Infill options
	PatchSize    int     `json:"patch_size,omitempty"`
	Iterations   int     `json:"iterations,omitempty"`
	PyramidFloor int     `json:"pyramid_floor,omitempty"`
	SearchCap    int     `json:"search_cap,omitempty"`
	Seed         *uint64 `json:"seed,omitempty"` // nil draws a fresh seed and disables caching

	// Mask options
	MaskThreshold uint8 `json:"mask_threshold,omitempty"`
	MaskInvert    bool  `json:"mask_invert,omitempty"`
	MaskFromAlpha bool  `json:"mask_from_alpha,omitempty"` // Holes are the transparent pixels of the image

	// Output options
	Format  string `json:"format,omitempty"`
	Refresh bool   `json:"refresh,omitempty"` // Ignore cached results

	// Runtime options (not serialized)
	Logger    *log.Logger `json:"-"`
	MaxPixels int         `json:"-"` // Inputs declaring more pixels are rejected before decoding

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Input is one image to fill.
type Input struct {
	// Name identifies the input in logs and batch results.
	Name string

	// Image is the encoded source image.
	Image []byte

	// Mask is the encoded mask image. It may be nil when
	// Options.MaskFromAlpha is set.
	Mask []byte
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Image is the filled image.
	Image *image.NRGBA

	// Encoded is Image in the requested format.
	Encoded []byte

	// Format is the format of Encoded.
	Format string

	// Seed is the seed that produced the result.
	Seed uint64

	// Levels has per-level search statistics, coarsest first. It is empty
	// for cached results and for masks without holes.
	Levels []patchmatch.LevelStats

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the result came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Width      int
	Height     int
	Holes      int
	DecodeTime time.Duration
	InfillTime time.Duration
	EncodeTime time.Duration
}

// CacheInfo tracks cache use for a run.
type CacheInfo struct {
	Cacheable bool // Whether the run was seeded and therefore cacheable
	ResultHit bool // Whether the result came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults applies defaults and checks every option.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.PatchSize == 0 {
		o.PatchSize = DefaultPatchSize
	}
	if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if o.PyramidFloor == 0 {
		o.PyramidFloor = DefaultPyramidFloor
	}
	if o.SearchCap == 0 {
		o.SearchCap = DefaultSearchCap
	}
	if o.MaskThreshold == 0 {
		o.MaskThreshold = DefaultMaskThreshold
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.MaxPixels == 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.MaxPixels < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "max pixels must be positive, got %d", o.MaxPixels)
	}

	if err := o.CoreOptions().Validate(); err != nil {
		return err
	}
	if err := imageio.ValidateFormat(o.Format); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// CoreOptions returns the options passed to the infill core.
func (o *Options) CoreOptions() patchmatch.Options {
	return patchmatch.Options{
		PatchSize:       o.PatchSize,
		Iterations:      o.Iterations,
		PyramidFloor:    o.PyramidFloor,
		RandomSearchCap: o.SearchCap,
		Seed:            o.Seed,
	}
}

// MaskOptions returns the options used to read the mask image.
func (o *Options) MaskOptions() imageio.MaskOptions {
	return imageio.MaskOptions{Threshold: o.MaskThreshold, Invert: o.MaskInvert}
}

// Cacheable reports whether results for these options are deterministic.
func (o *Options) Cacheable() bool {
	return o.Seed != nil
}

// ResultKeyOpts returns cache key options for the infill result.
// It must only be called when Cacheable is true.
func (o *Options) ResultKeyOpts() cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		PatchSize:       o.PatchSize,
		Iterations:      o.Iterations,
		PyramidFloor:    o.PyramidFloor,
		RandomSearchCap: o.SearchCap,
		Seed:            *o.Seed,
		MaskThreshold:   o.MaskThreshold,
		MaskInvert:      o.MaskInvert,
		MaskAlpha:       o.MaskFromAlpha,
	}
}

// =============================================================================
// Input Helpers
// =============================================================================

// InputFromFiles reads an image and an optional mask from disk.
// An empty maskPath leaves Input.Mask nil.
func InputFromFiles(imagePath, maskPath string) (Input, error) {
	in := Input{Name: imagePath}
	var err error
	if in.Image, err = readFile(imagePath); err != nil {
		return Input{}, err
	}
	if maskPath != "" {
		if in.Mask, err = readFile(maskPath); err != nil {
			return Input{}, err
		}
	}
	return in, nil
}

func readFile(path string) ([]byte, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s does not exist", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	return data, nil
}
