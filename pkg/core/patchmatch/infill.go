package patchmatch

import (
	"context"
	"math/rand/v2"

	"github.com/illumorae/patchfill/pkg/errors"
)

// Default option values.
const (
	DefaultPatchSize       = 7
	DefaultIterations      = 5
	DefaultPyramidFloor    = 32
	DefaultRandomSearchCap = 200
)

// Options configures [Infill]. Zero values select the defaults.
type Options struct {
	// PatchSize is the side of the square patch; odd and at least 3.
	PatchSize int

	// Iterations is the number of search passes per pyramid level.
	Iterations int

	// PyramidFloor is the smallest allowed shorter side of a pyramid level.
	PyramidFloor int

	// RandomSearchCap bounds the random draws used to find an acceptable
	// donor, both when seeding the field and per radius during search.
	RandomSearchCap int

	// Seed makes the output reproducible. When nil a seed is drawn from
	// system entropy and reported in [Result.Seed].
	Seed *uint64

	// OnLevel, if set, is called after each pyramid level is refined.
	OnLevel func(LevelStats)
}

// Result is the output of [Run].
type Result struct {
	Image  *Image
	Seed   uint64
	Levels []LevelStats
}

// WithDefaults returns a copy of o with zero fields replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.PatchSize == 0 {
		o.PatchSize = DefaultPatchSize
	}
	if o.Iterations == 0 {
		o.Iterations = DefaultIterations
	}
	if o.PyramidFloor == 0 {
		o.PyramidFloor = DefaultPyramidFloor
	}
	if o.RandomSearchCap == 0 {
		o.RandomSearchCap = DefaultRandomSearchCap
	}
	return o
}

// Validate checks o after defaults have been applied.
func (o Options) Validate() error {
	if err := errors.ValidatePatchSize(o.PatchSize); err != nil {
		return err
	}
	if o.Iterations < 1 {
		return errors.New(errors.ErrCodeInvalidOptions, "iterations must be positive, got %d", o.Iterations)
	}
	if o.PyramidFloor < 1 {
		return errors.New(errors.ErrCodeInvalidOptions, "pyramid floor must be positive, got %d", o.PyramidFloor)
	}
	if o.RandomSearchCap < 1 {
		return errors.New(errors.ErrCodeInvalidOptions, "random search cap must be positive, got %d", o.RandomSearchCap)
	}
	return nil
}

// NewRand returns the generator used for one infill call with the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Infill synthesizes the hole pixels of img marked by mask and returns a new
// image of the same size and channel count. Known pixels are copied
// unchanged.
func Infill(img *Image, mask *Mask, opts Options) (*Image, error) {
	res, err := Run(img, mask, opts)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Run is [Infill] that also reports the seed used and per-level statistics.
func Run(img *Image, mask *Mask, opts Options) (*Result, error) {
	return RunContext(context.Background(), img, mask, opts)
}

// RunContext is [Run] that abandons the search once ctx is done. The
// returned error is then ctx.Err() and no image is produced.
func RunContext(ctx context.Context, img *Image, mask *Mask, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(img, mask); err != nil {
		return nil, err
	}
	if img.W < opts.PatchSize || img.H < opts.PatchSize {
		return nil, errors.New(errors.ErrCodeImageTooSmall,
			"image is %dx%d, smaller than one %dx%d patch", img.W, img.H, opts.PatchSize, opts.PatchSize)
	}
	holes, known := mask.Counts()
	if known == 0 {
		return nil, errors.New(errors.ErrCodeNoValidSource, "mask covers the entire image")
	}

	var seed uint64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = rand.Uint64()
	}
	if holes == 0 {
		return &Result{Image: img.Clone(), Seed: seed}, nil
	}

	levels, err := BuildPyramid(img, mask, opts.PatchSize, opts.PyramidFloor)
	if err != nil {
		return nil, err
	}
	finest, stats, err := schedule(ctx, levels, opts, NewRand(seed))
	if err != nil {
		return nil, err
	}

	return &Result{Image: finest.est, Seed: seed, Levels: stats}, nil
}

func validateInputs(img *Image, mask *Mask) error {
	if img == nil {
		return errors.New(errors.ErrCodeInvalidImage, "image is nil")
	}
	if img.W < 1 || img.H < 1 || img.C < 1 {
		return errors.New(errors.ErrCodeInvalidImage, "image has invalid shape %dx%dx%d", img.W, img.H, img.C)
	}
	if len(img.Pix) != img.W*img.H*img.C {
		return errors.New(errors.ErrCodeInvalidImage, "image has %d samples, want %d", len(img.Pix), img.W*img.H*img.C)
	}
	if !img.finite() {
		return errors.New(errors.ErrCodeInvalidImage, "image contains NaN or infinite samples")
	}
	if mask == nil {
		return errors.New(errors.ErrCodeInvalidMask, "mask is nil")
	}
	if err := errors.ValidateDimensions(img.W, img.H, mask.W, mask.H); err != nil {
		return err
	}
	if len(mask.Hole) != mask.W*mask.H {
		return errors.New(errors.ErrCodeInvalidMask, "mask has %d entries, want %d", len(mask.Hole), mask.W*mask.H)
	}
	return nil
}

// Infiller runs infill with a fixed, validated set of options. It holds no
// state between calls and is safe for concurrent use.
type Infiller struct {
	opts Options
}

// NewInfiller applies defaults to opts and validates them.
func NewInfiller(opts Options) (*Infiller, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Infiller{opts: opts}, nil
}

// Options returns the effective options.
func (f *Infiller) Options() Options { return f.opts }

// Infill is [Infill] with the infiller's options.
func (f *Infiller) Infill(img *Image, mask *Mask) (*Image, error) {
	return Infill(img, mask, f.opts)
}

// Run is [Run] with the infiller's options. A non-nil seed overrides the
// configured one for this call.
func (f *Infiller) Run(img *Image, mask *Mask, seed *uint64) (*Result, error) {
	return f.RunContext(context.Background(), img, mask, seed)
}

// RunContext is [RunContext] with the infiller's options.
func (f *Infiller) RunContext(ctx context.Context, img *Image, mask *Mask, seed *uint64) (*Result, error) {
	opts := f.opts
	if seed != nil {
		opts.Seed = seed
	}
	return RunContext(ctx, img, mask, opts)
}
