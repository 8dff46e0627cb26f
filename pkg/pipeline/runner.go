package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/illumorae/patchfill/pkg/cache"
	"github.com/illumorae/patchfill/pkg/core/patchmatch"
	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/imageio"
	"github.com/illumorae/patchfill/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL is the lifetime of cached results.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		TTL:    cache.TTLResult,
	}
}

// Execute decodes in, fills the masked region and encodes the result.
func (r *Runner) Execute(ctx context.Context, in Input, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := opts.Logger
	if in.Name != "" {
		logger = logger.With("input", in.Name)
	}

	result := &Result{Format: opts.Format}
	result.CacheInfo.Cacheable = opts.Cacheable()

	// Stage 1: Decode
	decodeStart := time.Now()
	img, mask, err := decodeInput(in, opts)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	planar := imageio.ToPlanar(img)
	holes, _ := mask.Counts()
	result.Stats.Width, result.Stats.Height, result.Stats.Holes = planar.W, planar.H, holes
	result.Stats.DecodeTime = time.Since(decodeStart)

	logger.Debug("decoded input",
		"width", planar.W,
		"height", planar.H,
		"channels", planar.C,
		"holes", holes,
		"duration", result.Stats.DecodeTime)

	// Stage 2: Infill (cached when seeded)
	var cacheKey string
	if result.CacheInfo.Cacheable {
		cacheKey = r.Keyer.ResultKey(cache.Hash(in.Image), cache.Hash(in.Mask), opts.ResultKeyOpts())
		if filled, hit := r.lookup(ctx, cacheKey, opts.Refresh); hit {
			result.Image = filled
			result.Seed = *opts.Seed
			result.CacheInfo.ResultHit = true
			logger.Debug("using cached result")
		}
	}

	if result.Image == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		infillStart := time.Now()
		res, err := r.infill(ctx, planar, mask, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("infill: %w", err)
		}
		result.Image = imageio.FromPlanar(res.Image)
		result.Seed = res.Seed
		result.Levels = res.Levels
		result.Stats.InfillTime = time.Since(infillStart)

		logger.Info("filled image",
			"holes", holes,
			"levels", len(res.Levels),
			"seed", res.Seed,
			"duration", result.Stats.InfillTime)

		if cacheKey != "" {
			data := imageio.EncodeRaw(result.Image)
			if err := r.Cache.Set(ctx, cacheKey, data, r.TTL); err != nil {
				logger.Warn("failed to cache result", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "result", len(data))
			}
		}
	}

	// Stage 3: Encode
	encodeStart := time.Now()
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, result.Image, opts.Format); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	result.Encoded = buf.Bytes()
	result.Stats.EncodeTime = time.Since(encodeStart)

	return result, nil
}

// BatchResult is the outcome for one input of a batch.
type BatchResult struct {
	Name   string
	Result *Result
	Err    error
}

// ExecuteBatch runs Execute for every input with at most jobs running at
// once. Inputs are independent: a failing input does not stop the others,
// and each run uses its own random generator. Results are returned in input
// order. The returned error is non-nil only when ctx is cancelled.
func (r *Runner) ExecuteBatch(ctx context.Context, inputs []Input, opts Options, jobs int) ([]BatchResult, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if jobs < 1 {
		jobs = 1
	}

	results := make([]BatchResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = BatchResult{Name: in.Name, Err: err}
				return err
			}
			res, err := r.Execute(gctx, in, opts)
			results[i] = BatchResult{Name: in.Name, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) lookup(ctx context.Context, key string, refresh bool) (*image.NRGBA, bool) {
	if refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "result")
		return nil, false
	}
	img, err := imageio.DecodeRaw(data)
	if err != nil {
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, "result")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "result")
	return img, true
}

func (r *Runner) infill(ctx context.Context, img *patchmatch.Image, mask *patchmatch.Mask, opts Options, logger *log.Logger) (*patchmatch.Result, error) {
	hooks := observability.Infill()
	holes, _ := mask.Counts()
	hooks.OnInfillStart(ctx, img.W, img.H, holes)

	core := opts.CoreOptions()
	core.OnLevel = func(s patchmatch.LevelStats) {
		logger.Debug("refined level",
			"level", s.Index,
			"size", fmt.Sprintf("%dx%d", s.Width, s.Height),
			"holes", s.Holes,
			"donors", s.Donors,
			"cost", s.MeanCost)
		hooks.OnLevelComplete(ctx, s.Index, s.Width, s.Height, s.MeanCost)
	}

	start := time.Now()
	infiller, err := patchmatch.NewInfiller(core)
	if err != nil {
		return nil, err
	}
	res, err := infiller.RunContext(ctx, img, mask, nil)
	levels := 0
	if res != nil {
		levels = len(res.Levels)
	}
	hooks.OnInfillComplete(ctx, holes, levels, time.Since(start), err)
	return res, err
}

// decodeInput decodes the image and derives the hole mask.
func decodeInput(in Input, opts Options) (*image.NRGBA, *patchmatch.Mask, error) {
	if len(in.Image) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidImage, "image is empty")
	}
	if err := checkPixels(in.Image, opts.MaxPixels, errors.ErrCodeInvalidImage, "image"); err != nil {
		return nil, nil, err
	}
	img, err := imageio.Decode(bytes.NewReader(in.Image))
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()

	if len(in.Mask) == 0 {
		if !opts.MaskFromAlpha {
			return nil, nil, errors.New(errors.ErrCodeInvalidMask, "a mask image is required unless the mask comes from alpha")
		}
		return img, imageio.MaskFromAlpha(img, opts.MaskThreshold), nil
	}

	if err := checkPixels(in.Mask, opts.MaxPixels, errors.ErrCodeInvalidMask, "mask"); err != nil {
		return nil, nil, err
	}
	maskImg, err := imageio.Decode(bytes.NewReader(in.Mask))
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidMask, err, "decode mask")
	}
	mb := maskImg.Bounds()
	if err := errors.ValidateDimensions(b.Dx(), b.Dy(), mb.Dx(), mb.Dy()); err != nil {
		return nil, nil, err
	}
	return img, imageio.MaskFrom(maskImg, opts.MaskOptions()), nil
}

// checkPixels rejects encoded data whose header declares more than limit
// pixels, before any pixel buffer is allocated.
func checkPixels(data []byte, limit int, code errors.Code, what string) error {
	w, h, err := imageio.Size(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(code, err, "decode %s", what)
	}
	if n := int64(w) * int64(h); n > int64(limit) {
		return errors.New(code, "%s is %dx%d (%d pixels), over the limit of %d", what, w, h, n, limit)
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
