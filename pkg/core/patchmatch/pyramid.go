package patchmatch

import (
	"context"
	"math/rand/v2"

	"github.com/illumorae/patchfill/pkg/errors"
)

// BuildPyramid returns the pyramid levels for img and mask ordered from the
// coarsest (index 0) to the input resolution (last index).
//
// Levels are produced by repeated 2× box downsampling while the next
// level's shorter side stays at least floor pixels and at least one patch,
// and while it still contains a fully valid donor patch.
func BuildPyramid(img *Image, mask *Mask, patchSize, floor int) ([]*Level, error) {
	if img.W < patchSize || img.H < patchSize {
		return nil, errors.New(errors.ErrCodeImageTooSmall,
			"image is %dx%d, smaller than one %dx%d patch", img.W, img.H, patchSize, patchSize)
	}

	chain := []*Level{NewLevel(img, mask, patchSize)}
	for {
		cur := chain[len(chain)-1]
		nw, nh := (cur.Image.W+1)/2, (cur.Image.H+1)/2
		if short := min(nw, nh); short < floor || short < patchSize {
			break
		}
		next := NewLevel(downsample(cur.Image), downsampleMask(cur.Mask), patchSize)
		if next.donors == 0 {
			break
		}
		next.Scale = cur.Scale * 2
		chain = append(chain, next)
	}

	levels := make([]*Level, len(chain))
	for i, l := range chain {
		levels[len(chain)-1-i] = l
	}
	return levels, nil
}

// LevelStats describes the work done at one pyramid level.
type LevelStats struct {
	Index    int // 0 is the coarsest level
	Width    int
	Height   int
	Scale    int
	Holes    int
	Donors   int
	Passes   []PassStats
	MeanCost float64
}

// schedule runs the coarse-to-fine refinement over levels and returns the
// finest level. It returns ctx.Err() as soon as ctx is done, checked before
// every level and every pass.
func schedule(ctx context.Context, levels []*Level, opts Options, rng *rand.Rand) (*Level, []LevelStats, error) {
	stats := make([]LevelStats, 0, len(levels))
	var prev *Level
	for idx, lvl := range levels {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if prev == nil {
			Initialize(lvl, opts.RandomSearchCap, rng)
		} else {
			Upsample(prev, lvl, prev.Scale/lvl.Scale)
		}
		passes, err := search(ctx, lvl, opts.Iterations, opts.RandomSearchCap, rng)
		if err != nil {
			return nil, stats, err
		}

		mean, _ := lvl.Field.MeanCost()
		st := LevelStats{
			Index:    idx,
			Width:    lvl.Image.W,
			Height:   lvl.Image.H,
			Scale:    lvl.Scale,
			Holes:    lvl.Field.Len(),
			Donors:   lvl.donors,
			Passes:   passes,
			MeanCost: mean,
		}
		stats = append(stats, st)
		if opts.OnLevel != nil {
			opts.OnLevel(st)
		}
		prev = lvl
	}
	return prev, stats, nil
}
