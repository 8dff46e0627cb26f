package patchmatch

import (
	"context"
	"image"
	"math/rand/v2"
)

// PassStats summarizes one propagation and random search sweep.
type PassStats struct {
	Iteration int
	Reverse   bool    // true for a bottom-right to top-left sweep
	Improved  int     // hole pixels whose donor changed
	MeanCost  float64 // mean finite cost after the sweep
}

// Pass performs one sweep over the field of lvl. Even iterations visit the
// hole pixels in raster order, odd iterations in reverse raster order.
//
// For every hole pixel p three kinds of candidates compete with the
// current donor:
//
//   - propagation: the donors of the already visited left and upper
//     neighbors (right and lower on reverse sweeps), shifted by one pixel
//   - random search: one acceptable donor sampled uniformly inside a square
//     of radius R around the best donor so far, for R = max(W, H) halving
//     down to 1. Unacceptable samples are redrawn, at most searchCap times
//     per radius.
//
// A candidate replaces the current donor only if its cost is strictly
// lower, so no pixel's cost increases during a pass.
func Pass(lvl *Level, iter, searchCap int, rng *rand.Rand) PassStats {
	f := lvl.Field
	w := f.W
	reverse := iter%2 == 1
	step := image.Pt(1, 1)
	if reverse {
		step = image.Pt(-1, -1)
	}
	stats := PassStats{Iteration: iter, Reverse: reverse}

	n := len(f.holes)
	for k := 0; k < n; k++ {
		i := f.holes[k]
		if reverse {
			i = f.holes[n-1-k]
		}
		p := image.Pt(i%w, i/w)
		best, bestCost := p.Add(f.Offsets[i]), f.Costs[i]
		start := best

		try := func(d image.Point) {
			if d == best || !lvl.accept(d) {
				return
			}
			if c := lvl.cost(p, d); c < bestCost {
				best, bestCost = d, c
			}
		}

		for _, nb := range [2]image.Point{image.Pt(p.X-step.X, p.Y), image.Pt(p.X, p.Y-step.Y)} {
			if !lvl.Mask.in(nb) {
				continue
			}
			j := nb.Y*w + nb.X
			if !lvl.Mask.Hole[j] {
				continue
			}
			try(p.Add(f.Offsets[j]))
		}

		best, bestCost = randomSearch(lvl, p, best, bestCost, searchCap, rng)

		if best != start {
			f.Offsets[i] = best.Sub(p)
			f.Costs[i] = bestCost
			stats.Improved++
		}
	}

	f.repair(lvl)
	stats.MeanCost, _ = f.MeanCost()
	return stats
}

// randomSearch samples donors at exponentially shrinking radii around best
// and returns the best donor found together with its cost.
func randomSearch(lvl *Level, p, best image.Point, bestCost float64, searchCap int, rng *rand.Rand) (image.Point, float64) {
	w, h := lvl.Mask.W, lvl.Mask.H
	center := best
	for r := max(w, h); r >= 1; r /= 2 {
		x0, x1 := max(center.X-r, 0), min(center.X+r, w-1)
		y0, y1 := max(center.Y-r, 0), min(center.Y+r, h-1)
		for attempt := 0; attempt < searchCap; attempt++ {
			d := image.Pt(x0+rng.IntN(x1-x0+1), y0+rng.IntN(y1-y0+1))
			if !lvl.accept(d) {
				continue
			}
			if d != best {
				if c := lvl.cost(p, d); c < bestCost {
					best, bestCost = d, c
				}
			}
			break
		}
	}
	return best, bestCost
}

// Search runs iterations passes on lvl. After every pass the hole pixels of
// the working estimate are re-voted from the field and the costs are
// recomputed against it.
func Search(lvl *Level, iterations, searchCap int, rng *rand.Rand) []PassStats {
	stats, _ := search(context.Background(), lvl, iterations, searchCap, rng)
	return stats
}

// search is [Search] that stops before the next pass once ctx is done.
func search(ctx context.Context, lvl *Level, iterations, searchCap int, rng *rand.Rand) ([]PassStats, error) {
	stats := make([]PassStats, 0, iterations)
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats = append(stats, Pass(lvl, it, searchCap, rng))
		lvl.updateEstimate()
	}
	return stats, nil
}
