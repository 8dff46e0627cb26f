package patchmatch

import (
	"image"
	"math"
	"math/rand/v2"
)

// Field is a nearest-neighbor field. For every hole pixel at index
// i = y*W + x it holds the offset to the donor patch center and the patch
// distance to that donor. Entries of known pixels are unused.
type Field struct {
	W, H    int
	Offsets []image.Point

	// Costs are search costs, not [Distance] values: hole pixels on the
	// receiving side are compared against the level's running estimate at
	// half weight, so a patch centered deep inside the hole still has a
	// finite cost.
	Costs []float64

	holes []int // hole pixel indices in raster order
}

func newField(mask *Mask) *Field {
	f := &Field{
		W:       mask.W,
		H:       mask.H,
		Offsets: make([]image.Point, mask.W*mask.H),
		Costs:   make([]float64, mask.W*mask.H),
	}
	for i, hole := range mask.Hole {
		if hole {
			f.holes = append(f.holes, i)
		}
	}
	return f
}

// Len returns the number of hole pixels covered by the field.
func (f *Field) Len() int { return len(f.holes) }

// Donor returns the donor center for the hole pixel at (x, y).
func (f *Field) Donor(x, y int) image.Point {
	return image.Pt(x, y).Add(f.Offsets[y*f.W+x])
}

// MeanCost returns the mean of the finite costs and how many costs were
// finite.
func (f *Field) MeanCost() (float64, int) {
	var sum float64
	n := 0
	for _, i := range f.holes {
		if c := f.Costs[i]; !math.IsInf(c, 0) {
			sum += c
			n++
		}
	}
	if n == 0 {
		return math.Inf(1), 0
	}
	return sum / float64(n), n
}

// repair restores the field guarantees on lvl: every donor lies inside the
// image and no cost is NaN. It returns the number of entries it fixed.
func (f *Field) repair(lvl *Level) int {
	fixed := 0
	for _, i := range f.holes {
		p := image.Pt(i%f.W, i/f.W)
		d := p.Add(f.Offsets[i])
		if !lvl.Mask.in(d) {
			d = lvl.nearestDonor(d)
			f.Offsets[i] = d.Sub(p)
			f.Costs[i] = lvl.cost(p, d)
			fixed++
		}
		if math.IsNaN(f.Costs[i]) {
			f.Costs[i] = math.Inf(1)
			fixed++
		}
	}
	return fixed
}

// Initialize seeds lvl with a random field. Each hole pixel draws uniform
// donor centers until one is acceptable, at most searchCap times, and then
// falls back to the acceptable center nearest to the last draw. Every hole
// pixel receives an offset.
func Initialize(lvl *Level, searchCap int, rng *rand.Rand) *Field {
	f := newField(lvl.Mask)
	w, h := lvl.Mask.W, lvl.Mask.H
	for _, i := range f.holes {
		p := image.Pt(i%w, i/w)
		var d image.Point
		found := false
		for attempt := 0; attempt < searchCap; attempt++ {
			d = image.Pt(rng.IntN(w), rng.IntN(h))
			if lvl.accept(d) {
				found = true
				break
			}
		}
		if !found {
			d = lvl.nearestDonor(d)
		}
		f.Offsets[i] = d.Sub(p)
		f.Costs[i] = lvl.cost(p, d)
	}
	lvl.Field = f
	return f
}

// Upsample seeds fine from the field of the next coarser level. Each fine
// hole pixel takes the offset of the coarse pixel covering it multiplied by
// scale. Donors that fall outside the image or onto a patch touching the
// hole move to the nearest acceptable center. Costs are recomputed at the
// fine resolution.
func Upsample(coarse, fine *Level, scale int) *Field {
	fine.seedEstimate(coarse, scale)

	f := newField(fine.Mask)
	fw, fh := fine.Mask.W, fine.Mask.H
	cw, ch := coarse.Mask.W, coarse.Mask.H
	for _, i := range f.holes {
		p := image.Pt(i%fw, i/fw)
		cx, cy := min(p.X/scale, cw-1), min(p.Y/scale, ch-1)
		var o image.Point
		if ci := cy*cw + cx; coarse.Mask.Hole[ci] {
			o = coarse.Field.Offsets[ci].Mul(scale)
		}
		d := clampPoint(p.Add(o), fw, fh)
		if !fine.accept(d) {
			d = fine.nearestDonor(d)
		}
		f.Offsets[i] = d.Sub(p)
		f.Costs[i] = fine.cost(p, d)
	}
	fine.Field = f
	return f
}
