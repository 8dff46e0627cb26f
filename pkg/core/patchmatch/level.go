package patchmatch

import (
	"image"
	"math"
)

// Level is one resolution of the pyramid: a read-only image and mask plus
// the nearest-neighbor field being refined at that resolution.
type Level struct {
	Image *Image
	Mask  *Mask
	Field *Field

	// Scale is the downscale factor relative to the input (1 at full resolution).
	Scale int

	patch int
	est   *Image // Image with hole pixels replaced by the current reconstruction

	holeSAT []int32 // (W+1)×(H+1) summed-area table of hole counts
	donors  int     // number of fully valid patch centers

	nearDonor []int32 // lazily built; nearest accepted donor per pixel
	nearKnown []int32 // nearest known pixel per pixel
}

// NewLevel prepares img and mask for searching with patchSize×patchSize
// patches. Hole pixels of the working estimate start as the color of the
// nearest known pixel.
func NewLevel(img *Image, mask *Mask, patchSize int) *Level {
	l := &Level{Image: img, Mask: mask, Scale: 1, patch: patchSize}
	l.buildSAT()
	l.nearKnown = nearestSource(mask.W, mask.H, func(i int) bool { return !mask.Hole[i] })

	l.est = img.Clone()
	for i, hole := range mask.Hole {
		if hole {
			if k := l.nearKnown[i]; k >= 0 {
				l.est.copyPixel(i, img, int(k))
			}
		}
	}
	return l
}

// Donors returns the number of patch centers whose whole window is known.
func (l *Level) Donors() int { return l.donors }

// Estimate returns the level's current reconstruction. Known pixels equal
// the level image.
func (l *Level) Estimate() *Image { return l.est }

func (l *Level) radius() int { return l.patch / 2 }

func (l *Level) buildSAT() {
	w, h := l.Mask.W, l.Mask.H
	sw := w + 1
	l.holeSAT = make([]int32, sw*(h+1))
	for y := 0; y < h; y++ {
		var row int32
		for x := 0; x < w; x++ {
			if l.Mask.Hole[y*w+x] {
				row++
			}
			l.holeSAT[(y+1)*sw+x+1] = l.holeSAT[y*sw+x+1] + row
		}
	}
	r := l.radius()
	for y := r; y < h-r; y++ {
		for x := r; x < w-r; x++ {
			if l.windowHoles(x, y) == 0 {
				l.donors++
			}
		}
	}
}

// windowHoles counts hole pixels in the patch window centered at (x, y),
// which must lie fully inside the image.
func (l *Level) windowHoles(x, y int) int32 {
	r, sw := l.radius(), l.Mask.W+1
	x0, y0, x1, y1 := x-r, y-r, x+r+1, y+r+1
	return l.holeSAT[y1*sw+x1] - l.holeSAT[y0*sw+x1] - l.holeSAT[y1*sw+x0] + l.holeSAT[y0*sw+x0]
}

// isDonor reports whether the patch centered at p is in bounds and free of
// hole pixels.
func (l *Level) isDonor(p image.Point) bool {
	r := l.radius()
	if p.X-r < 0 || p.Y-r < 0 || p.X+r >= l.Mask.W || p.Y+r >= l.Mask.H {
		return false
	}
	return l.windowHoles(p.X, p.Y) == 0
}

// accept reports whether p may serve as a donor center. When the level has
// no fully valid patch at all, any known pixel is accepted instead.
func (l *Level) accept(p image.Point) bool {
	if l.donors > 0 {
		return l.isDonor(p)
	}
	return l.Mask.in(p) && !l.Mask.Hole[p.Y*l.Mask.W+p.X]
}

// nearestDonor returns the accepted donor center closest to p. If the level
// has no acceptable center p is returned unchanged.
func (l *Level) nearestDonor(p image.Point) image.Point {
	if l.nearDonor == nil {
		w := l.Mask.W
		l.nearDonor = nearestSource(w, l.Mask.H, func(i int) bool {
			return l.accept(image.Pt(i%w, i/w))
		})
	}
	p = clampPoint(p, l.Mask.W, l.Mask.H)
	if k := l.nearDonor[p.Y*l.Mask.W+p.X]; k >= 0 {
		return image.Pt(int(k)%l.Mask.W, int(k)/l.Mask.W)
	}
	return p
}

// cost is the search-time patch distance between hole center p and donor d.
func (l *Level) cost(p, d image.Point) float64 {
	return patchDistance(l.Image, l.est, l.Mask, p, d, l.radius())
}

// refreshCosts recomputes every field cost against the current estimate.
func (l *Level) refreshCosts() {
	f := l.Field
	for _, i := range f.holes {
		p := image.Pt(i%f.W, i/f.W)
		f.Costs[i] = l.cost(p, p.Add(f.Offsets[i]))
	}
}

// updateEstimate re-votes the hole pixels from the current field and
// refreshes the costs against the new estimate.
func (l *Level) updateEstimate() {
	l.est = Reconstruct(l)
	l.refreshCosts()
}

// seedEstimate fills the hole pixels of the estimate from the estimate of
// the next coarser level.
func (l *Level) seedEstimate(coarse *Level, scale int) {
	w, h := l.Mask.W, l.Mask.H
	cw, ch := coarse.Mask.W, coarse.Mask.H
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !l.Mask.Hole[i] {
				continue
			}
			cx, cy := min(x/scale, cw-1), min(y/scale, ch-1)
			l.est.copyPixel(i, coarse.est, cy*cw+cx)
		}
	}
}

// knownRange returns the per-channel minimum and maximum over known pixels.
func (l *Level) knownRange() (lo, hi []float64) {
	img, plane := l.Image, l.Image.W*l.Image.H
	lo, hi = make([]float64, img.C), make([]float64, img.C)
	for c := range lo {
		lo[c], hi[c] = math.Inf(1), math.Inf(-1)
	}
	for i, hole := range l.Mask.Hole {
		if hole {
			continue
		}
		for c := 0; c < img.C; c++ {
			v := img.Pix[c*plane+i]
			lo[c], hi[c] = min(lo[c], v), max(hi[c], v)
		}
	}
	return lo, hi
}

// nearestSource maps every pixel of a w×h grid to the index of the closest
// source pixel by 4-connected breadth-first distance, or -1 if there are no
// sources. Ties resolve toward the source that is earlier in raster order.
func nearestSource(w, h int, isSource func(i int) bool) []int32 {
	near := make([]int32, w*h)
	queue := make([]int32, 0, w*h)
	for i := range near {
		if isSource(i) {
			near[i] = int32(i)
			queue = append(queue, int32(i))
		} else {
			near[i] = -1
		}
	}
	for head := 0; head < len(queue); head++ {
		i := int(queue[head])
		x, y := i%w, i/w
		for _, n := range [4][2]int{{x, y - 1}, {x - 1, y}, {x + 1, y}, {x, y + 1}} {
			if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
				continue
			}
			j := n[1]*w + n[0]
			if near[j] < 0 {
				near[j] = near[i]
				queue = append(queue, int32(j))
			}
		}
	}
	return near
}

func clampPoint(p image.Point, w, h int) image.Point {
	return image.Pt(max(0, min(p.X, w-1)), max(0, min(p.Y, h-1)))
}
