package patchmatch

import (
	"image"
	"math"
)

// minVoteCost keeps vote weights finite for exact matches.
const minVoteCost = 1e-6

// Reconstruct returns a copy of the level image whose hole pixels are
// voted from the field.
//
// Every hole pixel p whose patch window covers hole pixel q proposes the
// color at q + offset(p), provided that pixel is a known pixel inside the
// image. Proposals are weighted by the inverse of p's cost, with costs below
// minVoteCost clamped. When all proposals come from patches with infinite
// cost they are averaged with equal weight, and a pixel without any proposal
// takes the color of the nearest known pixel. Results are clamped to the
// per-channel range of the known pixels.
func Reconstruct(lvl *Level) *Image {
	img, mask, f := lvl.Image, lvl.Mask, lvl.Field
	w, h, plane := img.W, img.H, img.W*img.H
	out := img.Clone()
	if len(f.holes) == 0 {
		return out
	}

	acc := make([]float64, img.C*plane)
	weights := make([]float64, plane)
	plain := make([]float64, img.C*plane)
	votes := make([]int32, plane)

	r := lvl.radius()
	for _, i := range f.holes {
		p := image.Pt(i%w, i/w)
		o := f.Offsets[i]
		wt := 0.0
		if c := f.Costs[i]; !math.IsInf(c, 1) && !math.IsNaN(c) {
			wt = minVoteCost / max(c, minVoteCost)
		}
		for dy := -r; dy <= r; dy++ {
			qy, sy := p.Y+dy, p.Y+dy+o.Y
			if qy < 0 || qy >= h || sy < 0 || sy >= h {
				continue
			}
			for dx := -r; dx <= r; dx++ {
				qx, sx := p.X+dx, p.X+dx+o.X
				if qx < 0 || qx >= w || sx < 0 || sx >= w {
					continue
				}
				q, s := qy*w+qx, sy*w+sx
				if !mask.Hole[q] || mask.Hole[s] {
					continue
				}
				for c := 0; c < img.C; c++ {
					v := img.Pix[c*plane+s]
					acc[c*plane+q] += wt * v
					plain[c*plane+q] += v
				}
				weights[q] += wt
				votes[q]++
			}
		}
	}

	lo, hi := lvl.knownRange()
	for _, q := range f.holes {
		switch {
		case weights[q] > 0:
			for c := 0; c < img.C; c++ {
				out.Pix[c*plane+q] = acc[c*plane+q] / weights[q]
			}
		case votes[q] > 0:
			for c := 0; c < img.C; c++ {
				out.Pix[c*plane+q] = plain[c*plane+q] / float64(votes[q])
			}
		default:
			if k := lvl.nearKnown[q]; k >= 0 {
				out.copyPixel(q, img, int(k))
			}
		}
		for c := 0; c < img.C; c++ {
			out.Pix[c*plane+q] = max(lo[c], min(out.Pix[c*plane+q], hi[c]))
		}
	}
	return out
}
