package patchmatch

import (
	"image"
	"math"
)

// estimateWeight is the weight of a hole-side pixel whose value comes from
// the current reconstruction rather than from the source image.
const estimateWeight = 0.5

// Distance returns the mean squared channel difference between the patch
// centered at a and the patch centered at b, both patchSize×patchSize.
//
// a is the hole-side patch and b the donor. Only offsets where both a+d and
// b+d lie inside the image and are known pixels are compared. If no pair
// qualifies the result is +Inf, which marks b as unusable for a.
func Distance(img *Image, mask *Mask, a, b image.Point, patchSize int) float64 {
	return patchDistance(img, nil, mask, a, b, patchSize/2)
}

// patchDistance is [Distance] with an optional estimate image. When est is
// non-nil, hole pixels on the a side are compared using est and count with
// estimateWeight instead of being skipped.
func patchDistance(src, est *Image, mask *Mask, a, b image.Point, r int) float64 {
	w, h := src.W, src.H
	plane := w * h
	var sum, weight float64
	for dy := -r; dy <= r; dy++ {
		ya, yb := a.Y+dy, b.Y+dy
		if ya < 0 || ya >= h || yb < 0 || yb >= h {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			xa, xb := a.X+dx, b.X+dx
			if xa < 0 || xa >= w || xb < 0 || xb >= w {
				continue
			}
			ia, ib := ya*w+xa, yb*w+xb
			if mask.Hole[ib] {
				continue
			}
			side, wt := src, 1.0
			if mask.Hole[ia] {
				if est == nil {
					continue
				}
				side, wt = est, estimateWeight
			}
			var ssd float64
			for c := 0; c < src.C; c++ {
				d := side.Pix[c*plane+ia] - src.Pix[c*plane+ib]
				ssd += d * d
			}
			sum += wt * ssd
			weight += wt
		}
	}
	if weight == 0 {
		return math.Inf(1)
	}
	return sum / weight
}
