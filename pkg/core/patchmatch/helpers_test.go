package patchmatch

import (
	"image"
	"math"
	"testing"
)

// solidImage returns a w×h image whose pixels all have the given channel values.
func solidImage(w, h int, vals ...float64) *Image {
	img := NewImage(w, h, len(vals))
	for c, v := range vals {
		for i := 0; i < w*h; i++ {
			img.Pix[c*w*h+i] = v
		}
	}
	return img
}

// texturedImage returns a 3-channel image with smooth gradients and a
// repeating stripe so that patches are distinguishable.
func texturedImage(w, h int) *Image {
	img := NewImage(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, 0, float64((x*255)/max(w-1, 1)))
			img.Set(x, y, 1, float64((y*255)/max(h-1, 1)))
			img.Set(x, y, 2, float64(((x/4+y/4)%2)*200))
		}
	}
	return img
}

func rectMask(w, h int, r image.Rectangle) *Mask {
	m := NewMask(w, h)
	m.SetRect(r)
	return m
}

func seedPtr(v uint64) *uint64 { return &v }

// assertPassThrough fails if any known pixel differs between in and out.
func assertPassThrough(t *testing.T, in, out *Image, mask *Mask) {
	t.Helper()
	plane := in.W * in.H
	for i, hole := range mask.Hole {
		if hole {
			continue
		}
		for c := 0; c < in.C; c++ {
			if in.Pix[c*plane+i] != out.Pix[c*plane+i] {
				t.Fatalf("known pixel %d channel %d changed: %v -> %v", i, c, in.Pix[c*plane+i], out.Pix[c*plane+i])
			}
		}
	}
}

// assertCovered fails if any hole pixel of out is not finite or lies
// outside the channel range of the known pixels of in.
func assertCovered(t *testing.T, in, out *Image, mask *Mask) {
	t.Helper()
	lo, hi := NewLevel(in, mask, 3).knownRange()
	plane := in.W * in.H
	for i, hole := range mask.Hole {
		if !hole {
			continue
		}
		for c := 0; c < in.C; c++ {
			v := out.Pix[c*plane+i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("hole pixel %d channel %d is not finite: %v", i, c, v)
			}
			if v < lo[c] || v > hi[c] {
				t.Fatalf("hole pixel %d channel %d = %v outside [%v, %v]", i, c, v, lo[c], hi[c])
			}
		}
	}
}
