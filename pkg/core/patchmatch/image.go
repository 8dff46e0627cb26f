package patchmatch

import (
	"image"
	"math"
)

// Image is a planar multi-channel raster. Channel c of the pixel at (x, y)
// is stored at Pix[c*W*H + y*W + x].
type Image struct {
	W, H int
	C    int
	Pix  []float64
}

// NewImage allocates a zeroed w×h image with c channels.
func NewImage(w, h, c int) *Image {
	return &Image{W: w, H: h, C: c, Pix: make([]float64, w*h*c)}
}

// At returns channel c of the pixel at (x, y).
func (m *Image) At(x, y, c int) float64 {
	return m.Pix[c*m.W*m.H+y*m.W+x]
}

// Set stores v in channel c of the pixel at (x, y).
func (m *Image) Set(x, y, c int, v float64) {
	m.Pix[c*m.W*m.H+y*m.W+x] = v
}

// Clone returns a deep copy of m.
func (m *Image) Clone() *Image {
	out := &Image{W: m.W, H: m.H, C: m.C, Pix: make([]float64, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// finite reports whether every sample of m is a finite number.
func (m *Image) finite() bool {
	for _, v := range m.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// copyPixel copies every channel of pixel i in src to pixel j in m.
func (m *Image) copyPixel(j int, src *Image, i int) {
	dp, sp := m.W*m.H, src.W*src.H
	for c := 0; c < m.C; c++ {
		m.Pix[c*dp+j] = src.Pix[c*sp+i]
	}
}

// Mask marks the pixels to synthesize. Hole[y*W + x] is true for a hole
// pixel and false for a known source pixel.
type Mask struct {
	W, H int
	Hole []bool
}

// NewMask allocates a w×h mask with no holes.
func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Hole: make([]bool, w*h)}
}

// At reports whether (x, y) is a hole pixel.
func (m *Mask) At(x, y int) bool {
	return m.Hole[y*m.W+x]
}

// Set marks (x, y) as a hole when hole is true.
func (m *Mask) Set(x, y int, hole bool) {
	m.Hole[y*m.W+x] = hole
}

// SetRect marks every pixel of r, clipped to the mask, as a hole.
func (m *Mask) SetRect(r image.Rectangle) {
	r = r.Intersect(image.Rect(0, 0, m.W, m.H))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Hole[y*m.W+x] = true
		}
	}
}

// Counts returns the number of hole and known pixels.
func (m *Mask) Counts() (holes, known int) {
	for _, h := range m.Hole {
		if h {
			holes++
		}
	}
	return holes, len(m.Hole) - holes
}

func (m *Mask) in(p image.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.W && p.Y < m.H
}

// downsample halves img with a 2×2 box filter. Odd trailing rows and
// columns form their own narrower boxes, so every fine pixel contributes to
// exactly one coarse pixel.
func downsample(img *Image) *Image {
	cw, ch := (img.W+1)/2, (img.H+1)/2
	out := NewImage(cw, ch, img.C)
	fp, cp := img.W*img.H, cw*ch
	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			x1, y1 := min(2*cx+1, img.W-1), min(2*cy+1, img.H-1)
			n := float64((x1 - 2*cx + 1) * (y1 - 2*cy + 1))
			for c := 0; c < img.C; c++ {
				var sum float64
				for y := 2 * cy; y <= y1; y++ {
					for x := 2 * cx; x <= x1; x++ {
						sum += img.Pix[c*fp+y*img.W+x]
					}
				}
				out.Pix[c*cp+cy*cw+cx] = sum / n
			}
		}
	}
	return out
}

// downsampleMask halves mask. A coarse pixel is a hole if any fine pixel
// it covers is a hole.
func downsampleMask(mask *Mask) *Mask {
	cw, ch := (mask.W+1)/2, (mask.H+1)/2
	out := NewMask(cw, ch)
	for y := 0; y < mask.H; y++ {
		for x := 0; x < mask.W; x++ {
			if mask.Hole[y*mask.W+x] {
				out.Hole[(y/2)*cw+x/2] = true
			}
		}
	}
	return out
}
