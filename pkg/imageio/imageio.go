package imageio

import (
	"image"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/illumorae/patchfill/pkg/core/patchmatch"
	"github.com/illumorae/patchfill/pkg/errors"
)

// DefaultMaskThreshold is the luminance at or above which a mask pixel is a hole.
const DefaultMaskThreshold = 128

// Format constants for output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]imaging.Format{
	FormatPNG:  imaging.PNG,
	FormatJPEG: imaging.JPEG,
	FormatBMP:  imaging.BMP,
	FormatTIFF: imaging.TIFF,
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if _, ok := ValidFormats[format]; !ok {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: png, jpeg, bmp, tiff)", format)
	}
	return nil
}

// FormatFromPath infers the output format from a file extension, falling
// back to PNG for unknown extensions.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".bmp":
		return FormatBMP
	case ".tif", ".tiff":
		return FormatTIFF
	}
	return FormatPNG
}

// Open decodes the image file at path with EXIF orientation applied.
func Open(path string) (*image.NRGBA, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode %s", path)
	}
	return imaging.Clone(img), nil
}

// Size returns the dimensions declared in the header of an encoded image
// without decoding its pixels. EXIF orientation is not applied, which swaps
// width and height at most.
func Size(r io.Reader) (w, h int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, errors.Wrap(errors.ErrCodeInvalidImage, err, "read image header")
	}
	return cfg.Width, cfg.Height, nil
}

// Decode reads an encoded image from r with EXIF orientation applied.
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode image")
	}
	return imaging.Clone(img), nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format string) error {
	f, ok := ValidFormats[format]
	if !ok {
		return ValidateFormat(format)
	}
	return imaging.Encode(w, img, f, imaging.JPEGQuality(95))
}

// Save writes img to path using the format implied by its extension.
func Save(img image.Image, path string) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	return imaging.Save(img, path, imaging.JPEGQuality(95))
}

// HasAlpha reports whether any pixel of img is not fully opaque.
func HasAlpha(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			if row[i] != 0xff {
				return true
			}
		}
	}
	return false
}

// ToPlanar converts img to a planar raster with channel values in [0, 255].
// The alpha channel is kept as a fourth channel only when the image is not
// fully opaque.
func ToPlanar(img *image.NRGBA) *patchmatch.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	c := 3
	if HasAlpha(img) {
		c = 4
	}
	out := patchmatch.NewImage(w, h, c)
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				out.Pix[ch*plane+y*w+x] = float64(row[x*4+ch])
			}
		}
	}
	return out
}

// FromPlanar converts a planar raster with values in [0, 255] back to
// 8-bit RGBA. Values are rounded to the nearest integer and clamped.
// Rasters without an alpha channel come back fully opaque; single-channel
// rasters are expanded to gray.
func FromPlanar(p *patchmatch.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, p.W, p.H))
	plane := p.W * p.H
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			i := y*p.W + x
			px := out.Pix[y*out.Stride+x*4:]
			for ch := 0; ch < 3; ch++ {
				src := min(ch, p.C-1)
				if p.C == 2 {
					src = 0
				}
				px[ch] = toByte(p.Pix[src*plane+i])
			}
			px[3] = 0xff
			if p.C == 2 || p.C == 4 {
				px[3] = toByte(p.Pix[(p.C-1)*plane+i])
			}
		}
	}
	return out
}

func toByte(v float64) uint8 {
	return uint8(max(0, min(255, math.Round(v))))
}

// MaskOptions controls how an image is interpreted as a mask.
type MaskOptions struct {
	// Threshold is the luminance at or above which a pixel is a hole.
	// Zero selects DefaultMaskThreshold.
	Threshold uint8

	// Invert marks dark pixels as holes instead of bright ones.
	Invert bool
}

// MaskFrom converts a mask image into a hole mask. Transparent mask pixels
// are treated as black.
func MaskFrom(img image.Image, opts MaskOptions) *patchmatch.Mask {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultMaskThreshold
	}
	gray := imaging.Grayscale(img)
	b := gray.Bounds()
	m := patchmatch.NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			lum := uint16(row[x*4]) * uint16(row[x*4+3]) / 255
			hole := uint8(lum) >= threshold
			if opts.Invert {
				hole = !hole
			}
			m.Hole[y*b.Dx()+x] = hole
		}
	}
	return m
}

// MaskFromAlpha returns a mask whose holes are the transparent pixels
// (alpha below threshold) of img.
func MaskFromAlpha(img *image.NRGBA, threshold uint8) *patchmatch.Mask {
	if threshold == 0 {
		threshold = DefaultMaskThreshold
	}
	b := img.Bounds()
	m := patchmatch.NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			m.Hole[y*b.Dx()+x] = row[x*4+3] < threshold
		}
	}
	return m
}
