// Package imageio converts between encoded image files and the planar
// rasters used by the infill core.
//
// Decoding goes through [github.com/disintegration/imaging] so that EXIF
// orientation is applied, and the formats registered with the standard
// library (PNG, JPEG, GIF) are extended with BMP, TIFF and WebP from
// golang.org/x/image. Images are normalized to 8-bit non-premultiplied RGBA
// before conversion, so a known pixel survives a decode → infill → encode
// round trip byte for byte.
//
// Masks are ordinary images: a pixel is a hole when its luminance reaches
// the threshold (white marks the region to fill), or the reverse when the
// mask is inverted.
//
// [EncodeRaw] and [DecodeRaw] provide a compact zstd-compressed pixel
// container used for cached results.
package imageio
