package imageio

import (
	"bytes"
	"encoding/binary"
	"image"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/illumorae/patchfill/pkg/errors"
)

// rawMagic identifies the raw container: magic, width and height as
// little-endian uint32, then the zstd-compressed NRGBA pixels.
var rawMagic = []byte("PFR1")

const rawHeaderSize = 12

// maxRawPixels bounds decoded dimensions to reject corrupt headers.
const maxRawPixels = 1 << 28

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithLowerEncoderMem(true),
		)
		if err != nil {
			panic(err)
		}
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		)
		if err != nil {
			panic(err)
		}
		return dec
	},
}

// EncodeRaw serializes img into the raw container.
func EncodeRaw(img *image.NRGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	pix := img.Pix
	if img.Stride != w*4 || len(pix) != w*h*4 {
		pix = make([]byte, 0, w*h*4)
		for y := 0; y < h; y++ {
			pix = append(pix, img.Pix[y*img.Stride:y*img.Stride+w*4]...)
		}
	}

	out := make([]byte, rawHeaderSize, rawHeaderSize+len(pix)/2)
	copy(out, rawMagic)
	binary.LittleEndian.PutUint32(out[4:], uint32(w))
	binary.LittleEndian.PutUint32(out[8:], uint32(h))

	enc := zstdEncPool.Get().(*zstd.Encoder)
	out = enc.EncodeAll(pix, out)
	zstdEncPool.Put(enc)
	return out
}

// DecodeRaw parses a raw container produced by [EncodeRaw].
func DecodeRaw(data []byte) (*image.NRGBA, error) {
	if len(data) < rawHeaderSize || !bytes.Equal(data[:4], rawMagic) {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "not a raw image container")
	}
	w := int(binary.LittleEndian.Uint32(data[4:]))
	h := int(binary.LittleEndian.Uint32(data[8:]))
	if w <= 0 || h <= 0 || w*h > maxRawPixels {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "invalid raw dimensions %dx%d", w, h)
	}

	dec := zstdDecPool.Get().(*zstd.Decoder)
	pix, err := dec.DecodeAll(data[rawHeaderSize:], make([]byte, 0, w*h*4))
	zstdDecPool.Put(dec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decompress raw image")
	}
	if len(pix) != w*h*4 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "raw image has %d bytes, want %d", len(pix), w*h*4)
	}
	return &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}
