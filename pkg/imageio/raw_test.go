package imageio

import (
	"bytes"
	"image"
	"testing"

	"github.com/illumorae/patchfill/pkg/errors"
)

func TestRawRoundTrip(t *testing.T) {
	img := checker(13, 6)
	data := EncodeRaw(img)
	got, err := DecodeRaw(data)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if got.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), img.Bounds())
	}
	if !bytes.Equal(got.Pix, img.Pix) {
		t.Error("raw round trip changed pixels")
	}
}

func TestRawSubImage(t *testing.T) {
	img := checker(10, 10)
	sub := img.SubImage(image.Rect(2, 3, 7, 9)).(*image.NRGBA)
	got, err := DecodeRaw(EncodeRaw(sub))
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if got.Bounds().Dx() != 5 || got.Bounds().Dy() != 6 {
		t.Fatalf("bounds = %v, want 5x6", got.Bounds())
	}
	for y := 0; y < 6; y++ {
		for x := 0; x < 5; x++ {
			if got.NRGBAAt(x, y) != sub.NRGBAAt(x+2, y+3) {
				t.Fatalf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestDecodeRawErrors(t *testing.T) {
	valid := EncodeRaw(checker(4, 4))
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("XXXX"), valid[4:]...)},
		{"zero width", append(append([]byte{}, valid[:4]...), make([]byte, 8)...)},
		{"truncated", valid[:len(valid)-3]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRaw(tt.data)
			if !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("DecodeRaw error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}
