package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/illumorae/patchfill/pkg/cache"
	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/observability"
)

var red = color.NRGBA{R: 255, A: 255}

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return encodePNG(t, img)
}

func maskPNG(t *testing.T, w, h int, hole image.Rectangle) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}
			if (image.Point{X: x, Y: y}).In(hole) {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func seedPtr(v uint64) *uint64 { return &v }

// headerOnlyPNG returns a PNG signature and IHDR chunk declaring a w×h 8-bit
// grayscale image, without any pixel data.
func headerOnlyPNG(w, h int) []byte {
	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], uint32(w))
	binary.BigEndian.PutUint32(chunk[8:], uint32(h))
	chunk[12] = 8

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func assertAll(t *testing.T, img *image.NRGBA, want color.NRGBA) {
	t.Helper()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if got := img.NRGBAAt(x, y); got != want {
				t.Fatalf("pixel (%d,%d) = %+v, want %+v", x, y, got, want)
			}
		}
	}
}

func redInput(t *testing.T) Input {
	return Input{
		Name:  "red.png",
		Image: solidPNG(t, 40, 40, red),
		Mask:  maskPNG(t, 40, 40, image.Rect(15, 15, 25, 25)),
	}
}

func TestExecuteFillsHole(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), redInput(t), Options{Seed: seedPtr(1)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	assertAll(t, res.Image, red)
	if res.Stats.Width != 40 || res.Stats.Height != 40 || res.Stats.Holes != 100 {
		t.Errorf("Stats = %+v, want 40x40 with 100 holes", res.Stats)
	}
	if len(res.Levels) != 1 {
		t.Errorf("got %d levels, want 1", len(res.Levels))
	}
	if res.Seed != 1 || res.Format != DefaultFormat {
		t.Errorf("Seed = %d, Format = %q", res.Seed, res.Format)
	}

	decoded, err := png.Decode(bytes.NewReader(res.Encoded))
	if err != nil {
		t.Fatalf("Encoded is not a PNG: %v", err)
	}
	if decoded.Bounds() != res.Image.Bounds() {
		t.Errorf("encoded bounds = %v, want %v", decoded.Bounds(), res.Image.Bounds())
	}
}

func TestExecuteMaskFromAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, red)
		}
	}
	for y := 10; y < 14; y++ {
		for x := 20; x < 26; x++ {
			img.SetNRGBA(x, y, color.NRGBA{})
		}
	}

	r := NewRunner(nil, nil, nil)
	res, err := r.Execute(context.Background(), Input{Image: encodePNG(t, img)},
		Options{MaskFromAlpha: true, Seed: seedPtr(2)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stats.Holes != 24 {
		t.Errorf("Holes = %d, want 24", res.Stats.Holes)
	}
	assertAll(t, res.Image, red)
}

func TestExecuteCachesSeededResults(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	defer r.Close()

	in := redInput(t)
	opts := Options{Seed: seedPtr(5)}

	first, err := r.Execute(ctx, in, opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if !first.CacheInfo.Cacheable || first.CacheInfo.ResultHit {
		t.Errorf("first CacheInfo = %+v, want cacheable miss", first.CacheInfo)
	}

	second, err := r.Execute(ctx, in, opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheInfo.ResultHit {
		t.Error("second run should hit the cache")
	}
	if !bytes.Equal(first.Image.Pix, second.Image.Pix) || !bytes.Equal(first.Encoded, second.Encoded) {
		t.Error("cached result differs from computed result")
	}
	if second.Seed != 5 {
		t.Errorf("cached Seed = %d, want 5", second.Seed)
	}

	opts.Refresh = true
	third, err := r.Execute(ctx, in, opts)
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheInfo.ResultHit {
		t.Error("refresh should bypass the cache")
	}
}

func TestExecuteUnseededSkipsCache(t *testing.T) {
	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	defer r.Close()

	res, err := r.Execute(context.Background(), redInput(t), Options{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CacheInfo.Cacheable {
		t.Error("unseeded run should not be cacheable")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("unseeded run wrote %d cache entries", len(entries))
	}
}

func TestExecuteErrors(t *testing.T) {
	img := solidPNG(t, 40, 40, red)
	tests := []struct {
		name string
		in   Input
		opts Options
		code errors.Code
	}{
		{"empty image", Input{Mask: maskPNG(t, 40, 40, image.Rect(0, 0, 1, 1))}, Options{}, errors.ErrCodeInvalidImage},
		{"garbage image", Input{Image: []byte("nope"), Mask: img}, Options{}, errors.ErrCodeInvalidImage},
		{"missing mask", Input{Image: img}, Options{}, errors.ErrCodeInvalidMask},
		{"garbage mask", Input{Image: img, Mask: []byte("nope")}, Options{}, errors.ErrCodeInvalidMask},
		{"mask size mismatch", Input{Image: img, Mask: maskPNG(t, 20, 40, image.Rect(0, 0, 2, 2))}, Options{}, errors.ErrCodeInvalidMask},
		{"all hole", Input{Image: img, Mask: maskPNG(t, 40, 40, image.Rect(0, 0, 40, 40))}, Options{}, errors.ErrCodeNoValidSource},
		{"too small", Input{Image: solidPNG(t, 5, 5, red), Mask: maskPNG(t, 5, 5, image.Rect(2, 2, 3, 3))}, Options{}, errors.ErrCodeImageTooSmall},
		{"bad patch", Input{Image: img, Mask: img}, Options{PatchSize: 6}, errors.ErrCodeInvalidPatchSize},
	}

	r := NewRunner(nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), tt.in, tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestExecuteRejectsOversizedInputs(t *testing.T) {
	img := solidPNG(t, 40, 40, red)
	mask := maskPNG(t, 40, 40, image.Rect(15, 15, 25, 25))
	tests := []struct {
		name  string
		in    Input
		limit int
		code  errors.Code
	}{
		{"declared canvas", Input{Image: headerOnlyPNG(20000, 20000), Mask: mask}, 0, errors.ErrCodeInvalidImage},
		{"declared mask canvas", Input{Image: img, Mask: headerOnlyPNG(20000, 20000)}, 0, errors.ErrCodeInvalidMask},
		{"configured limit", Input{Image: img, Mask: mask}, 1599, errors.ErrCodeInvalidImage},
		{"at limit", Input{Image: img, Mask: mask}, 1600, ""},
	}

	r := NewRunner(nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Execute(context.Background(), tt.in, Options{MaxPixels: tt.limit, Seed: seedPtr(1)})
			if tt.code == "" {
				if err != nil {
					t.Fatalf("Execute: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Fatalf("error = %v, want %s", err, tt.code)
			}
			if !strings.Contains(errors.UserMessage(err), "over the limit") {
				t.Errorf("message = %q, want a pixel limit message", errors.UserMessage(err))
			}
		})
	}
}

func TestExecuteBatch(t *testing.T) {
	inputs := []Input{
		redInput(t),
		{Name: "broken.png", Image: []byte("nope")},
		redInput(t),
	}
	r := NewRunner(nil, nil, nil)
	results, err := r.ExecuteBatch(context.Background(), inputs, Options{Seed: seedPtr(4)}, 2)
	if err != nil {
		t.Fatalf("ExecuteBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[1].Name != "broken.png" || results[1].Err == nil {
		t.Errorf("results[1] = %+v, want error for broken.png", results[1])
	}
	for _, i := range []int{0, 2} {
		if results[i].Err != nil {
			t.Fatalf("results[%d]: %v", i, results[i].Err)
		}
	}
	if !bytes.Equal(results[0].Result.Image.Pix, results[2].Result.Image.Pix) {
		t.Error("identical inputs with the same seed should give identical results")
	}
}

func TestExecuteBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner(nil, nil, nil)
	results, err := r.ExecuteBatch(ctx, []Input{redInput(t)}, Options{}, 1)
	if err == nil {
		t.Fatal("ExecuteBatch should report cancellation")
	}
	if results[0].Err == nil {
		t.Error("cancelled input should carry an error")
	}
}

type recordingHooks struct {
	observability.NoopInfillHooks
	started, levels, completed int
}

func (h *recordingHooks) OnInfillStart(context.Context, int, int, int) { h.started++ }
func (h *recordingHooks) OnLevelComplete(context.Context, int, int, int, float64) {
	h.levels++
}
func (h *recordingHooks) OnInfillComplete(context.Context, int, int, time.Duration, error) {
	h.completed++
}

func TestExecuteEmitsHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetInfillHooks(hooks)
	defer observability.Reset()

	r := NewRunner(nil, nil, nil)
	if _, err := r.Execute(context.Background(), redInput(t), Options{Seed: seedPtr(8)}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if hooks.started != 1 || hooks.completed != 1 || hooks.levels != 1 {
		t.Errorf("hooks = %+v, want 1 start, 1 level, 1 completion", hooks)
	}
}

func TestInputFromFiles(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "in.png")
	if err := os.WriteFile(imgPath, solidPNG(t, 8, 8, red), 0644); err != nil {
		t.Fatal(err)
	}

	in, err := InputFromFiles(imgPath, "")
	if err != nil {
		t.Fatalf("InputFromFiles: %v", err)
	}
	if in.Name != imgPath || len(in.Image) == 0 || in.Mask != nil {
		t.Errorf("Input = %q, %d image bytes, mask %v", in.Name, len(in.Image), in.Mask)
	}

	_, err = InputFromFiles(imgPath, filepath.Join(dir, "missing.png"))
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing mask error = %v, want FILE_NOT_FOUND", err)
	}
}
