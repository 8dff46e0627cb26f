package cli

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/illumorae/patchfill/pkg/errors"
	"github.com/illumorae/patchfill/pkg/pipeline"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestIsMaskFile(t *testing.T) {
	tests := []struct {
		name   string
		suffix string
		want   bool
	}{
		{"photo_mask.png", "_mask", true},
		{"photo_mask.jpg", "_mask", true},
		{"photo.png", "_mask", false},
		{"mask.png", "_mask", false},
		{"photo_mask.png", "", false},
	}

	for _, tt := range tests {
		if got := isMaskFile(tt.name, tt.suffix); got != tt.want {
			t.Errorf("isMaskFile(%q, %q) = %v, want %v", tt.name, tt.suffix, got, tt.want)
		}
	}
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.png", "b.JPG", "c.jpeg", "d.webp", "e.tif"} {
		if !isImageFile(name) {
			t.Errorf("isImageFile(%q) = false", name)
		}
	}
	for _, name := range []string{"notes.txt", "archive.zst", "noext"} {
		if isImageFile(name) {
			t.Errorf("isImageFile(%q) = true", name)
		}
	}
}

func TestFindMask(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "a_mask.png"))
	touch(t, filepath.Join(dir, "b.png"))
	touch(t, filepath.Join(dir, "b_mask.png"))
	touch(t, filepath.Join(dir, "c.png"))

	tests := []struct {
		image string
		want  string
	}{
		{"a.jpg", "a_mask.png"},
		{"b.png", "b_mask.png"},
		{"c.png", ""},
	}

	for _, tt := range tests {
		want := tt.want
		if want != "" {
			want = filepath.Join(dir, want)
		}
		if got := findMask(filepath.Join(dir, tt.image), "_mask"); got != want {
			t.Errorf("findMask(%q) = %q, want %q", tt.image, got, want)
		}
	}
}

func TestCollectBatch(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "one.png"))
	touch(t, filepath.Join(dir, "one_mask.png"))
	touch(t, filepath.Join(dir, "two.jpg"))
	touch(t, filepath.Join(dir, "two_mask.jpg"))
	touch(t, filepath.Join(dir, "lonely.png"))
	touch(t, filepath.Join(dir, "readme.txt"))
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out")
	jobs, skipped, err := collectBatch([]string{dir}, "_mask", out, pipeline.Options{Format: "png"})
	if err != nil {
		t.Fatalf("collectBatch() error: %v", err)
	}

	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2: %+v", len(jobs), jobs)
	}
	for _, job := range jobs {
		if filepath.Dir(job.output) != out {
			t.Errorf("output %q not in %q", job.output, out)
		}
		if filepath.Ext(job.output) != ".png" {
			t.Errorf("output %q should be png", job.output)
		}
		if job.mask == "" {
			t.Errorf("job %q has no mask", job.image)
		}
	}
	if !slices.Equal(skipped, []string{filepath.Join(dir, "lonely.png")}) {
		t.Errorf("skipped = %v, want lonely.png", skipped)
	}
}

func TestCollectBatchMaskFromAlpha(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "cutout.png")
	touch(t, img)

	jobs, skipped, err := collectBatch([]string{img}, "_mask", "", pipeline.Options{Format: "png", MaskFromAlpha: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 || len(jobs) != 1 {
		t.Fatalf("jobs = %+v, skipped = %v", jobs, skipped)
	}
	if jobs[0].mask != "" {
		t.Errorf("mask = %q, want none", jobs[0].mask)
	}
	if want := filepath.Join(dir, "cutout_filled.png"); jobs[0].output != want {
		t.Errorf("output = %q, want %q", jobs[0].output, want)
	}
}

func TestCollectBatchOutputCollisions(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"day", "night"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
		touch(t, filepath.Join(root, dir, "scene.png"))
		touch(t, filepath.Join(root, dir, "scene_mask.png"))
	}
	touch(t, filepath.Join(root, "day", "scene.jpg"))
	touch(t, filepath.Join(root, "day", "scene_mask.jpg"))

	out := filepath.Join(root, "out")
	args := []string{
		filepath.Join(root, "day"),
		filepath.Join(root, "night"),
		filepath.Join(root, "night", "scene.png"),
	}
	jobs, _, err := collectBatch(args, "_mask", out, pipeline.Options{Format: "png"})
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3 (repeated input runs once): %+v", len(jobs), jobs)
	}

	want := []string{"scene_filled.png", "scene_filled-2.png", "scene_filled-3.png"}
	for i, job := range jobs {
		if got := filepath.Base(job.output); got != want[i] {
			t.Errorf("job %d (%s) output = %s, want %s", i, job.image, got, want[i])
		}
		if job.renamed != (i > 0) {
			t.Errorf("job %d renamed = %v, want %v", i, job.renamed, i > 0)
		}
	}
}

func TestUniquePath(t *testing.T) {
	taken := map[string]bool{}
	for _, want := range []string{"out/a.png", "out/a-2.png", "out/a-3.png"} {
		if got, _ := uniquePath("out/a.png", taken); got != want {
			t.Errorf("uniquePath() = %q, want %q", got, want)
		}
	}
	if got, renamed := uniquePath("out/b.png", taken); got != "out/b.png" || renamed {
		t.Errorf("uniquePath(b) = %q, %v; want unchanged", got, renamed)
	}
}

func TestCollectBatchMissing(t *testing.T) {
	_, _, err := collectBatch([]string{filepath.Join(t.TempDir(), "gone.png")}, "_mask", "", pipeline.Options{})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodeFileNotFound)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input  string
		format string
		want   string
	}{
		{"photo.png", "", "photo_filled.png"},
		{"photo.jpg", "", "photo_filled.jpg"},
		{"photo.webp", "", "photo_filled.png"},
		{"anim.gif", "", "anim_filled.png"},
		{"photo.png", "jpeg", "photo_filled.jpg"},
		{"photo.jpg", "tiff", "photo_filled.tiff"},
		{"dir/scan.bmp", "", "dir/scan_filled.bmp"},
	}

	for _, tt := range tests {
		if got := defaultOutputPath(tt.input, tt.format); got != tt.want {
			t.Errorf("defaultOutputPath(%q, %q) = %q, want %q", tt.input, tt.format, got, tt.want)
		}
	}
}
