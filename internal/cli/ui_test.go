package cli

import (
	"strings"
	"testing"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"Image", "Holes"},
		[][]string{{"a.png", "12"}, {"b.png", "3400"}},
		1,
	)
	for _, want := range []string{"Image", "Holes", "a.png", "3400"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Split(out, "\n"); len(lines) < 4 {
		t.Errorf("table has %d lines, want header, rows and borders", len(lines))
	}
}

func TestCacheLabel(t *testing.T) {
	if cacheLabel(true) == cacheLabel(false) {
		t.Error("hit and miss labels should differ")
	}
}
