package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

var (
	errNetwork  = errors.New("network error")
	errNotFound = errors.New("not found")
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "result:abc", []byte("pixels"), time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "result:abc")
	if err != nil || hit || data != nil {
		t.Errorf("Get after Set = %q, %v, %v; want a miss", data, hit, err)
	}
	if err := c.Delete(ctx, "result:abc"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	base := ResultKeyOpts{PatchSize: 7, Iterations: 5, PyramidFloor: 32, RandomSearchCap: 200, Seed: 1}
	key := k.ResultKey("img", "mask", base)
	if !strings.HasPrefix(key, "result:") {
		t.Errorf("ResultKey should be prefixed with result: %s", key)
	}
	if key != k.ResultKey("img", "mask", base) {
		t.Error("ResultKey should be deterministic")
	}

	changed := base
	changed.Seed = 2
	if key == k.ResultKey("img", "mask", changed) {
		t.Error("Different seeds should produce different keys")
	}
	changed = base
	changed.MaskInvert = true
	if key == k.ResultKey("img", "mask", changed) {
		t.Error("Different mask options should produce different keys")
	}
	if key == k.ResultKey("img", "other", base) {
		t.Error("Different masks should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "tenant:123:")

	opts := ResultKeyOpts{Seed: 9}
	key := scoped.ResultKey("a", "b", opts)
	if key != "tenant:123:"+inner.ResultKey("a", "b", opts) {
		t.Errorf("ScopedKeyer ResultKey unexpected: %s", key)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.ResultKey("a", "b", ResultKeyOpts{})
	if key != "prefix:"+NewDefaultKeyer().ResultKey("a", "b", ResultKeyOpts{}) {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
	err := Retryable(errNetwork)
	if !IsRetryable(err) || !errors.Is(err, errNetwork) {
		t.Errorf("Retryable(errNetwork) = %v, should be retryable and wrap errNetwork", err)
	}
	if err.Error() != errNetwork.Error() {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsRetryable(errNotFound) {
		t.Error("plain errors are not retryable")
	}
	if !IsRetryable(fmt.Errorf("ping: %w", err)) {
		t.Error("IsRetryable should see through wrapping")
	}
}

func TestBackoffRetry(t *testing.T) {
	fast := Backoff{Attempts: 3, Delay: time.Millisecond}

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"success first try", 0, nil, 1, nil},
		{"permanent error stops", 5, errNotFound, 1, errNotFound},
		{"transient then success", 2, Retryable(errNetwork), 3, nil},
		{"attempts exhausted", 5, Retryable(errNetwork), 3, errNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fast.Retry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := Backoff{}.withDefaults()
	if b != DefaultBackoff {
		t.Errorf("withDefaults() = %+v, want %+v", b, DefaultBackoff)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errNetwork)
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
