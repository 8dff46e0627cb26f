// Package cache stores infill results keyed by their inputs.
//
// A result is fully determined by the image bytes, the mask bytes, the
// infill options and the seed, so identical requests can be served without
// running the search again. Unseeded requests are never cached.
//
// Three backends implement [Cache]:
//
//   - [FileCache] for the CLI, one zstd-compressed file per entry
//   - [RedisCache] for shared deployments of the HTTP server
//   - [NullCache] when caching is disabled
package cache

import (
	"context"
	"time"
)

// TTLResult is the default lifetime of a cached infill result.
const TTLResult = 7 * 24 * time.Hour

// Cache is a byte-oriented key-value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key and whether it was found.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// ResultKeyOpts holds every option that changes the infill output.
type ResultKeyOpts struct {
	PatchSize       int    `json:"patch_size"`
	Iterations      int    `json:"iterations"`
	PyramidFloor    int    `json:"pyramid_floor"`
	RandomSearchCap int    `json:"search_cap"`
	Seed            uint64 `json:"seed"`
	MaskThreshold   uint8  `json:"mask_threshold"`
	MaskInvert      bool   `json:"mask_invert"`
	MaskAlpha       bool   `json:"mask_alpha"`
}

// Keyer builds cache keys.
type Keyer interface {
	// ResultKey identifies an infill result by the hashes of the encoded
	// image and mask and the options used.
	ResultKey(imageHash, maskHash string, opts ResultKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ResultKey implements [Keyer].
func (DefaultKeyer) ResultKey(imageHash, maskHash string, opts ResultKeyOpts) string {
	return hashKey("result", imageHash, maskHash, opts)
}
