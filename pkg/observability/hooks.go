// Package observability lets a host instrument patchfill without the core,
// the pipeline or the HTTP adapter depending on a metrics framework.
//
// Three hook sets exist: [InfillHooks] for runs and pyramid levels,
// [CacheHooks] for result cache traffic and [HTTPHooks] for served requests.
// Each defaults to a no-op. The host (main, or "patchfill serve") registers
// implementations once at startup:
//
//	counters := observability.NewCounters()
//	counters.Register()
//
// and instrumented code fetches the current set per event:
//
//	observability.Infill().OnInfillStart(ctx, w, h, holes)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Infill Hooks
// =============================================================================

// InfillHooks receives events from infill runs.
type InfillHooks interface {
	// OnInfillStart is called before the pyramid is built.
	OnInfillStart(ctx context.Context, width, height, holes int)

	// OnLevelComplete is called after each pyramid level has been refined,
	// coarsest first.
	OnLevelComplete(ctx context.Context, level, width, height int, meanCost float64)

	// OnInfillComplete is called when a run finishes, successfully or not.
	OnInfillComplete(ctx context.Context, holes, levels int, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records the response sent for a request.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)

	// OnError records a request that failed with an error.
	OnError(ctx context.Context, method, route string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopInfillHooks is a no-op implementation of InfillHooks.
type NoopInfillHooks struct{}

func (NoopInfillHooks) OnInfillStart(context.Context, int, int, int)                     {}
func (NoopInfillHooks) OnLevelComplete(context.Context, int, int, int, float64)          {}
func (NoopInfillHooks) OnInfillComplete(context.Context, int, int, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, error)                 {}

// =============================================================================
// Registry
// =============================================================================

type registry struct {
	mu     sync.RWMutex
	infill InfillHooks
	cache  CacheHooks
	http   HTTPHooks
}

var hooks = newRegistry()

func newRegistry() *registry {
	return &registry{infill: NoopInfillHooks{}, cache: NoopCacheHooks{}, http: NoopHTTPHooks{}}
}

// SetInfillHooks registers h; nil is ignored. Call before the first run.
func SetInfillHooks(h InfillHooks) {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if h != nil {
		hooks.infill = h
	}
}

// SetCacheHooks registers h; nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if h != nil {
		hooks.cache = h
	}
}

// SetHTTPHooks registers h; nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if h != nil {
		hooks.http = h
	}
}

func Infill() InfillHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.infill
}

func Cache() CacheHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.cache
}

func HTTP() HTTPHooks {
	hooks.mu.RLock()
	defer hooks.mu.RUnlock()
	return hooks.http
}

// Reset restores the no-op hooks. Tests that register hooks defer it.
func Reset() {
	fresh := newRegistry()
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	hooks.infill, hooks.cache, hooks.http = fresh.infill, fresh.cache, fresh.http
}
