package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Counters is an in-process implementation of every hook set. It keeps
// running totals that "patchfill serve" reports on GET /stats.
type Counters struct {
	infills       atomic.Int64
	infillErrors  atomic.Int64
	holePixels    atomic.Int64
	levels        atomic.Int64
	infillNanos   atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
	cacheBytes    atomic.Int64
	requests      atomic.Int64
	requestErrors atomic.Int64

	mu       sync.Mutex
	statuses map[int]int64
}

var (
	_ InfillHooks = (*Counters)(nil)
	_ CacheHooks  = (*Counters)(nil)
	_ HTTPHooks   = (*Counters)(nil)
)

func NewCounters() *Counters {
	return &Counters{statuses: make(map[int]int64)}
}

// Register installs c as the infill, cache and HTTP hooks.
func (c *Counters) Register() {
	SetInfillHooks(c)
	SetCacheHooks(c)
	SetHTTPHooks(c)
}

func (c *Counters) OnInfillStart(context.Context, int, int, int)            {}
func (c *Counters) OnLevelComplete(context.Context, int, int, int, float64) {}
func (c *Counters) OnRequest(context.Context, string, string)               {}
func (c *Counters) OnError(context.Context, string, string, error)          { c.requestErrors.Add(1) }
func (c *Counters) OnCacheHit(context.Context, string)                      { c.cacheHits.Add(1) }
func (c *Counters) OnCacheMiss(context.Context, string)                     { c.cacheMisses.Add(1) }
func (c *Counters) OnCacheSet(_ context.Context, _ string, size int)        { c.cacheBytes.Add(int64(size)) }

func (c *Counters) OnInfillComplete(_ context.Context, holes, levels int, d time.Duration, err error) {
	c.infills.Add(1)
	if err != nil {
		c.infillErrors.Add(1)
		return
	}
	c.holePixels.Add(int64(holes))
	c.levels.Add(int64(levels))
	c.infillNanos.Add(int64(d))
}

func (c *Counters) OnResponse(_ context.Context, _, _ string, status int, _ time.Duration) {
	c.requests.Add(1)
	c.mu.Lock()
	c.statuses[status]++
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Infills       int64         `json:"infills"`
	InfillErrors  int64         `json:"infill_errors"`
	HolePixels    int64         `json:"hole_pixels"`
	Levels        int64         `json:"levels"`
	InfillTime    time.Duration `json:"infill_time_ns"`
	CacheHits     int64         `json:"cache_hits"`
	CacheMisses   int64         `json:"cache_misses"`
	CacheBytes    int64         `json:"cache_bytes_written"`
	Requests      int64         `json:"requests"`
	RequestErrors int64         `json:"request_errors"`
	Statuses      map[int]int64 `json:"statuses"`
}

func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Infills:       c.infills.Load(),
		InfillErrors:  c.infillErrors.Load(),
		HolePixels:    c.holePixels.Load(),
		Levels:        c.levels.Load(),
		InfillTime:    time.Duration(c.infillNanos.Load()),
		CacheHits:     c.cacheHits.Load(),
		CacheMisses:   c.cacheMisses.Load(),
		CacheBytes:    c.cacheBytes.Load(),
		Requests:      c.requests.Load(),
		RequestErrors: c.requestErrors.Load(),
	}
	c.mu.Lock()
	s.Statuses = make(map[int]int64, len(c.statuses))
	for code, n := range c.statuses {
		s.Statuses[code] = n
	}
	c.mu.Unlock()
	return s
}
