package cache

import (
	"context"
	"time"
)

var _ Cache = (*NullCache)(nil)

// NullCache stores nothing. It backs --no-cache and the "none" backend, so
// every lookup is a miss and every result is recomputed.
type NullCache struct{}

func NewNullCache() *NullCache { return &NullCache{} }

func (*NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (*NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (*NullCache) Delete(context.Context, string) error                     { return nil }
func (*NullCache) Close() error                                             { return nil }
