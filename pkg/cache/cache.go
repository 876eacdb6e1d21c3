package cache

import (
	"context"
)

// Cacher defines the caching interface consumed by the HTTP client.
// The sqlite-backed implementation lives in pkg/store; Null serves
// tests and cache-disabled runs.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Null is a Cacher that never hits and discards writes.
type Null struct{}

func (Null) GetCache(ctx context.Context, key string) ([]byte, bool) {
	return nil, false
}

func (Null) SetCache(ctx context.Context, key string, val []byte) error {
	return nil
}
