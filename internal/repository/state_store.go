package repository

import (
	"context"
	"time"
)

// StateStore abstracts the durable key-value store drafts are persisted in.
// Implementations: Redis (production), Postgres (durable, shared), or
// in-memory (local dev / single instance).
//
// Get returns (nil, nil) when the key is absent or its TTL has lapsed.
// A ttl <= 0 on Set means the entry never expires at the store level.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Purger is implemented by stores that do not evict expired entries on
// their own and need a periodic sweep.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
