package ports

import (
	"context"
	"time"
)

// Cache is a key-value store for short-lived state (sessions, OAuth states).
// A zero ttl keeps the entry until it is deleted.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
