// Package store persists the import session in a local key-value store.
package store

import "context"

// KV is a durable local key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
