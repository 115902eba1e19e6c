// Package kv provides the key-value persistence surfaces behind the item store.
package kv

import "context"

// Surface is a durable (at least session-scoped) key-value store.
type Surface interface {
	// Get returns the value under key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error
}

var (
	_ Surface = (*Memory)(nil)
	_ Surface = (*SQLite)(nil)
)
