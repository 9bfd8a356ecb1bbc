// internal/store/store.go
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: key not found")

// UpdateFunc receives the current value (nil when the key is absent) and
// returns the value to write.
type UpdateFunc func(current []byte) ([]byte, error)

// KV is the local state store. Update is atomic per key: concurrent updates
// of the same key never interleave their read and write.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Close() error
}
