// Package storage is the persistence adapter: a flat key-value blob store with
// last-write-wins semantics and no transactions.
package storage

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("storage: key not found")

type Store interface {
	// Get returns ErrKeyNotFound when nothing was ever written under key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores that hold a connection or file handle.
type Closer interface {
	Close() error
}

func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
