// Package storage provides the durable key/value backends cart records are
// written to. A backend stores one opaque payload per key and overwrites it
// in full on every Save.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no payload exists for the key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the durable record store a cart reads from and writes through to.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
