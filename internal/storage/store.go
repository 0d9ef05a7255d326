// Package storage is the key-path document and blob store shared by every
// pipeline component. Keys are slash separated, e.g. "users/u1/jobs/index.json".
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when nothing is stored under a key.
	ErrNotFound = errors.New("storage: not found")
	// ErrUnsupported is returned by backends that cannot serve an operation.
	ErrUnsupported = errors.New("storage: operation not supported")
)

// MutateFunc receives the current raw document (nil when absent) and returns
// the replacement.
type MutateFunc func(current []byte) ([]byte, error)

// Store is the durable backend consumed by the pipeline.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) error
	PutJSON(ctx context.Context, key string, value any) error
	// UpdateJSON performs an atomic read-modify-write of a single key.
	UpdateJSON(ctx context.Context, key string, mutate MutateFunc) error
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Load reads key into a fresh T. ErrNotFound is returned unchanged.
func Load[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	if err := s.GetJSON(ctx, key, &v); err != nil {
		return v, err
	}
	return v, nil
}

// LoadOr returns fallback when key does not exist.
func LoadOr[T any](ctx context.Context, s Store, key string, fallback T) (T, error) {
	v, err := Load[T](ctx, s, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	return v, err
}

// Update decodes the current value of key (zero T when missing), applies fn
// and writes the result back within one UpdateJSON call.
func Update[T any](ctx context.Context, s Store, key string, fn func(*T) error) error {
	return s.UpdateJSON(ctx, key, func(current []byte) ([]byte, error) {
		var v T
		if len(current) > 0 {
			if err := json.Unmarshal(current, &v); err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
}
