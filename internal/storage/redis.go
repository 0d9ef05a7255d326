package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldData        = "data"
	fieldContentType = "content_type"

	// maxTxRetries bounds optimistic retries when a watched key changes.
	maxTxRetries = 16

	connectionTimeout = 5 * time.Second
)

// ErrEmptyURL is returned when the redis backend has no connection URL.
var ErrEmptyURL = errors.New("redis url is required")

// Redis keeps every document in a hash holding the payload and its content type.
type Redis struct {
	client *redis.Client
	prefix string
}

// DialRedis parses url, verifies the connection and returns a store whose keys
// are namespaced by prefix.
func DialRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrEmptyURL
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedis(client, prefix), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Redis{client: client, prefix: prefix}
}

// Client exposes the underlying connection for components sharing it.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(k string) string { return r.prefix + strings.TrimPrefix(k, "/") }

func (r *Redis) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := r.DownloadFile(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Redis) PutJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.UploadFile(ctx, key, data, "application/json")
}

func (r *Redis) UpdateJSON(ctx context.Context, key string, mutate MutateFunc) error {
	k := r.key(key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, fieldData).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldData, next, fieldContentType, "application/json")
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := r.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		return nil
	}

	return fmt.Errorf("update %s: too much contention", key)
}

func (r *Redis) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := r.client.HSet(ctx, r.key(key), fieldData, data, fieldContentType, contentType).Err(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (r *Redis) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.HGet(ctx, r.key(key), fieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (r *Redis) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	match := r.prefix + escapeGlob(prefix) + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, match, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

// PresignedURL is not available: redis has no addressable object URLs.
func (r *Redis) PresignedURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrUnsupported
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
