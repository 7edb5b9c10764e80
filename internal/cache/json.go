// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"encoding/json"
	"time"
)

// JSON is a typed view over a Cache storing values as JSON documents under a
// namespace.
type JSON[T any] struct {
	backend   Cache
	namespace string
}

// NewJSON wraps backend. Keys are stored as "<namespace>:<key>".
func NewJSON[T any](backend Cache, namespace string) *JSON[T] {
	if backend == nil {
		backend = NoOpCache{}
	}
	return &JSON[T]{backend: backend, namespace: namespace}
}

func (j *JSON[T]) key(k string) string {
	if j.namespace == "" {
		return k
	}
	return j.namespace + ":" + k
}

// Get returns the cached value. Entries that fail to decode count as misses.
func (j *JSON[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, ok := j.backend.Get(ctx, j.key(key))
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		j.backend.Delete(ctx, j.key(key))
		return zero, false
	}
	return v, true
}

// Set stores v for ttl. A non-positive ttl disables the write.
func (j *JSON[T]) Set(ctx context.Context, key string, v T, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	j.backend.Set(ctx, j.key(key), raw, ttl)
	return nil
}

// Backend returns the underlying cache.
func (j *JSON[T]) Backend() Cache { return j.backend }
