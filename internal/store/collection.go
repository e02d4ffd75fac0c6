package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// keyLocks serializes read-modify-write cycles on the same key within the process
var keyLocks sync.Map

func lockKey(key string) func() {
	v, _ := keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Load reads the JSON array stored under key. An absent key is an empty list.
func Load[T any](ctx context.Context, s Store, key string) ([]T, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(raw) == 0 {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Save writes items as a JSON array under key
func Save[T any](ctx context.Context, s Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Update loads the full collection under key, applies fn and writes the result back.
// When fn returns an error nothing is written.
func Update[T any](ctx context.Context, s Store, key string, fn func([]T) ([]T, error)) ([]T, error) {
	unlock := lockKey(key)
	defer unlock()

	items, err := Load[T](ctx, s, key)
	if err != nil {
		return nil, err
	}
	next, err := fn(items)
	if err != nil {
		return nil, err
	}
	if err := Save(ctx, s, key, next); err != nil {
		return nil, err
	}
	return next, nil
}

// GetJSON decodes the single value stored under key into v.
// It reports false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under key
func PutJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
