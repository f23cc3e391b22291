package kvlite

import (
	"encoding/json"
	"fmt"
)

// TypedStore wraps a Store with JSON marshaling for a specific type,
// giving embedding code a schema'd API over the dynamic core.
type TypedStore[T any] struct {
	store *Store
}

// NewTypedStore creates a typed view over a store.
func NewTypedStore[T any](store *Store) *TypedStore[T] {
	return &TypedStore[T]{store: store}
}

// Get retrieves and unmarshals the value for a key. The second return
// reports whether a live entry was found.
func (t *TypedStore[T]) Get(key string) (T, bool, error) {
	var value T

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	raw, _, found, err := t.store.lookup(key)
	if err != nil || !found {
		return value, false, err
	}

	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return value, false, fmt.Errorf("failed to unmarshal value for key %q: %w", key, err)
	}
	return value, true, nil
}

// Set marshals and stores the value for a key.
func (t *TypedStore[T]) Set(key string, value T, opts *SetOptions) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	return t.store.putRaw(key, string(data), t.store.expiryFrom(opts))
}

// Update applies a modification function to the current value. If the
// key is absent, modify receives the zero value. The entry's expiry is
// preserved across the rewrite.
func (t *TypedStore[T]) Update(key string, modify func(current T) T) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var current T
	raw, exp, found, err := t.store.lookup(key)
	if err != nil {
		return err
	}
	if found {
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("failed to unmarshal value for key %q: %w", key, err)
		}
	}

	data, err := json.Marshal(modify(current))
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return t.store.putRaw(key, string(data), exp)
}

// Delete removes the entry for a key. Returns true if a row existed.
func (t *TypedStore[T]) Delete(key string) (bool, error) {
	return t.store.Delete(key)
}

// Exists reports whether a live entry exists for the key.
func (t *TypedStore[T]) Exists(key string) (bool, error) {
	return t.store.Exists(key)
}

// Keys returns all live keys in the underlying store.
func (t *TypedStore[T]) Keys() ([]string, error) {
	return t.store.Keys(true)
}

// GetAll retrieves all live entries, unmarshaled into the element type.
func (t *TypedStore[T]) GetAll() (map[string]T, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rows, err := t.store.db.Query(fmt.Sprintf(`SELECT key, value, exp FROM %s`, t.store.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	now := t.store.clock.Now().UTC().Unix()

	values := make(map[string]T)
	var expired []string
	for rows.Next() {
		var key, raw string
		var exp int64
		if err := rows.Scan(&key, &raw, &exp); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if expiredAt(exp, now) {
			expired = append(expired, key)
			continue
		}

		var value T
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal value for key %q: %w", key, err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	rows.Close()

	t.store.deleteExpired(expired)
	return values, nil
}
