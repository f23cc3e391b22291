// Package kvlite implements a small persistent key-value store with
// per-key expiration, backed by a SQLite table.
//
// Each Store owns one table of (key, value, exp) rows. Values are
// JSON-encoded, expiry is an absolute epoch timestamp (0 = never).
// Expired entries are reclaimed lazily by the read that discovers them;
// Clean performs an explicit bulk sweep.
package kvlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Entry is one stored key/value/expiry triple, as returned by Entries.
type Entry struct {
	Key       string
	Value     any
	ExpiresAt int64 // epoch seconds, 0 = never expires
}

// SetOptions contains optional parameters for Set operations.
type SetOptions struct {
	TTL time.Duration // Time-to-live; zero or negative means no expiry
}

// Store is a table-backed key-value collection with per-key expiry.
// All operations are safe for concurrent use by multiple goroutines;
// a single mutex serializes them, which also makes the read-modify-write
// pairs of the derived list/counter operations atomic with respect to
// each other.
type Store struct {
	db    *sql.DB
	name  string
	table string

	clock      Clock
	defaultTTL time.Duration

	ownDB *DB // set when the store was created via Open and owns the connection

	mu sync.Mutex
}

// NewStore creates a store over the given database, ensuring its backing
// table exists. The name is sanitized into the table identifier.
func NewStore(db *DB, name string) (*Store, error) {
	table, err := tableName(name)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			exp INTEGER NOT NULL DEFAULT 0
		)
	`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}

	log.Debug().Str("store", name).Str("table", table).Msg("Opened KV store")

	return &Store{
		db:    db.DB,
		name:  name,
		table: table,
		clock: systemClock{},
	}, nil
}

// Open opens the database file at path and creates a store over it.
// The returned store owns the connection; Close releases it.
func Open(path, name string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	s, err := NewStore(db, name)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownDB = db
	return s, nil
}

// Name returns the store name as supplied at construction.
func (s *Store) Name() string {
	return s.name
}

// Close releases the underlying connection if the store owns it.
// Stores sharing a DB through a Registry are no-ops here.
func (s *Store) Close() error {
	if s.ownDB != nil {
		return s.ownDB.Close()
	}
	return nil
}

// Get retrieves the value stored under key, or nil if the key is absent
// or expired. Reading an expired entry deletes it.
func (s *Store) Get(key any) (any, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, _, found, err := s.lookup(k)
	if err != nil || !found {
		return nil, err
	}
	return s.decode(k, raw)
}

// GetDefault is Get with a caller-supplied fallback for absent or
// expired keys.
func (s *Store) GetDefault(key, def any) (any, error) {
	v, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return def, nil
	}
	return v, nil
}

// Set stores a value under key, replacing any existing entry including
// its expiry. A positive opts.TTL sets an absolute expiry relative to
// now; nil opts fall back to the store's default TTL.
func (s *Store) Set(key, value any, opts *SetOptions) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.put(k, value, s.expiryFrom(opts))
}

// Delete removes the entry for key. Returns true if a row existed.
func (s *Store) Delete(key any) (bool, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), k)
	if err != nil {
		return false, fmt.Errorf("failed to delete key: %w", err)
	}

	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

// DeleteAll removes every entry in the store.
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s`, s.table))
	if err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}

// Clean removes all currently-expired entries in one sweep and returns
// the number of rows deleted. This is the only proactive reclamation;
// nothing runs in the background.
func (s *Store) Clean() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC().Unix()

	result, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE exp != 0 AND exp <= ?`, s.table), now)
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired entries: %w", err)
	}

	count, _ := result.RowsAffected()
	if count > 0 {
		log.Debug().Str("store", s.name).Int64("count", count).Msg("Cleaned up expired entries")
	}
	return count, nil
}

// KeysCount returns the number of rows in the store, expired ones
// included. No validation pass is performed.
func (s *Store) KeysCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return count, nil
}

// Keys returns the keys in the store. With validate, expired entries are
// skipped and lazily deleted; without it every key is returned as-is.
func (s *Store) Keys(validate bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(fmt.Sprintf(`SELECT key, exp FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	now := s.clock.Now().UTC().Unix()

	var keys []string
	var expired []string
	for rows.Next() {
		var key string
		var exp int64
		if err := rows.Scan(&key, &exp); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		if validate && expiredAt(exp, now) {
			expired = append(expired, key)
			continue
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	rows.Close()

	s.deleteExpired(expired)
	return keys, nil
}

// Entries returns every entry in the store. With validate, expired
// entries are skipped and lazily deleted; without it expired rows are
// returned too, which is useful for inspecting expiry state.
func (s *Store) Entries(validate bool) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(fmt.Sprintf(`SELECT key, value, exp FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	now := s.clock.Now().UTC().Unix()

	var entries []Entry
	var expired []string
	for rows.Next() {
		var key, raw string
		var exp int64
		if err := rows.Scan(&key, &raw, &exp); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if validate && expiredAt(exp, now) {
			expired = append(expired, key)
			continue
		}
		value, err := s.decode(key, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: value, ExpiresAt: exp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	rows.Close()

	s.deleteExpired(expired)
	return entries, nil
}

// Exists reports whether key has a live row, independent of the stored
// value. Reading an expired entry deletes it.
func (s *Store) Exists(key any) (bool, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exp int64
	err = s.db.QueryRow(fmt.Sprintf(`SELECT exp FROM %s WHERE key = ?`, s.table), k).Scan(&exp)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	if expiredAt(exp, s.clock.Now().UTC().Unix()) {
		s.deleteExpired([]string{k})
		return false, nil
	}
	return true, nil
}

// expiredAt applies the expiry rule: 0 never expires, otherwise an entry
// is expired once its timestamp is reached.
func expiredAt(exp, now int64) bool {
	return exp != 0 && exp <= now
}

// expiryFrom computes the absolute expiry for a write. Caller holds s.mu.
func (s *Store) expiryFrom(opts *SetOptions) int64 {
	ttl := s.defaultTTL
	if opts != nil {
		ttl = opts.TTL
	}
	if ttl <= 0 {
		return 0
	}
	return s.clock.Now().UTC().Add(ttl).Unix()
}

// lookup fetches the raw serialized value and expiry for a key, lazily
// deleting it when expired. Caller holds s.mu.
func (s *Store) lookup(k string) (raw string, exp int64, found bool, err error) {
	err = s.db.QueryRow(fmt.Sprintf(`SELECT value, exp FROM %s WHERE key = ?`, s.table), k).Scan(&raw, &exp)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to get value: %w", err)
	}

	if expiredAt(exp, s.clock.Now().UTC().Unix()) {
		s.deleteExpired([]string{k})
		return "", 0, false, nil
	}
	return raw, exp, true, nil
}

// decode unmarshals a stored value, surfacing corruption as an error
// instead of a silently wrong value.
func (s *Store) decode(k, raw string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("failed to decode stored value for key %q: %w", k, err)
	}
	return value, nil
}

// put serializes and upserts a value. Caller holds s.mu.
func (s *Store) put(k string, value any, exp int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return s.putRaw(k, string(data), exp)
}

// putRaw upserts an already-serialized value. Caller holds s.mu.
func (s *Store) putRaw(k, raw string, exp int64) error {
	_, err := s.db.Exec(fmt.Sprintf(`
		INSERT INTO %s (key, value, exp)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			exp = excluded.exp
	`, s.table), k, raw, exp)
	if err != nil {
		return fmt.Errorf("failed to store value: %w", err)
	}
	return nil
}

// deleteExpired removes rows discovered expired during a read. Deletion
// failures are logged, not surfaced: the read result is already correct.
// Caller holds s.mu.
func (s *Store) deleteExpired(keys []string) {
	for _, k := range keys {
		if _, err := s.db.Exec(fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), k); err != nil {
			log.Warn().Err(err).Str("store", s.name).Str("key", k).Msg("Failed to delete expired entry")
			continue
		}
		log.Debug().Str("store", s.name).Str("key", k).Msg("Lazily deleted expired entry")
	}
}
