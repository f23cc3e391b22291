package kvlite

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry manages named stores sharing one database connection.
type Registry struct {
	db     *DB
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates a registry over an open database.
func NewRegistry(db *DB) *Registry {
	return &Registry{
		db:     db,
		stores: make(map[string]*Store),
	}
}

// Store returns the store with the given name, creating its backing
// table on first use. Repeated calls with the same name return the same
// instance.
func (r *Registry) Store(name string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[name]; ok {
		return s, nil
	}

	s, err := NewStore(r.db, name)
	if err != nil {
		return nil, err
	}
	r.stores[name] = s
	return s, nil
}

// Ephemeral creates a store under a fresh unique name, for scratch data
// that no other caller should collide with.
func (r *Registry) Ephemeral() (*Store, error) {
	return r.Store("tmp_" + uuid.NewString())
}

// Names returns the names of all registered stores, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes a store and its backing table entirely.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := tableName(name)
	if err != nil {
		return err
	}

	delete(r.stores, name)

	if _, err := r.db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table)); err != nil {
		return fmt.Errorf("failed to drop store %q: %w", name, err)
	}

	log.Debug().Str("store", name).Msg("Dropped KV store")
	return nil
}

// CleanAll sweeps expired entries from every registered store and
// returns the total number of rows removed. There is no background
// sweeper; callers schedule this themselves.
func (r *Registry) CleanAll() (int64, error) {
	r.mu.RLock()
	stores := make([]*Store, 0, len(r.stores))
	for _, s := range r.stores {
		stores = append(stores, s)
	}
	r.mu.RUnlock()

	var total int64
	for _, s := range stores {
		count, err := s.Clean()
		if err != nil {
			return total, err
		}
		total += count
	}
	return total, nil
}
