package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/gear6io/cnpj-pipeline/pkg/errors"
	"github.com/uptrace/bun"
)

// primaryKeyQuery lists a relation's primary key columns in key order
const primaryKeyQuery = `SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = ?::regclass AND i.indisprimary
ORDER BY array_position(i.indkey::int2[], a.attnum)`

// KeyLookup resolves the primary key columns of a relation
type KeyLookup func(ctx context.Context, relation string) ([]string, error)

// KeyCache remembers primary keys for the lifetime of a Store. Keys are
// looked up on first use and never invalidated.
type KeyCache struct {
	mu     sync.Mutex
	keys   map[string][]string
	lookup KeyLookup
}

// NewKeyCache creates a cache populated through lookup
func NewKeyCache(lookup KeyLookup) *KeyCache {
	return &KeyCache{
		keys:   make(map[string][]string),
		lookup: lookup,
	}
}

// Get returns the cached keys of relation, looking them up on a miss.
// A relation without a primary key caches an empty set.
func (c *KeyCache) Get(ctx context.Context, relation string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if keys, ok := c.keys[relation]; ok {
		return keys, nil
	}

	keys, err := c.lookup(ctx, relation)
	if err != nil {
		return nil, errors.New(ErrKeyLookupFailed, "failed to resolve primary key", err).
			AddContext("relation", relation)
	}
	if keys == nil {
		keys = []string{}
	}
	c.keys[relation] = keys
	return keys, nil
}

// Len returns the number of cached relations
func (c *KeyCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// catalogKeyLookup introspects pg_index through db
func catalogKeyLookup(db *bun.DB) KeyLookup {
	return func(ctx context.Context, relation string) ([]string, error) {
		var keys []string
		err := db.NewRaw(primaryKeyQuery, relation).Scan(ctx, &keys)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		return keys, nil
	}
}
