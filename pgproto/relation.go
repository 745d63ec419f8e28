package pgproto

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/strahe/pgreplay-sentinel/pgerr"
	"github.com/yugabyte/pgx/v5/pgconn"
)

// RelationEntry is a cached RelationInfo enriched with the primary key
// column names resolved from pg_index/pg_attribute, since a Relation
// message alone only marks replica-identity key columns, not the true
// primary key.
type RelationEntry struct {
	RelationInfo
	PrimaryKey []string
}

// IsPrimaryKeyColumn reports whether name is one of the relation's
// resolved primary key columns.
func (e *RelationEntry) IsPrimaryKeyColumn(name string) bool {
	return lo.Contains(e.PrimaryKey, name)
}

// HasCompleteIdentity reports whether decoded carries a non-nil value
// for every primary key column, so callers can tell a genuinely
// missing identity apart from a replica identity that simply omitted
// non-key columns.
func (e *RelationEntry) HasCompleteIdentity(decoded map[string]any) bool {
	return lo.EveryBy(e.PrimaryKey, func(col string) bool {
		v, ok := decoded[col]
		return ok && v != nil
	})
}

// Cache tracks the most recently announced shape of every relation
// referenced by the stream, keyed by OID. A new Relation message for
// an OID already present overwrites the old entry, per pgoutput's
// contract that relation metadata precedes every tuple message that
// depends on it.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint32]*RelationEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uint32]*RelationEntry)}
}

// Put installs or replaces the cached entry for rel.OID. Primary key
// columns are looked up lazily by the caller (they require a database
// round trip) and passed in once known.
func (c *Cache) Put(rel RelationInfo, primaryKey []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rel.OID] = &RelationEntry{RelationInfo: rel, PrimaryKey: primaryKey}
}

// Get returns the cached entry for oid, or an UnknownRelationError if
// no Relation message has been seen for it yet.
func (c *Cache) Get(oid uint32) (*RelationEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[oid]
	if !ok {
		return nil, pgerr.NewUnknownRelationError(oid)
	}
	return e, nil
}

// LookupPrimaryKey queries pg_index/pg_attribute for the primary key
// column names of the given table, using the plain (non-replication)
// connection since replication-mode connections only support the
// START_REPLICATION/IDENTIFY_SYSTEM command subset.
func LookupPrimaryKey(ctx context.Context, conn *pgconn.PgConn, namespace, name string) ([]string, error) {
	const query = `
SELECT a.attname
FROM pg_index i
JOIN pg_class c ON c.oid = i.indrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
WHERE i.indisprimary
  AND n.nspname = $1
  AND c.relname = $2
ORDER BY array_position(i.indkey, a.attnum)`

	result := conn.ExecParams(ctx, query, [][]byte{[]byte(namespace), []byte(name)}, nil, nil, nil).Read()
	if result.Err != nil {
		return nil, fmt.Errorf("pgproto: primary key lookup for %s.%s: %w", namespace, name, result.Err)
	}
	cols := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		cols = append(cols, string(row[0]))
	}
	return cols, nil
}
